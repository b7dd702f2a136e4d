// Package inbox receives contact submissions: it checks the form, verifies
// the human-verification token, stores the submission and notifies the
// owner.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/store"
)

var (
	ErrUnknownForm = errors.New("inbox: unknown form")
	// ErrUnverified means a token was required and missing or rejected.
	ErrUnverified = errors.New("inbox: verification failed")
)

// Verifier checks a human-verification token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Notifier tells the owner about a stored submission.
type Notifier interface {
	Notify(ctx context.Context, s store.Submission) error
}

// Request is one incoming form post.
type Request struct {
	Payload  contact.Payload
	Honeypot string
	RemoteIP string
	// RemoteHash is the privacy-preserving client id stored with the row.
	RemoteHash string
}

// Result describes what happened to an accepted request.
type Result struct {
	ID       int64
	Dropped  bool // honeypot filled in; nothing stored
	Notified bool
}

// Service is the intake pipeline. Verifier and Notifier are optional.
type Service struct {
	db       *store.DB
	verifier Verifier
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New returns a service storing into db.
func New(db *store.DB, v Verifier, n Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, verifier: v, notifier: n, log: log, now: time.Now}
}

// Accept runs one request through the pipeline. A notification failure is
// logged and does not fail the request.
func (s *Service) Accept(ctx context.Context, r Request) (Result, error) {
	p := r.Payload
	if p.FormName != contact.FormName {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownForm, p.FormName)
	}
	if r.Honeypot != "" {
		s.log.Info("dropping submission with filled honeypot", slog.String("client", r.RemoteHash))
		return Result{Dropped: true}, nil
	}

	fields := p.Fields.Normalize()
	if err := fields.Validate(); err != nil {
		return Result{}, err
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, p.Token, r.RemoteIP); err != nil {
			s.log.Warn("verification failed", slog.String("client", r.RemoteHash), slog.Any("error", err))
			return Result{}, fmt.Errorf("%w: %v", ErrUnverified, err)
		}
	}

	sub := store.Submission{
		Topic:     string(fields.Topic),
		Name:      fields.Name,
		Email:     fields.Email,
		Message:   fields.Message,
		HashedIP:  r.RemoteHash,
		CreatedAt: s.now(),
	}
	id, err := s.db.SaveSubmission(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	sub.ID = id
	res := Result{ID: id}
	s.log.Info("contact submission stored", slog.Int64("id", id), slog.String("topic", sub.Topic))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, sub); err != nil {
			s.log.Error("contact notification failed", slog.Int64("id", id), slog.Any("error", err))
			return res, nil
		}
		if err := s.db.MarkNotified(ctx, id); err != nil {
			s.log.Error("marking submission notified", slog.Int64("id", id), slog.Any("error", err))
		}
		res.Notified = true
	}
	return res, nil
}

type (
	remoteKey   struct{}
	honeypotKey struct{}
)

type remote struct{ ip, hash string }

// WithRemote attaches the client address to ctx for in-process delivery.
func WithRemote(ctx context.Context, ip, hash string) context.Context {
	return context.WithValue(ctx, remoteKey{}, remote{ip: ip, hash: hash})
}

// WithHoneypot attaches the posted honeypot value to ctx for in-process
// delivery.
func WithHoneypot(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, honeypotKey{}, value)
}

// Deliver makes the service a contact.Deliverer, for dialogs that submit
// in process instead of over HTTP. A filled honeypot is dropped and reported
// as delivered.
func (s *Service) Deliver(ctx context.Context, p contact.Payload) error {
	r, _ := ctx.Value(remoteKey{}).(remote)
	honeypot, _ := ctx.Value(honeypotKey{}).(string)
	_, err := s.Accept(ctx, Request{Payload: p, Honeypot: honeypot, RemoteIP: r.ip, RemoteHash: r.hash})
	return err
}
