// Package contact implements the contact form flow: field validation, the
// optional human-verification gate, the form-encoded submission and the
// Editing → Submitting → Submitted state machine behind the contact dialog.
package contact

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tshoemake/portfolio/internal/visibility"
)

// State is the position of a form in its lifecycle.
type State int

const (
	// Editing accepts input and submission.
	Editing State = iota
	// Submitting has one delivery in flight.
	Submitting
	// Submitted is terminal until the dialog is reset.
	Submitted
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrBusy rejects a submit while another is in flight.
	ErrBusy = errors.New("contact: submission already in progress")

	// ErrAlreadySubmitted rejects edits and submits after success.
	ErrAlreadySubmitted = errors.New("contact: form already submitted")

	// ErrVerificationRequired means the widget is ready but holds no token.
	ErrVerificationRequired = errors.New("contact: verification not completed")

	// ErrVerificationUnavailable means the widget never became ready.
	ErrVerificationUnavailable = errors.New("contact: verification unavailable")

	// ErrStale reports a response that arrived after the dialog was reset.
	ErrStale = errors.New("contact: dialog was reset during submission")
)

// User-facing notices.
const (
	NoticeVerify      = "Please complete verification before sending."
	NoticeUnavailable = "Verification is unavailable right now. Please try again later."
	NoticeFailure     = "Sorry, there was an issue sending your message. Please try again."
)

// Challenge is the external human-verification widget.
type Challenge interface {
	// Ready reports whether the widget finished initializing.
	Ready() bool
	// Token returns the current one-time response token, or "".
	Token() string
	// Reset discards the current token.
	Reset()
}

// Options configure a Dialog.
type Options struct {
	RequireVerification bool
}

type form struct {
	fields Fields
	state  State
	errs   map[string]string
	notice string
}

func freshForm() form { return form{fields: EmptyFields(), state: Editing} }

// Dialog is the contact dialog of one visitor. It couples the visibility
// flag with a single form instance and is safe for concurrent use.
type Dialog struct {
	flag    *visibility.Flag
	deliver Deliverer
	opts    Options

	mu   sync.Mutex
	form form
	gen  uint64 // bumped on every reset; guards late responses
}

// NewDialog returns a closed dialog with a fresh form.
func NewDialog(flag *visibility.Flag, d Deliverer, opts Options) *Dialog {
	return &Dialog{flag: flag, deliver: d, opts: opts, form: freshForm()}
}

// Open shows the dialog with a fresh form.
func (d *Dialog) Open() {
	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
	d.flag.Open()
}

// Close hides the dialog and discards the form.
func (d *Dialog) Close() {
	d.flag.Close()
	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
}

// Reset starts a fresh form without changing visibility.
func (d *Dialog) Reset() {
	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
}

func (d *Dialog) resetLocked() {
	d.form = freshForm()
	d.gen++
}

// IsOpen reports the dialog's visibility.
func (d *Dialog) IsOpen() bool { return d.flag.IsOpen() }

// Edit replaces the field values while the form is editable.
func (d *Dialog) Edit(f Fields) (View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editableLocked(); err != nil {
		return d.viewLocked(), err
	}
	if _, ok := ParseTopic(string(f.Topic)); !ok {
		f.Topic = d.form.fields.Topic
	}
	d.form.fields = f
	return d.viewLocked(), nil
}

func (d *Dialog) editableLocked() error {
	switch d.form.state {
	case Submitting:
		return ErrBusy
	case Submitted:
		return ErrAlreadySubmitted
	}
	return nil
}

// Submit validates f, checks the verification challenge and delivers the
// payload once. Local rejections leave the form in Editing without any
// network call. A delivery failure returns to Editing with the entered
// values kept. ch may be nil when verification is disabled.
func (d *Dialog) Submit(ctx context.Context, f Fields, ch Challenge) (View, error) {
	d.mu.Lock()
	if err := d.editableLocked(); err != nil {
		v := d.viewLocked()
		d.mu.Unlock()
		return v, err
	}

	f = f.Normalize()
	d.form.fields = f
	d.form.errs = nil
	d.form.notice = ""

	if err := f.Validate(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			d.form.errs = ve.Fields
		}
		v := d.viewLocked()
		d.mu.Unlock()
		return v, err
	}

	var token string
	if d.opts.RequireVerification {
		if ch == nil || !ch.Ready() {
			d.form.notice = NoticeUnavailable
			v := d.viewLocked()
			d.mu.Unlock()
			return v, ErrVerificationUnavailable
		}
		token = ch.Token()
		if token == "" {
			d.form.notice = NoticeVerify
			v := d.viewLocked()
			d.mu.Unlock()
			return v, ErrVerificationRequired
		}
	}

	d.form.state = Submitting
	gen := d.gen
	payload := NewPayload(f, token)
	d.mu.Unlock()

	err := d.deliver.Deliver(ctx, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return d.viewLocked(), ErrStale
	}
	if err != nil {
		d.form.state = Editing
		d.form.notice = NoticeFailure
		if ch != nil {
			ch.Reset()
		}
		return d.viewLocked(), err
	}
	d.form.state = Submitted
	return d.viewLocked(), nil
}

// View returns a snapshot for rendering.
func (d *Dialog) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked()
}

func (d *Dialog) viewLocked() View {
	errs := make(map[string]string, len(d.form.errs))
	for k, v := range d.form.errs {
		errs[k] = v
	}
	return View{
		State:               d.form.state,
		Fields:              d.form.fields,
		Errors:              errs,
		Notice:              d.form.notice,
		RequireVerification: d.opts.RequireVerification,
		Topics:              Topics(d.form.fields.Topic),
	}
}

// View is an immutable snapshot of the form.
type View struct {
	State               State
	Fields              Fields
	Errors              map[string]string
	Notice              string
	RequireVerification bool
	Topics              []TopicOption
}

func (v View) Submitted() bool { return v.State == Submitted }

// Busy reports whether the submit control must be disabled.
func (v View) Busy() bool { return v.State == Submitting }

// Confirmation is the text shown once the form was sent.
func (v View) Confirmation() string {
	return fmt.Sprintf("Thanks for reaching out. I'll get back to you regarding your %s inquiry shortly.", v.Fields.Topic)
}
