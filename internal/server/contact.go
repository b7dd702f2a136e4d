package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/config"
	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/inbox"
	"github.com/tshoemake/portfolio/internal/nav"
)

// formData is what the contact-form template renders.
type formData struct {
	contact.View
	SiteKey string
	Inline  bool // rendered on the contact page rather than in the modal
}

func (s *Server) formData(sess *session, inline bool) formData {
	return formData{View: sess.dialog.View(), SiteKey: s.siteKey(), Inline: inline}
}

// siteKey falls back to the always-passing test key so the widget still
// renders on unconfigured deployments.
func (s *Server) siteKey() string {
	if s.cfg.Turnstile.SiteKey == "" {
		return config.TestSiteKey
	}
	return s.cfg.Turnstile.SiteKey
}

func (s *Server) contactRoutes(g *gin.RouterGroup) {
	c := g.Group("/contact")
	c.POST("/open", s.handleContactOpen)
	c.POST("/close", s.handleContactClose)
	c.POST("/edit", s.handleContactEdit)
	c.POST("/submit", s.handleContactSubmit)
}

func isHTMX(c *gin.Context) bool { return c.GetHeader("HX-Request") == "true" }

// back is where a non-HTMX form post returns to.
func back(c *gin.Context) string {
	if r, ok := nav.Resolve(c.PostForm("from")); ok {
		return r.Path()
	}
	return nav.Home.Path()
}

func (s *Server) handleContactOpen(c *gin.Context) {
	sess := sessionFrom(c)
	sess.dialog.Open()
	if !isHTMX(c) {
		c.Redirect(http.StatusSeeOther, back(c))
		return
	}
	c.HTML(http.StatusOK, "modal", gin.H{
		"ModalOpen": true,
		"Form":      s.formData(sess, false),
	})
}

func (s *Server) handleContactClose(c *gin.Context) {
	sess := sessionFrom(c)
	sess.dialog.Close()
	if !isHTMX(c) {
		c.Redirect(http.StatusSeeOther, back(c))
		return
	}
	c.HTML(http.StatusOK, "modal", gin.H{"ModalOpen": false})
}

func postedFields(c *gin.Context) contact.Fields {
	return contact.Fields{
		Topic:   contact.Topic(c.PostForm("topic")),
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Message: c.PostForm("message"),
	}
}

// handleContactEdit records the topic selection and draft values so a
// re-rendered form keeps them.
func (s *Server) handleContactEdit(c *gin.Context) {
	if _, err := sessionFrom(c).dialog.Edit(postedFields(c)); err != nil {
		c.Status(http.StatusConflict)
		return
	}
	c.Status(http.StatusNoContent)
}

// postedChallenge is the verification widget as seen through a form post:
// the widget injects its response input once it has loaded.
type postedChallenge struct {
	present bool
	token   string
	reset   bool
}

func challengeFrom(c *gin.Context) *postedChallenge {
	token, present := c.GetPostForm(contact.TokenField)
	return &postedChallenge{present: present, token: token}
}

func (p *postedChallenge) Ready() bool   { return p.present }
func (p *postedChallenge) Token() string { return p.token }
func (p *postedChallenge) Reset()        { p.reset = true }

func (s *Server) handleContactSubmit(c *gin.Context) {
	sess := sessionFrom(c)
	ch := challengeFrom(c)
	ip := c.ClientIP()
	ctx := inbox.WithRemote(c.Request.Context(), ip, s.hashIP(ip))
	ctx = inbox.WithHoneypot(ctx, c.PostForm(contact.HoneypotField))

	view, err := sess.dialog.Submit(ctx, postedFields(c), ch)
	var ve *contact.ValidationError
	switch {
	case errors.Is(err, contact.ErrStale):
		// the dialog was closed while this was in flight
		c.Status(http.StatusNoContent)
		return
	case errors.Is(err, contact.ErrBusy):
		c.Status(http.StatusConflict)
		return
	case err == nil, errors.Is(err, contact.ErrAlreadySubmitted), errors.As(err, &ve),
		errors.Is(err, contact.ErrVerificationRequired), errors.Is(err, contact.ErrVerificationUnavailable):
	default:
		s.log.Warn("contact delivery failed", slog.String("client", s.hashIP(ip)), slog.Any("error", err))
	}
	if ch.reset {
		c.Header("HX-Trigger", "turnstile-reset")
	}

	inline := c.PostForm("inline") == "true"
	if !isHTMX(c) {
		c.HTML(http.StatusOK, "contact.html", s.pageData(c, nav.Contact))
		return
	}
	c.HTML(http.StatusOK, "contact-form", formData{View: view, SiteKey: s.siteKey(), Inline: inline})
}
