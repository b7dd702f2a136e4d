package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/inbox"
)

// handleIntake accepts the form-encoded contact payload posted to the site
// root, by the dialog's HTTP deliverer or by any plain HTML form.
func (s *Server) handleIntake(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "malformed form body")
		return
	}
	p, err := contact.ParsePayload(c.Request.PostForm)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	ip := c.ClientIP()
	res, err := s.inbox.Accept(c.Request.Context(), inbox.Request{
		Payload:    p,
		Honeypot:   c.Request.PostForm.Get(contact.HoneypotField),
		RemoteIP:   ip,
		RemoteHash: s.hashIP(ip),
	})

	var ve *contact.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, inbox.ErrUnknownForm):
		c.String(http.StatusBadRequest, "unknown form")
		return
	case errors.As(err, &ve):
		c.Negotiate(http.StatusUnprocessableEntity, gin.Negotiate{
			Offered: []string{gin.MIMEJSON, gin.MIMEPlain},
			Data:    gin.H{"errors": ve.Fields},
		})
		return
	case errors.Is(err, inbox.ErrUnverified):
		c.String(http.StatusForbidden, "verification failed")
		return
	default:
		s.log.Error("storing contact submission", slog.Any("error", err))
		c.String(http.StatusInternalServerError, "could not accept submission")
		return
	}

	c.Negotiate(http.StatusOK, gin.Negotiate{
		Offered: []string{gin.MIMEJSON, gin.MIMEPlain},
		Data:    gin.H{"status": "received", "id": res.ID},
	})
}
