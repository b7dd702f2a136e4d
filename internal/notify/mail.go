// Package notify mails the site owner about new contact submissions.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/tshoemake/portfolio/internal/store"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends one plain-text mail per submission.
type Mailer struct {
	Host string
	Port string
	User string
	Pass string
	To   string

	send SendFunc
}

// NewMailer returns a mailer that sends through smtp.SendMail.
func NewMailer(host, port, user, pass, to string) *Mailer {
	return &Mailer{Host: host, Port: port, User: user, Pass: pass, To: to, send: smtp.SendMail}
}

// Notify mails s to the owner with the sender as Reply-To.
func (m *Mailer) Notify(ctx context.Context, s store.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.User == "" || m.Pass == "" {
		return fmt.Errorf("SMTP credentials not configured")
	}
	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	if err := m.send(m.Host+":"+m.Port, auth, m.User, []string{m.To}, m.Message(s)); err != nil {
		return fmt.Errorf("sending contact mail: %w", err)
	}
	return nil
}

// Message renders the mail including headers.
func (m *Mailer) Message(s store.Submission) []byte {
	subject := fmt.Sprintf("Portfolio Contact (%s): %s", s.Topic, headerSafe(s.Name))
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Topic: %s
Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, s.Topic, s.Name, s.Email, s.Message)

	return []byte("To: " + m.To + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + m.User + "\r\n" +
		"Reply-To: " + headerSafe(s.Email) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

// headerSafe strips line breaks so user input cannot add headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
