package contact

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// FormName identifies the contact form to the intake endpoint.
	FormName = "contact"

	FormNameField = "form-name"
	// TokenField carries the human-verification token.
	TokenField = "cf-turnstile-response"
	// HoneypotField must stay empty for human senders.
	HoneypotField = "bot-field"
)

// Payload is one contact submission as sent over the wire.
type Payload struct {
	FormName string
	Fields   Fields
	Token    string
}

// NewPayload builds the payload for the contact form.
func NewPayload(f Fields, token string) Payload {
	return Payload{FormName: FormName, Fields: f, Token: token}
}

// Encode renders the form-encoded body. Keys keep a fixed order
// (form-name, topic, name, email, message, token), which url.Values would
// sort away.
func (p Payload) Encode() string {
	pairs := [][2]string{
		{FormNameField, p.FormName},
		{"topic", string(p.Fields.Topic)},
		{"name", p.Fields.Name},
		{"email", p.Fields.Email},
		{"message", p.Fields.Message},
	}
	if p.Token != "" {
		pairs = append(pairs, [2]string{TokenField, p.Token})
	}
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// ParsePayload reads a decoded form body back into a Payload. Only the
// form name is checked here; field validation is left to the caller.
func ParsePayload(v url.Values) (Payload, error) {
	name := v.Get(FormNameField)
	if name == "" {
		return Payload{}, fmt.Errorf("missing %s", FormNameField)
	}
	return Payload{
		FormName: name,
		Fields: Fields{
			Topic:   Topic(v.Get("topic")),
			Name:    v.Get("name"),
			Email:   v.Get("email"),
			Message: v.Get("message"),
		},
		Token: v.Get(TokenField),
	}, nil
}
