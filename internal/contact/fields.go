package contact

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Fields are the user-entered values of the contact form.
type Fields struct {
	Topic   Topic  `validate:"-"`
	Name    string `validate:"required"`
	Email   string `validate:"required,email"`
	Message string `validate:"required"`
}

// EmptyFields is the initial content of a fresh form.
func EmptyFields() Fields { return Fields{Topic: DefaultTopic} }

var validate = validator.New()

// fieldKeys maps struct fields to their form input names.
var fieldKeys = map[string]string{
	"Topic":   "topic",
	"Name":    "name",
	"Email":   "email",
	"Message": "message",
}

// Normalize trims surrounding whitespace so blank input counts as empty.
func (f Fields) Normalize() Fields {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)
	if f.Topic == "" {
		f.Topic = DefaultTopic
	}
	return f
}

// Validate checks the required fields and the email format.
// It returns a *ValidationError keyed by form input name.
func (f Fields) Validate() error {
	ve := &ValidationError{Fields: map[string]string{}}
	if _, ok := ParseTopic(string(f.Topic)); !ok {
		ve.Fields["topic"] = "Please pick a topic."
	}

	err := validate.Struct(f)
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			key := fieldKeys[fe.Field()]
			if fe.Tag() == "email" {
				ve.Fields[key] = "Please enter a valid email address."
			} else {
				ve.Fields[key] = "This field is required."
			}
		}
	default:
		return fmt.Errorf("validating contact fields: %w", err)
	}

	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}

// ValidationError lists the inputs that blocked a submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid contact form: " + strings.Join(keys, ", ")
}
