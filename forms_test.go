package trexim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eringen/trexim/analytics"
)

func TestContactFormValidate(t *testing.T) {
	tests := []struct {
		name string
		form ContactForm
		want string
	}{
		{"email only", ContactForm{Email: "ops@example.com"}, ""},
		{"phone only", ContactForm{Phone: "+380 44 000 00 00"}, ""},
		{"no contact", ContactForm{Company: "Acme"}, "Please provide an email or phone number."},
		{"bad email", ContactForm{Email: "not-an-email"}, "Invalid email address."},
		{"long company", ContactForm{Email: "a@b.co", Company: strings.Repeat("я", 256)}, "A field is too long."},
		{"long message", ContactForm{Phone: "1", Message: strings.Repeat("x", 5001)}, "The message is too long."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.form.Validate(LangEN))
		})
	}

	assert.Equal(t, "Вкажіть email або телефон.", ContactForm{}.Validate(LangUK))
}

func TestContactFormSubmission(t *testing.T) {
	f := ContactForm{FormType: "contact", Email: "ops@example.com", RequestType: "business"}
	sub := f.submission("abc")
	assert.Equal(t, analytics.FormStatusNew, sub.Status)
	assert.Equal(t, "abc", sub.IPHash)
	assert.Equal(t, "business", sub.RequestType)

	f.Honeypot = "http://spam.example"
	assert.Equal(t, analytics.FormStatusSpam, f.submission("abc").Status)
}
