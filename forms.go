package trexim

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/eringen/trexim/analytics"
)

// Contact form limits.
const (
	maxFieldLen   = 255
	maxMessageLen = 5000
)

// honeypotField is hidden from people; bots fill it in.
const honeypotField = "website"

// ContactForm is a lead submitted from /contact/ or a pricing CTA.
type ContactForm struct {
	FormType    string
	Company     string
	Email       string
	Phone       string
	Message     string
	RequestType string
	Honeypot    string
}

func contactFormFrom(c echo.Context) ContactForm {
	f := ContactForm{
		FormType:    strings.TrimSpace(c.FormValue("form_type")),
		Company:     strings.TrimSpace(c.FormValue("company")),
		Email:       strings.TrimSpace(c.FormValue("email")),
		Phone:       strings.TrimSpace(c.FormValue("phone")),
		Message:     strings.TrimSpace(c.FormValue("message")),
		RequestType: strings.TrimSpace(c.FormValue("request_type")),
		Honeypot:    strings.TrimSpace(c.FormValue(honeypotField)),
	}
	if f.FormType == "" {
		f.FormType = "contact"
	}
	return f
}

// Validate returns a visitor-facing message in lang, or "" when f is valid.
func (f ContactForm) Validate(lang Lang) string {
	msg := func(uk, en string) string {
		if lang == LangEN {
			return en
		}
		return uk
	}
	if f.Email == "" && f.Phone == "" {
		return msg("Вкажіть email або телефон.", "Please provide an email or phone number.")
	}
	if f.Email != "" {
		if _, err := mail.ParseAddress(f.Email); err != nil {
			return msg("Невірний email.", "Invalid email address.")
		}
	}
	for _, v := range []string{f.FormType, f.Company, f.Email, f.Phone, f.RequestType} {
		if utf8.RuneCountInString(v) > maxFieldLen {
			return msg("Поле задовге.", "A field is too long.")
		}
	}
	if utf8.RuneCountInString(f.Message) > maxMessageLen {
		return msg("Повідомлення задовге.", "The message is too long.")
	}
	return ""
}

// submission converts the form into a stored lead. Honeypot hits are kept
// but marked as spam.
func (f ContactForm) submission(ipHash string) analytics.FormSubmission {
	status := analytics.FormStatusNew
	if f.Honeypot != "" {
		status = analytics.FormStatusSpam
	}
	return analytics.FormSubmission{
		FormType:    f.FormType,
		Company:     f.Company,
		Email:       f.Email,
		Phone:       f.Phone,
		Message:     f.Message,
		RequestType: f.RequestType,
		IPHash:      ipHash,
		Status:      status,
	}
}

func (a *App) handleContact(c echo.Context) error {
	lang := langOf(c)
	form := contactFormFrom(c)
	if problem := form.Validate(lang); problem != "" {
		return RenderStatus(c, http.StatusBadRequest, a.Views.Page(StaticPage{
			Meta:      a.pageMeta(lang, PageTitle("contact", lang), "", "contact"),
			Site:      a.Config,
			Slug:      "contact",
			CSRFToken: CsrfToken(c),
			FormError: problem,
		}))
	}

	a.Ingestor.RecordFormSubmission(c.Request().Context(), form.submission(a.clientHash(c)))
	target := "/contact/?sent=1"
	if lang == LangEN {
		target += "&lang=en"
	}
	return c.Redirect(http.StatusSeeOther, target)
}
