package views

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/trexim"
)

// writer accumulates the first write error so components can emit markup
// without checking every call.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, s := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, s)
	}
}

// text writes s HTML-escaped.
func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) textf(format string, args ...any) {
	w.text(fmt.Sprintf(format, args...))
}

// attr writes ` name="value"` with value escaped.
func (w *writer) attr(name, value string) {
	w.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func (w *writer) render(c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(w.ctx, w.w)
}

func component(fn func(w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{ctx: ctx, w: out}
		fn(w)
		return w.err
	})
}

func tr(lang trexim.Lang, uk, en string) string {
	if lang == trexim.LangEN {
		return en
	}
	return uk
}

// href adds ?lang=en to site paths when rendering English pages.
func href(lang trexim.Lang, path string) string {
	if lang != trexim.LangEN {
		return path
	}
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set("lang", string(trexim.LangEN))
	u.RawQuery = q.Encode()
	return u.String()
}

func csrfField(w *writer, token string) {
	w.raw(`<input type="hidden" name="_csrf"`)
	w.attr("value", token)
	w.raw(`>`)
}
