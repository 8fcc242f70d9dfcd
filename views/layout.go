package views

import (
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/trexim"
)

var navPages = []string{"services", "pricing", "blog", "about", "partners", "tools", "contact"}

func pathOf(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// layout wraps body in the public page chrome. jsonLD blocks go into <head>.
func layout(meta trexim.PageMeta, site trexim.SiteConfig, body templ.Component, jsonLD ...string) templ.Component {
	return component(func(w *writer) {
		lang := meta.Lang
		path := pathOf(meta.URL)
		title := meta.Title
		if title != site.Name {
			title += " | " + site.Name
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		w.raw(`<!DOCTYPE html><html`)
		w.attr("lang", string(lang))
		w.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<title>`)
		w.text(title)
		w.raw(`</title><meta name="description"`)
		w.attr("content", meta.Description)
		w.raw(`><link rel="canonical"`)
		w.attr("href", meta.URL)
		w.raw(`><link rel="alternate" hreflang="uk"`)
		w.attr("href", meta.URL)
		w.raw(`><link rel="alternate" hreflang="en"`)
		w.attr("href", meta.URL+"?lang=en")
		w.raw(`><meta property="og:type"`)
		w.attr("content", ogType)
		w.raw(`><meta property="og:title"`)
		w.attr("content", meta.Title)
		w.raw(`><meta property="og:description"`)
		w.attr("content", meta.Description)
		w.raw(`><meta property="og:url"`)
		w.attr("content", meta.URL)
		w.raw(`><link rel="icon" href="/favicon.svg" type="image/svg+xml"><link rel="stylesheet" href="/public/styles.css">`)
		w.raw(`<link rel="alternate" type="application/rss+xml" title="RSS" href="/feed.xml">`)
		for _, ld := range append([]string{trexim.WebsiteJsonLD(site)}, jsonLD...) {
			// JSON-LD is produced by json.Marshal, which escapes <, > and &.
			w.raw(`<script type="application/ld+json">`, ld, `</script>`)
		}
		w.raw(`<script src="/public/analytics.js" defer></script></head><body>`)

		w.raw(`<header class="site-header"><a class="logo"`)
		w.attr("href", href(lang, "/"))
		w.raw(`>`)
		w.text(site.Name)
		w.raw(`</a><nav>`)
		for _, slug := range navPages {
			w.raw(`<a`)
			w.attr("href", href(lang, "/"+slug+"/"))
			w.raw(`>`)
			w.text(trexim.PageTitle(slug, lang))
			w.raw(`</a>`)
		}
		w.raw(`</nav><div class="lang-switch"><a`)
		w.attr("href", path)
		w.raw(` hreflang="uk">UA</a> <a`)
		w.attr("href", path+"?lang=en")
		w.raw(` hreflang="en">EN</a></div></header><main>`)

		w.render(body)

		w.raw(`</main><div id="consent-banner" class="consent" hidden><p>`)
		w.text(tr(lang,
			"Ми використовуємо аналітику для покращення сайту. Дозволити?",
			"We use analytics to improve this site. Allow it?"))
		w.raw(`</p><button type="button" data-consent="accepted">`)
		w.text(tr(lang, "Дозволити", "Accept"))
		w.raw(`</button><button type="button" data-consent="declined">`)
		w.text(tr(lang, "Відхилити", "Decline"))
		w.raw(`</button></div><footer class="site-footer"><p>`)
		w.text(site.Description)
		w.raw(`</p><a`)
		w.attr("href", href(lang, "/contact/"))
		w.raw(` data-track="cta_click" data-track-label="footer">`)
		w.text(tr(lang, "Зв'язатися з нами", "Contact us"))
		w.raw(`</a></footer></body></html>`)
	})
}
