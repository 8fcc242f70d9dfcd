package trexim

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	XMLNS   string     `xml:"xmlns,attr"`
	XHTML   string     `xml:"xmlns:xhtml,attr"`
	URLs    []siteLink `xml:"url"`
}

// siteLink is one <url> entry with its language alternates.
type siteLink struct {
	Loc        string      `xml:"loc"`
	LastMod    string      `xml:"lastmod,omitempty"`
	Alternates []alternate `xml:"xhtml:link"`
}

type alternate struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

func bilingual(loc string, englishAvailable bool) siteLink {
	l := siteLink{Loc: loc, Alternates: []alternate{{Rel: "alternate", Hreflang: string(LangUK), Href: loc}}}
	if englishAvailable {
		l.Alternates = append(l.Alternates, alternate{Rel: "alternate", Hreflang: string(LangEN), Href: loc + "?lang=en"})
	}
	return l
}

func (a *App) renderSitemap(c echo.Context, posts []BlogPost) error {
	base := a.Config.URL
	links := []siteLink{bilingual(BuildURL(base), true), bilingual(BuildURL(base, "blog"), true)}
	for _, slug := range StaticPages {
		links = append(links, bilingual(BuildURL(base, slug), true))
	}
	for _, p := range posts {
		l := bilingual(BuildURL(base, "blog", p.Slug), p.EN.Title != "")
		if !p.UpdatedAt.IsZero() {
			l.LastMod = p.UpdatedAt.UTC().Format(time.DateOnly)
		}
		links = append(links, l)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
		URLs:  links,
	})
}
