package trexim

import (
	"strings"
	"time"

	"github.com/eringen/trexim/analytics"
)

// Lang is a site language.
type Lang string

// Supported languages. Ukrainian is the default.
const (
	LangUK Lang = "uk"
	LangEN Lang = "en"
)

// ParseLang maps a query value to a supported language, defaulting to LangUK.
func ParseLang(s string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(s))) == LangEN {
		return LangEN
	}
	return LangUK
}

// Post statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Translation is the language-specific part of a post.
type Translation struct {
	Title   string
	Excerpt string
	Content string // HTML
	Date    string // display date as written by the editor
}

// BlogPost is a bilingual article. Category and Tags hold reference codes.
type BlogPost struct {
	Slug           string
	Category       string
	Tags           []string
	Emoji          string
	Color          string
	ReadTime       int
	ImageURL       string
	Status         string
	ShowOnHomepage bool
	PublishedAt    *time.Time
	UpdatedAt      time.Time
	UK             Translation
	EN             Translation
}

// In returns the translation for lang, falling back to Ukrainian for
// fields the English version leaves empty.
func (p BlogPost) In(lang Lang) Translation {
	if lang != LangEN {
		return p.UK
	}
	t := p.EN
	if t.Title == "" {
		t.Title = p.UK.Title
	}
	if t.Excerpt == "" {
		t.Excerpt = p.UK.Excerpt
	}
	if t.Content == "" {
		t.Content = p.UK.Content
	}
	if t.Date == "" {
		t.Date = p.UK.Date
	}
	return t
}

// Published reports whether the post is publicly visible.
func (p BlogPost) Published() bool {
	return p.Status == StatusPublished
}

// Link is the canonical site path of the post.
func (p BlogPost) Link() string {
	return "/blog/" + p.Slug + "/"
}

// HasTag reports whether the post carries tag code.
func (p BlogPost) HasTag(code string) bool {
	code = normalizeCode(code)
	for _, t := range p.Tags {
		if t == code {
			return true
		}
	}
	return false
}

// Reference is a category or tag.
type Reference struct {
	ID     int64
	Code   string
	NameUK string
	NameEN string
	Active bool
}

// Name returns the label in lang.
func (r Reference) Name(lang Lang) string {
	if lang == LangEN && r.NameEN != "" {
		return r.NameEN
	}
	return r.NameUK
}

// Image is the metadata of an uploaded, re-encoded image.
type Image struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   time.Time
}

// URL is the public path of the image.
func (i Image) URL() string {
	return "/public/" + uploadsSubdir + "/" + i.Filename
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Lang        Lang
}

// HomePage is the data of the landing page.
type HomePage struct {
	Meta  PageMeta
	Site  SiteConfig
	Posts []BlogPost
	Refs  References
}

// BlogPage is the data of the blog index.
type BlogPage struct {
	Meta      PageMeta
	Site      SiteConfig
	Posts     []BlogPost
	Refs      References
	ActiveTag string
}

// PostPage is the data of a single article.
type PostPage struct {
	Meta    PageMeta
	Site    SiteConfig
	Post    BlogPost
	Related []BlogPost
	Refs    References
}

// StaticPage is the data of a marketing page such as /about/.
// Contact form state is carried in Sent and FormError.
type StaticPage struct {
	Meta      PageMeta
	Site      SiteConfig
	Slug      string
	CSRFToken string
	Sent      bool
	FormError string
}

// References bundles categories and tags for label lookups in templates.
type References struct {
	Categories []Reference
	Tags       []Reference
}

// Category returns the category with code, if any.
func (r References) Category(code string) (Reference, bool) {
	return findRef(r.Categories, code)
}

// Tag returns the tag with code, if any.
func (r References) Tag(code string) (Reference, bool) {
	return findRef(r.Tags, code)
}

func findRef(refs []Reference, code string) (Reference, bool) {
	for _, ref := range refs {
		if ref.Code == code {
			return ref, true
		}
	}
	return Reference{}, false
}

// AdminDashboard is the data of the admin post list.
type AdminDashboard struct {
	Posts     []BlogPost
	Message   string
	CSRFToken string
}

// AdminPostForm is the data of the post editor.
type AdminPostForm struct {
	Post      BlogPost
	Refs      References
	CSRFToken string
}

// AdminReferences is the data of the category or tag editor.
type AdminReferences struct {
	Kind      string // "categories" or "tags"
	Items     []Reference
	Message   string
	CSRFToken string
}

// AdminForms is the data of the lead inbox.
type AdminForms struct {
	Forms     []analytics.FormSubmission
	Message   string
	CSRFToken string
}
