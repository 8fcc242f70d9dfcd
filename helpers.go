package trexim

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"
)

// maxRelated caps the related-posts block under an article.
const maxRelated = 3

var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "h", 'ґ': "g", 'д': "d", 'е': "e",
	'є': "ie", 'ж': "zh", 'з': "z", 'и': "y", 'і': "i", 'ї': "i", 'й': "i",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ь': "", 'ю': "iu", 'я': "ia", '\'': "", '’': "",
}

// Slugify converts a title to a URL-safe slug. Cyrillic is transliterated.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		if t, ok := translit[r]; ok {
			b.WriteString(t)
			prev = false
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilterRelatedPosts picks up to three posts sharing a tag or the category
// with current, keeping the input order.
func FilterRelatedPosts(current BlogPost, posts []BlogPost) []BlogPost {
	var related []BlogPost
	for _, p := range posts {
		if len(related) == maxRelated {
			break
		}
		if p.Slug == current.Slug {
			continue
		}
		if current.Category != "" && p.Category == current.Category {
			related = append(related, p)
			continue
		}
		for _, t := range p.Tags {
			if current.HasTag(t) {
				related = append(related, p)
				break
			}
		}
	}
	return related
}

func marshalLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
		"inLanguage":  []string{string(LangUK), string(LangEN)},
	}
	if cfg.Author != "" {
		data["publisher"] = map[string]string{"@type": "Organization", "name": cfg.Author}
	}
	return marshalLD(data)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post BlogPost, lang Lang, cfg SiteConfig) string {
	t := post.In(lang)
	link := postURL(cfg.URL, post, lang)
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    t.Title,
		"description": t.Excerpt,
		"inLanguage":  string(lang),
		"url":         link,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   link,
		},
	}
	if post.PublishedAt != nil {
		data["datePublished"] = post.PublishedAt.UTC().Format(time.RFC3339)
	}
	if !post.UpdatedAt.IsZero() {
		data["dateModified"] = post.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if post.ImageURL != "" {
		data["image"] = post.ImageURL
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{"@type": "Organization", "name": cfg.Author}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{"@type": "Organization", "name": cfg.Name}
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalLD(data)
}
