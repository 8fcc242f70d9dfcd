// Package analytics provides privacy-first, first-party website analytics:
// server-side page view tracking, consent-gated client events and sessions,
// and the dashboard aggregations computed over the stored rows.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"path"
	"strings"
	"time"
)

// PageView is a single tracked page load. Rows are immutable.
type PageView struct {
	ID        int64     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	IPHash    string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"` // category label, never the raw URL
	Browser   string    `json:"browser"`
	Device    string    `json:"device"`
	OS        string    `json:"os"`
	Country   string    `json:"country,omitempty"`
}

// Event is a client-side signal such as a CTA click. Only stored with consent.
type Event struct {
	ID        int64     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Data      string    `json:"data,omitempty"` // opaque JSON payload from the client
	Path      string    `json:"path,omitempty"`
}

// Session is the best-effort visit record of a consenting client.
type Session struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	IPHash       string     `json:"-"`
	PagesVisited int        `json:"pages_visited"`
	ConsentGiven bool       `json:"consent_given"`
	UserAgent    string     `json:"user_agent"`
}

// SessionPatch lists the session fields to change; nil fields are left alone.
type SessionPatch struct {
	PagesVisited *int
	EndedAt      *time.Time
}

// Form submission statuses.
const (
	FormStatusNew       = "new"
	FormStatusProcessed = "processed"
	FormStatusSpam      = "spam"
)

// ValidFormStatus reports whether s is a known submission status.
func ValidFormStatus(s string) bool {
	return s == FormStatusNew || s == FormStatusProcessed || s == FormStatusSpam
}

// FormSubmission is a lead captured from one of the site forms.
type FormSubmission struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	FormType    string    `json:"form_type"`
	Company     string    `json:"company,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Message     string    `json:"message,omitempty"`
	RequestType string    `json:"request_type,omitempty"`
	IPHash      string    `json:"-"`
	Status      string    `json:"status"`
}

// Config is the immutable collector configuration handed to NewIngestor.
type Config struct {
	// Salt is appended to the client IP before hashing.
	Salt string
	// HashLength is the number of hex characters kept from the digest.
	// The hash is a privacy mask, not a credential.
	HashLength int
	// ExcludedPrefixes are path prefixes that are never tracked.
	ExcludedPrefixes []string
	// ExcludedExtensions are static asset extensions that are never tracked.
	ExcludedExtensions []string
	// InternalHosts are referrer keywords that mark same-site navigation.
	InternalHosts []string
	// Location decides which calendar day a timestamp belongs to.
	Location *time.Location
}

// DefaultConfig returns the collector settings used in production.
func DefaultConfig() Config {
	return Config{
		Salt:       "trexim-analytics-2026",
		HashLength: 16,
		ExcludedPrefixes: []string{
			"/static", "/public", "/uploads", "/admin", "/api",
			"/favicon", "/robots.txt", "/sitemap", "/feed.xml", "/metrics", "/_",
		},
		ExcludedExtensions: []string{
			".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".gif",
			".svg", ".ico", ".webp", ".woff", ".woff2",
		},
		InternalHosts: []string{"trexim"},
		Location:      time.Local,
	}
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// HashIP returns the salted, truncated SHA-256 of ip.
func (c Config) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + c.Salt))
	h := hex.EncodeToString(sum[:])
	if c.HashLength > 0 && c.HashLength < len(h) {
		return h[:c.HashLength]
	}
	return h
}

// ShouldTrack applies the path and response policy for page views.
// User-Agent checks happen separately.
func (c Config) ShouldTrack(method, p string, status int) bool {
	if method != http.MethodGet || status != http.StatusOK {
		return false
	}
	for _, prefix := range c.ExcludedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}
	ext := strings.ToLower(path.Ext(p))
	for _, excluded := range c.ExcludedExtensions {
		if ext == excluded {
			return false
		}
	}
	return true
}

// ClientIP resolves the visitor address: the first X-Forwarded-For entry
// when present, otherwise the peer address of the connection.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
