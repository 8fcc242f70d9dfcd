package analytics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIPIsStableAndMasked(t *testing.T) {
	cfg := DefaultConfig()
	ip := "203.0.113.7"

	h1 := cfg.HashIP(ip)
	h2 := cfg.HashIP(ip)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
	assert.NotContains(t, h1, ip)
	assert.NotEqual(t, h1, cfg.HashIP("203.0.113.8"))

	other := cfg
	other.Salt = "another-salt"
	assert.NotEqual(t, h1, other.HashIP(ip))
}

func TestShouldTrack(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		method string
		path   string
		status int
		want   bool
	}{
		{http.MethodGet, "/", 200, true},
		{http.MethodGet, "/blog/hello/", 200, true},
		{http.MethodGet, "/admin/dashboard", 200, false},
		{http.MethodGet, "/api/analytics/event", 200, false},
		{http.MethodGet, "/static/app.css", 200, false},
		{http.MethodGet, "/favicon.ico", 200, false},
		{http.MethodGet, "/robots.txt", 200, false},
		{http.MethodGet, "/sitemap.xml", 200, false},
		{http.MethodGet, "/_health", 200, false},
		{http.MethodGet, "/logo.PNG", 200, false},
		{http.MethodGet, "/fonts/a.woff2", 200, false},
		{http.MethodPost, "/contact/", 200, false},
		{http.MethodGet, "/missing/", 404, false},
		{http.MethodGet, "/moved/", 301, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.ShouldTrack(tt.method, tt.path, tt.status), "%s %s %d", tt.method, tt.path, tt.status)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 198.51.100.4 , 10.0.0.1")
	assert.Equal(t, "198.51.100.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "")
	r.RemoteAddr = "not-a-hostport"
	assert.Equal(t, "not-a-hostport", ClientIP(r))
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want UserAgent
	}{
		{"", UserAgent{Unknown, DeviceDesktop, Unknown}},
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			UserAgent{"Chrome", DeviceDesktop, "Windows"},
		},
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			UserAgent{"Edge", DeviceDesktop, "Windows"},
		},
		{
			"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			UserAgent{"Firefox", DeviceDesktop, "Linux"},
		},
		{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			UserAgent{"Safari", DeviceDesktop, "macOS"},
		},
		{
			"Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0",
			UserAgent{"Firefox", DeviceMobile, "Android"},
		},
		{"Googlebot/2.1 (+http://www.google.com/bot.html)", UserAgent{Unknown, DeviceBot, Unknown}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseUserAgent(tt.ua), tt.ua)
	}
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("Googlebot/2.1 (+http://www.google.com/bot.html)"))
	assert.True(t, IsBot("Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X) Mobile Safari (compatible; Googlebot/2.1)"))
	assert.True(t, IsBot("SomeCrawler/1.0"))
	assert.False(t, IsBot("Mozilla/5.0 (Windows NT 10.0) Firefox/121.0"))
	assert.False(t, IsBot(""))
}

func TestCategorizeReferrer(t *testing.T) {
	cfg := DefaultConfig()
	tests := map[string]string{
		"":                               ReferrerDirect,
		"https://www.google.com/search":  "Google",
		"https://m.facebook.com/":        "Facebook",
		"https://l.instagram.com/":       "Instagram",
		"https://www.linkedin.com/feed/": "LinkedIn",
		"https://t.me/channel":           "Telegram",
		"https://x.com/someone":          "Twitter/X",
		"https://www.youtube.com/":       "YouTube",
		"https://www.bing.com/":          "Bing",
		"https://duckduckgo.com/":        "DuckDuckGo",
		"https://trexim.com.ua/about/":   ReferrerSelf,
		"https://example.org/":           ReferrerOther,
	}
	for ref, want := range tests {
		assert.Equal(t, want, cfg.CategorizeReferrer(ref), ref)
	}
}

func TestCategorizeReferrerCustomHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InternalHosts = []string{"example.org"}
	assert.Equal(t, ReferrerSelf, cfg.CategorizeReferrer("https://EXAMPLE.org/x"))
	assert.Equal(t, ReferrerOther, cfg.CategorizeReferrer("https://trexim.com.ua/"))
	assert.True(t, strings.HasPrefix(cfg.CategorizeReferrer("https://google.com"), "Google"))
}
