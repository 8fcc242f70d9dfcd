package trexim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Trexim
url: https://trexim.ua
timezone: Europe/Kyiv
analytics_internal_hosts: [trexim, trexim.com.ua]
analytics_query_timeout: 3s
post_cache_ttl: 1m
cookie_secure: true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://trexim.ua", cfg.URL)
	assert.Equal(t, []string{"trexim", "trexim.com.ua"}, cfg.AnalyticsInternalHosts)
	assert.Equal(t, 3*time.Second, cfg.AnalyticsQueryTimeout)
	assert.Equal(t, time.Minute, cfg.PostCacheTTL)
	assert.True(t, cfg.CookieSecure)

	cfg.setDefaults()
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 60, cfg.AnalyticsRateLimit)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, SiteConfig{}, cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "Env Site")
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("ANALYTICS_DISABLED", "true")
	t.Setenv("ANALYTICS_HASH_LENGTH", "12")
	t.Setenv("ANALYTICS_INTERNAL_HOSTS", "a.example, b.example,")
	t.Setenv("POST_CACHE_TTL", "30s")

	cfg := SiteConfig{Name: "File Site", URL: "https://file.example"}
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "Env Site", cfg.Name)
	assert.Equal(t, "https://file.example", cfg.URL)
	assert.Equal(t, "secret", cfg.AdminPassword)
	assert.True(t, cfg.AnalyticsDisabled)
	assert.Equal(t, 12, cfg.AnalyticsHashLength)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.AnalyticsInternalHosts)
	assert.Equal(t, 30*time.Second, cfg.PostCacheTTL)
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("ANALYTICS_RATE_LIMIT", "lots")
	var cfg SiteConfig
	err := ApplyEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYTICS_RATE_LIMIT")
}

func TestValidate(t *testing.T) {
	cfg := SiteConfig{AdminPassword: "pw", SessionSecret: "s"}
	assert.NoError(t, cfg.validate())

	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.validate())

	assert.Error(t, SiteConfig{SessionSecret: "s"}.validate())
	assert.Error(t, SiteConfig{AdminPassword: "pw"}.validate())
}
