package trexim

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	sessionName   = "admin_session"
	sessionMaxAge = 12 * time.Hour

	// Uploads are capped at maxUploadSize; the rest is multipart overhead.
	bodyLimit = "12M"

	contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'"
)

func isAnalyticsAPI(path string) bool {
	return strings.HasPrefix(path, "/api/analytics/")
}

func isAsset(path string) bool {
	return strings.HasPrefix(path, "/public/")
}

// noSlashPaths are served without the trailing slash the rest of the site uses.
func noSlashPath(path string) bool {
	switch path {
	case "/sitemap.xml", "/feed.xml", "/robots.txt", "/metrics", "/favicon.svg":
		return true
	}
	return strings.HasPrefix(path, "/public") ||
		strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/admin/analytics/api/")
}

func (a *App) setupMiddleware() {
	e := a.Echo

	// The site runs behind a reverse proxy on a private network.
	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: func(c echo.Context) bool { return isAsset(c.Request().URL.Path) },
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: contentSecurityPolicy,
		HSTSMaxAge:            31536000,
	}))
	e.Use(session.Middleware(a.newSessionStore()))
	e.Use(a.csrf())
	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper:      func(c echo.Context) bool { return noSlashPath(c.Request().URL.Path) },
	}))
	e.Use(cacheControl, contentLanguage)

	if !a.Config.AnalyticsDisabled {
		e.Use(a.Ingestor.Tracker())
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s) id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	})
}

// csrf protects every form post. The analytics API is exempt: it is called
// by the tracking script with JSON and gated by consent instead.
func (a *App) csrf() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper:        func(c echo.Context) bool { return isAnalyticsAPI(c.Request().URL.Path) },
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	})
}

func cacheControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		policy := "public, max-age=3600"
		switch {
		case isAsset(path):
			policy = "public, max-age=31536000, immutable"
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			policy = "public, max-age=86400"
		case strings.HasPrefix(path, "/admin"), strings.HasPrefix(path, "/api/"),
			path == "/metrics", path == "/contact/":
			policy = "no-store"
		}
		c.Response().Header().Set("Cache-Control", policy)
		return next(c)
	}
}

// contentLanguage labels public responses with the language picked by ?lang.
func contentLanguage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if path := c.Request().URL.Path; !isAsset(path) && !strings.HasPrefix(path, "/admin") {
			c.Response().Header().Set("Content-Language", string(langOf(c)))
		}
		return next(c)
	}
}

// requireAdmin redirects anonymous visitors of HTML admin pages to the login form.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return c.Redirect(http.StatusSeeOther, "/admin/")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(sessionMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// IsAdmin reports whether the request carries an authenticated admin session.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, _ := sess.Values["authenticated"].(bool)
	return auth
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	sess.Values["login_at"] = time.Now().Unix()
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken returns the CSRF token for forms rendered in this request.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
