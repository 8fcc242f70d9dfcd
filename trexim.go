// Package trexim is the bilingual (Ukrainian/English) marketing site of
// Trexim: public pages, a blog with an admin CMS, lead forms and
// first-party analytics, built with Go, Echo and templ.
//
// Templates are supplied through ViewFuncs so the site owns its markup,
// while trexim handles handlers, middleware and database operations.
package trexim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/trexim/analytics"
	"github.com/eringen/trexim/database"
)

// ViewFuncs holds the templ components the App renders pages with.
type ViewFuncs struct {
	Home            func(HomePage) templ.Component
	Blog            func(BlogPage) templ.Component
	Post            func(PostPage) templ.Component
	Page            func(StaticPage) templ.Component
	AdminLogin      func(showError bool, csrfToken string) templ.Component
	AdminDashboard  func(AdminDashboard) templ.Component
	AdminPostForm   func(AdminPostForm) templ.Component
	AdminReferences func(AdminReferences) templ.Component
	AdminImages     func(images []Image, csrfToken string) templ.Component
	AdminForms      func(AdminForms) templ.Component
	AdminAnalytics  func(csrfToken string) templ.Component
	NotFound        func(lang Lang) templ.Component
	ServerError     func(lang Lang) templ.Component
}

// StaticPages are the marketing pages served at /<slug>/.
var StaticPages = []string{"about", "services", "pricing", "partners", "tools", "contact"}

// App is the central application. It wires together the database, stores,
// cache, analytics, middleware and templates.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	DB        *database.DB
	Store     *Store
	Cache     *PostCache
	Views     ViewFuncs
	Ingestor  *analytics.Ingestor
	Analytics *analytics.Service
	Registry  *prometheus.Registry

	analyticsStore   *analytics.Store
	analyticsHandler *analytics.Handler
	loginLimiter     *analytics.RateLimiter
	customRoutes     []func(*App)
}

// New creates an App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the database, prepares the stores and registers middleware
// and routes. Start calls it; tests call it directly.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.validate(); err != nil {
		return err
	}
	a.Echo.Logger.SetLevel(parseLogLevel(a.Config.LogLevel))

	db, err := database.Open(a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("trexim: open database: %w", err)
	}
	a.DB = db

	store, err := NewStore(db)
	if err != nil {
		return fmt.Errorf("trexim: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.loginLimiter = analytics.NewRateLimiter(5, time.Minute)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Form submissions live in the analytics store, so it is opened even
	// when tracking is disabled.
	if err := a.initAnalytics(ctx); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) initAnalytics(ctx context.Context) error {
	store, err := analytics.NewStore(a.DB)
	if err != nil {
		return fmt.Errorf("trexim: init analytics: %w", err)
	}
	a.analyticsStore = store

	cfg := analytics.DefaultConfig()
	if a.Config.AnalyticsSalt != "" {
		cfg.Salt = a.Config.AnalyticsSalt
	} else if cfg.Salt, err = store.EnsureSalt(ctx); err != nil {
		return fmt.Errorf("trexim: init analytics salt: %w", err)
	}
	if a.Config.AnalyticsHashLength > 0 {
		cfg.HashLength = a.Config.AnalyticsHashLength
	}
	if len(a.Config.AnalyticsInternalHosts) > 0 {
		cfg.InternalHosts = a.Config.AnalyticsInternalHosts
	}
	cfg.Location, _ = a.Config.location()

	metrics := analytics.NewMetrics(a.Registry)
	a.Ingestor = analytics.NewIngestor(store, cfg,
		analytics.WithLogger(a.Echo.Logger),
		analytics.WithMetrics(metrics),
	)
	a.Analytics = analytics.NewService(store, cfg, analytics.WithServiceMetrics(metrics))
	a.analyticsHandler = analytics.NewHandler(a.Ingestor, a.Analytics,
		analytics.WithQueryTimeout(a.Config.AnalyticsQueryTimeout),
		analytics.WithRateLimiter(analytics.NewRateLimiter(a.Config.AnalyticsRateLimit, time.Minute)),
		analytics.WithHandlerMetrics(metrics),
	)
	return nil
}

// Start initializes the App and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets are served under /public/ before the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/analytics.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.Config.StaticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/blog/", a.handleBlog)
	e.GET("/blog/:slug/", a.handlePost)
	for _, slug := range StaticPages {
		e.GET("/"+slug+"/", a.handlePage(slug))
	}
	e.POST("/contact/", a.handleContact)

	// Admin
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.GET("/admin/post/:slug/", a.handleAdminPost, requireAdmin)
	e.POST("/admin/save/", a.handleAdminSave, requireAdmin)
	e.DELETE("/admin/post/:slug/", a.handleAdminDelete, requireAdmin)
	for _, kind := range []string{refCategories, refTags} {
		e.GET("/admin/"+kind+"/", a.handleRefList(kind), requireAdmin)
		e.POST("/admin/"+kind+"/", a.handleRefSave(kind), requireAdmin)
		e.DELETE("/admin/"+kind+"/:code/", a.handleRefDelete(kind), requireAdmin)
	}
	e.GET("/admin/images/", a.handleImageList, requireAdmin)
	e.POST("/admin/images/upload/", a.handleImageUpload, requireAdmin)
	e.DELETE("/admin/images/:filename/", a.handleImageDelete, requireAdmin)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})), requireAdmin)

	e.GET("/admin/forms/", a.handleAdminForms, requireAdmin)
	e.POST("/admin/forms/:id/status/", a.handleAdminFormStatus, requireAdmin)

	// Analytics
	if !a.Config.AnalyticsDisabled {
		a.analyticsHandler.RegisterPublic(e.Group("/api/analytics"))
		a.analyticsHandler.RegisterAdmin(e.Group("/admin/analytics/api", analytics.RequireAdmin(IsAdmin)))
		e.GET("/admin/analytics/", a.handleAdminAnalytics, requireAdmin)
	}
}

// Close releases the database and background goroutines.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.analyticsHandler != nil {
		a.analyticsHandler.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func parseLogLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
