package trexim

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/trexim/analytics"
)

const homepagePosts = 3

var pageTitles = map[string][2]string{
	"":         {"Головна", "Home"},
	"blog":     {"Блог", "Blog"},
	"about":    {"Про нас", "About us"},
	"services": {"Послуги", "Services"},
	"pricing":  {"Тарифи", "Pricing"},
	"partners": {"Партнери", "Partners"},
	"tools":    {"Інструменти", "Tools"},
	"contact":  {"Контакти", "Contact"},
}

// PageTitle returns the title of a static page slug in lang.
func PageTitle(slug string, lang Lang) string {
	t, ok := pageTitles[slug]
	if !ok {
		return slug
	}
	if lang == LangEN {
		return t[1]
	}
	return t[0]
}

func langOf(c echo.Context) Lang {
	return ParseLang(c.QueryParam("lang"))
}

func (a *App) pageMeta(lang Lang, title, description string, segments ...string) PageMeta {
	if description == "" {
		description = a.Config.Description
	}
	return PageMeta{
		Title:       title,
		Description: description,
		URL:         BuildURL(a.Config.URL, segments...),
		OGType:      "website",
		Lang:        lang,
	}
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	lang := langOf(c)
	posts, err := a.Cache.ListHomepagePosts(ctx, lang, homepagePosts)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		if posts, err = a.Cache.ListPosts(ctx, lang, ""); err != nil {
			return err
		}
		if len(posts) > homepagePosts {
			posts = posts[:homepagePosts]
		}
	}
	refs, err := a.Cache.References(ctx)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(HomePage{
		Meta:  a.pageMeta(lang, a.Config.Name, ""),
		Site:  a.Config,
		Posts: posts,
		Refs:  refs,
	}))
}

func (a *App) handleBlog(c echo.Context) error {
	ctx := c.Request().Context()
	lang := langOf(c)
	tag := normalizeCode(c.QueryParam("tag"))
	posts, err := a.Cache.ListPosts(ctx, lang, tag)
	if err != nil {
		return err
	}
	refs, err := a.Cache.References(ctx)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Blog(BlogPage{
		Meta:      a.pageMeta(lang, PageTitle("blog", lang), "", "blog"),
		Site:      a.Config,
		Posts:     posts,
		Refs:      refs,
		ActiveTag: tag,
	}))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	lang := langOf(c)
	post, err := a.Cache.GetPost(ctx, c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(lang))
	}
	if err != nil {
		return err
	}
	posts, err := a.Cache.ListPosts(ctx, lang, "")
	if err != nil {
		return err
	}
	refs, err := a.Cache.References(ctx)
	if err != nil {
		return err
	}
	t := post.In(lang)
	meta := a.pageMeta(lang, t.Title, t.Excerpt, "blog", post.Slug)
	meta.OGType = "article"
	return Render(c, a.Views.Post(PostPage{
		Meta:    meta,
		Site:    a.Config,
		Post:    post,
		Related: FilterRelatedPosts(post, posts),
		Refs:    refs,
	}))
}

func (a *App) handlePage(slug string) echo.HandlerFunc {
	return func(c echo.Context) error {
		lang := langOf(c)
		return Render(c, a.Views.Page(StaticPage{
			Meta:      a.pageMeta(lang, PageTitle(slug, lang), "", slug),
			Site:      a.Config,
			Slug:      slug,
			CSRFToken: CsrfToken(c),
			Sent:      c.QueryParam("sent") == "1",
		}))
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), LangUK, "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	lang := langOf(c)
	posts, err := a.Cache.ListPosts(c.Request().Context(), lang, "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts, lang)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

// handleRobots serves the site's robots.txt when present, otherwise a
// generated one that keeps crawlers out of admin and API routes.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\nSitemap: " + strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	lang := langOf(c)
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(lang))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			_ = c.JSON(code, map[string]string{"error": "Internal server error"})
			return
		}
		_ = RenderStatus(c, code, a.Views.ServerError(lang))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// clientHash is the privacy-preserving hash of the requesting IP.
func (a *App) clientHash(c echo.Context) string {
	return a.Ingestor.Config().HashIP(analytics.ClientIP(c.Request()))
}
