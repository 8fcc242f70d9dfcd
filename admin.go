package trexim

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/trexim/analytics"
)

// Reference kinds, used in admin URLs.
const (
	refCategories = "categories"
	refTags       = "tags"
)

// newPostSlug opens an empty editor.
const newPostSlug = "new"

// CheckPassword compares a login attempt against the configured admin
// password, which is either a bcrypt hash or plaintext.
func CheckPassword(configured, attempt string) bool {
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(attempt)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(attempt), []byte(configured)) == 1
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if CheckPassword(a.Config.AdminPassword, c.FormValue("password")) {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	c.Logger().Warnf("failed admin login from %s", ip)
	return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminPost(c echo.Context) error {
	ctx := c.Request().Context()
	var post BlogPost
	if slug := c.Param("slug"); slug != newPostSlug {
		var err error
		post, err = a.Store.GetPostAny(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		if err != nil {
			return err
		}
	}
	refs, err := a.allReferences(c)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminPostForm(AdminPostForm{Post: post, Refs: refs, CSRFToken: CsrfToken(c)}))
}

func (a *App) allReferences(c echo.Context) (References, error) {
	ctx := c.Request().Context()
	categories, err := a.Store.ListCategories(ctx, false)
	if err != nil {
		return References{}, err
	}
	tags, err := a.Store.ListTags(ctx, false)
	if err != nil {
		return References{}, err
	}
	return References{Categories: categories, Tags: tags}, nil
}

// postFromForm reads the post editor. The second result is a validation
// message for the dashboard.
func postFromForm(c echo.Context) (BlogPost, string) {
	p := BlogPost{
		Slug:           strings.TrimSpace(c.FormValue("slug")),
		Category:       normalizeCode(c.FormValue("category")),
		Tags:           FilterEmpty(c.Request().Form["tags"]),
		Emoji:          strings.TrimSpace(c.FormValue("emoji")),
		Color:          strings.TrimSpace(c.FormValue("color")),
		ImageURL:       strings.TrimSpace(c.FormValue("image_url")),
		Status:         StatusDraft,
		ShowOnHomepage: c.FormValue("show_on_homepage") != "",
		UK: Translation{
			Title:   strings.TrimSpace(c.FormValue("title_uk")),
			Excerpt: strings.TrimSpace(c.FormValue("excerpt_uk")),
			Content: c.FormValue("content_uk"),
			Date:    strings.TrimSpace(c.FormValue("date_uk")),
		},
		EN: Translation{
			Title:   strings.TrimSpace(c.FormValue("title_en")),
			Excerpt: strings.TrimSpace(c.FormValue("excerpt_en")),
			Content: c.FormValue("content_en"),
			Date:    strings.TrimSpace(c.FormValue("date_en")),
		},
	}
	if len(p.Tags) == 1 && strings.Contains(p.Tags[0], ",") {
		p.Tags = FilterEmpty(strings.Split(p.Tags[0], ","))
	}
	if c.FormValue("status") == StatusPublished {
		p.Status = StatusPublished
	}
	if n, err := strconv.Atoi(c.FormValue("read_time")); err == nil && n > 0 {
		p.ReadTime = n
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.EN.Title)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.UK.Title)
	}
	switch {
	case p.Slug == "" || p.Slug == newPostSlug:
		return p, "Slug is required. Add an English title or a slug."
	case p.UK.Title == "":
		return p, "Ukrainian title is required."
	}
	return p, ""
}

func (a *App) handleAdminSave(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	post, problem := postFromForm(c)
	if problem != "" {
		return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(problem))
	}
	if err := a.Store.SavePost(c.Request().Context(), post); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "saved")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	err := a.Store.DeletePost(c.Request().Context(), c.Param("slug"))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "deleted")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	posts, err := a.Store.ListAllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(AdminDashboard{Posts: posts, Message: msg, CSRFToken: CsrfToken(c)}))
}

func (a *App) listRefs(c echo.Context, kind string) ([]Reference, error) {
	if kind == refTags {
		return a.Store.ListTags(c.Request().Context(), false)
	}
	return a.Store.ListCategories(c.Request().Context(), false)
}

func (a *App) renderRefs(c echo.Context, kind, msg string) error {
	items, err := a.listRefs(c, kind)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminReferences(AdminReferences{
		Kind:      kind,
		Items:     items,
		Message:   msg,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleRefList(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return a.renderRefs(c, kind, c.QueryParam("msg"))
	}
}

func (a *App) handleRefSave(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ref := Reference{
			Code:   c.FormValue("code"),
			NameUK: strings.TrimSpace(c.FormValue("name_uk")),
			NameEN: strings.TrimSpace(c.FormValue("name_en")),
			Active: c.FormValue("active") != "",
		}
		save := a.Store.SaveCategory
		if kind == refTags {
			save = a.Store.SaveTag
		}
		if err := save(c.Request().Context(), ref); err != nil {
			c.Logger().Errorf("save %s: %v", kind, err)
			return a.renderRefs(c, kind, "Code and Ukrainian name are required.")
		}
		a.Cache.Invalidate()
		return a.renderRefs(c, kind, "saved")
	}
}

func (a *App) handleRefDelete(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		del := a.Store.DeleteCategory
		if kind == refTags {
			del = a.Store.DeleteTag
		}
		err := del(c.Request().Context(), c.Param("code"))
		switch {
		case errors.Is(err, ErrInUse):
			return a.renderRefs(c, kind, "Still used by posts; not deleted.")
		case errors.Is(err, ErrNotFound):
			return a.renderRefs(c, kind, "Not found.")
		case err != nil:
			return err
		}
		a.Cache.Invalidate()
		return a.renderRefs(c, kind, "deleted")
	}
}

func (a *App) handleAdminForms(c echo.Context) error {
	return a.renderForms(c, c.QueryParam("msg"))
}

func (a *App) renderForms(c echo.Context, msg string) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	forms, err := a.Analytics.FormSubmissions(c.Request().Context(), days, 100)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminForms(AdminForms{Forms: forms, Message: msg, CSRFToken: CsrfToken(c)}))
}

func (a *App) handleAdminFormStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid id")
	}
	status := c.FormValue("status")
	if !analytics.ValidFormStatus(status) {
		return c.String(http.StatusBadRequest, "Invalid status")
	}
	err = a.Analytics.SetFormStatus(c.Request().Context(), id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return c.NoContent(http.StatusNotFound)
	}
	if err != nil {
		return err
	}
	return a.renderForms(c, "updated")
}

func (a *App) handleAdminAnalytics(c echo.Context) error {
	return Render(c, a.Views.AdminAnalytics(CsrfToken(c)))
}
