package trexim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eringen/trexim/database"
)

// Content store errors.
var (
	ErrNotFound = errors.New("not found")
	ErrInUse    = errors.New("referenced by existing posts")
)

// Store provides CRUD operations for posts, reference data and images.
type Store struct {
	db *database.DB
}

// NewStore ensures the content schema on db. The handle is shared with the
// analytics store; closing it is the caller's job.
func NewStore(db *database.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure content schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(s.db.DDL(`
		CREATE TABLE IF NOT EXISTS blog_categories (
			id {{id}},
			code TEXT NOT NULL UNIQUE,
			name_uk TEXT NOT NULL,
			name_en TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS blog_tags (
			id {{id}},
			code TEXT NOT NULL UNIQUE,
			name_uk TEXT NOT NULL,
			name_en TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS blog_posts (
			slug TEXT PRIMARY KEY,
			category TEXT,
			emoji TEXT,
			color TEXT NOT NULL DEFAULT 'orange',
			read_time INTEGER NOT NULL DEFAULT 5,
			image_url TEXT,
			status TEXT NOT NULL DEFAULT 'draft',
			show_on_homepage INTEGER NOT NULL DEFAULT 0,
			published_at {{ts}},
			updated_at {{ts}} NOT NULL,
			title_uk TEXT NOT NULL,
			excerpt_uk TEXT,
			content_uk TEXT,
			date_uk TEXT,
			title_en TEXT NOT NULL,
			excerpt_en TEXT,
			content_en TEXT,
			date_en TEXT
		);

		CREATE TABLE IF NOT EXISTS post_tags (
			post_slug TEXT NOT NULL,
			tag_code TEXT NOT NULL,
			PRIMARY KEY (post_slug, tag_code)
		);

		CREATE TABLE IF NOT EXISTS images (
			filename TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at {{ts}} NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_posts_status ON blog_posts(status);
		CREATE INDEX IF NOT EXISTS idx_posts_published_at ON blog_posts(published_at);
		CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag_code);
	`))
	return err
}

const postColumns = `slug, category, emoji, color, read_time, image_url, status, show_on_homepage,
	published_at, updated_at, title_uk, excerpt_uk, content_uk, date_uk,
	title_en, excerpt_en, content_en, date_en`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (BlogPost, error) {
	var p BlogPost
	var category, emoji, imageURL sql.NullString
	var excerptUK, contentUK, dateUK sql.NullString
	var excerptEN, contentEN, dateEN sql.NullString
	var homepage int
	var publishedAt, updatedAt database.Time
	err := r.Scan(&p.Slug, &category, &emoji, &p.Color, &p.ReadTime, &imageURL, &p.Status, &homepage,
		&publishedAt, &updatedAt, &p.UK.Title, &excerptUK, &contentUK, &dateUK,
		&p.EN.Title, &excerptEN, &contentEN, &dateEN)
	if err != nil {
		return BlogPost{}, err
	}
	p.Category = category.String
	p.Emoji = emoji.String
	p.ImageURL = imageURL.String
	p.ShowOnHomepage = homepage == 1
	p.PublishedAt = publishedAt.Ptr()
	p.UpdatedAt = updatedAt.Time
	p.UK.Excerpt, p.UK.Content, p.UK.Date = excerptUK.String, contentUK.String, dateUK.String
	p.EN.Excerpt, p.EN.Content, p.EN.Date = excerptEN.String, contentEN.String, dateEN.String
	return p, nil
}

// queryPosts runs a post query and attaches tags to every row.
func (s *Store) queryPosts(ctx context.Context, where string, args ...any) ([]BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+postColumns+` FROM blog_posts `+where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	tags, err := s.postTags(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Tags = tags[posts[i].Slug]
	}
	return posts, nil
}

func (s *Store) postTags(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT post_slug, tag_code FROM post_tags ORDER BY post_slug, tag_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var slug, code string
		if err := rows.Scan(&slug, &code); err != nil {
			return nil, err
		}
		out[slug] = append(out[slug], code)
	}
	return out, rows.Err()
}

const publishedOrder = `ORDER BY published_at DESC, slug ASC`

// ListPosts returns published posts newest first. A non-empty tag limits
// the result to posts carrying that tag code. Posts without a title in
// lang are left out.
func (s *Store) ListPosts(ctx context.Context, lang Lang, tag string) ([]BlogPost, error) {
	posts, err := s.queryPosts(ctx, `WHERE status = ? `+publishedOrder, StatusPublished)
	if err != nil {
		return nil, err
	}
	return filterPosts(posts, lang, tag), nil
}

func filterPosts(posts []BlogPost, lang Lang, tag string) []BlogPost {
	var out []BlogPost
	for _, p := range posts {
		if lang == LangEN && p.EN.Title == "" {
			continue
		}
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ListHomepagePosts returns up to limit published posts flagged for the
// landing page.
func (s *Store) ListHomepagePosts(ctx context.Context, limit int) ([]BlogPost, error) {
	return s.queryPosts(ctx, `WHERE status = ? AND show_on_homepage = 1 `+publishedOrder+` LIMIT ?`,
		StatusPublished, limit)
}

// GetPost returns a published post by slug.
func (s *Store) GetPost(ctx context.Context, slug string) (BlogPost, error) {
	return s.getPost(ctx, `WHERE slug = ? AND status = ?`, slug, StatusPublished)
}

// GetPostAny returns a post by slug regardless of status (for admin).
func (s *Store) GetPostAny(ctx context.Context, slug string) (BlogPost, error) {
	return s.getPost(ctx, `WHERE slug = ?`, slug)
}

func (s *Store) getPost(ctx context.Context, where string, args ...any) (BlogPost, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+postColumns+` FROM blog_posts `+where), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return BlogPost{}, ErrNotFound
	}
	if err != nil {
		return BlogPost{}, err
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT tag_code FROM post_tags WHERE post_slug = ? ORDER BY tag_code`), p.Slug)
	if err != nil {
		return BlogPost{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return BlogPost{}, err
		}
		p.Tags = append(p.Tags, code)
	}
	return p, rows.Err()
}

// ListAllPosts returns every post (published and drafts), most recently
// edited first.
func (s *Store) ListAllPosts(ctx context.Context) ([]BlogPost, error) {
	return s.queryPosts(ctx, `ORDER BY updated_at DESC, slug ASC`)
}

// SavePost upserts p and replaces its tags. The publication time is set the
// first time a post is saved as published and kept afterwards.
func (s *Store) SavePost(ctx context.Context, p BlogPost) error {
	if p.Slug == "" {
		return errors.New("slug is required")
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Color == "" {
		p.Color = "orange"
	}
	if p.ReadTime <= 0 {
		p.ReadTime = 5
	}
	now := time.Now()
	if p.Published() && p.PublishedAt == nil {
		p.PublishedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO blog_posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			category = excluded.category,
			emoji = excluded.emoji,
			color = excluded.color,
			read_time = excluded.read_time,
			image_url = excluded.image_url,
			status = excluded.status,
			show_on_homepage = excluded.show_on_homepage,
			published_at = COALESCE(blog_posts.published_at, excluded.published_at),
			updated_at = excluded.updated_at,
			title_uk = excluded.title_uk,
			excerpt_uk = excluded.excerpt_uk,
			content_uk = excluded.content_uk,
			date_uk = excluded.date_uk,
			title_en = excluded.title_en,
			excerpt_en = excluded.excerpt_en,
			content_en = excluded.content_en,
			date_en = excluded.date_en`),
		p.Slug, database.NullString(p.Category), database.NullString(p.Emoji), p.Color, p.ReadTime,
		database.NullString(p.ImageURL), p.Status, boolInt(p.ShowOnHomepage),
		database.NullTime(p.PublishedAt), database.FormatTime(now),
		p.UK.Title, database.NullString(p.UK.Excerpt), database.NullString(p.UK.Content), database.NullString(p.UK.Date),
		p.EN.Title, database.NullString(p.EN.Excerpt), database.NullString(p.EN.Content), database.NullString(p.EN.Date),
	)
	if err != nil {
		return fmt.Errorf("save post: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM post_tags WHERE post_slug = ?`), p.Slug); err != nil {
		return fmt.Errorf("clear post tags: %w", err)
	}
	seen := make(map[string]bool, len(p.Tags))
	for _, t := range p.Tags {
		code := normalizeCode(t)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO post_tags (post_slug, tag_code) VALUES (?, ?)`), p.Slug, code); err != nil {
			return fmt.Errorf("save post tag %q: %w", code, err)
		}
	}
	return tx.Commit()
}

// DeletePost removes a post and its tag links.
func (s *Store) DeletePost(ctx context.Context, slug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM post_tags WHERE post_slug = ?`), slug); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM blog_posts WHERE slug = ?`), slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Reference tables.
const (
	tableCategories = "blog_categories"
	tableTags       = "blog_tags"
)

func (s *Store) listRefs(ctx context.Context, table string, activeOnly bool) ([]Reference, error) {
	q := `SELECT id, code, name_uk, name_en, active FROM ` + table
	if activeOnly {
		q += ` WHERE active = 1`
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY name_uk, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var r Reference
		var active int
		if err := rows.Scan(&r.ID, &r.Code, &r.NameUK, &r.NameEN, &active); err != nil {
			return nil, err
		}
		r.Active = active == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) saveRef(ctx context.Context, table string, r Reference) error {
	r.Code = normalizeCode(r.Code)
	if r.Code == "" || strings.TrimSpace(r.NameUK) == "" {
		return errors.New("code and Ukrainian name are required")
	}
	if r.NameEN == "" {
		r.NameEN = r.NameUK
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO `+table+` (code, name_uk, name_en, active) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name_uk = excluded.name_uk,
			name_en = excluded.name_en,
			active = excluded.active`),
		r.Code, r.NameUK, r.NameEN, boolInt(r.Active))
	return err
}

func (s *Store) deleteRef(ctx context.Context, table, usage, code string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(usage), code).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrInUse
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE code = ?`), code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCategories returns categories ordered by Ukrainian name.
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]Reference, error) {
	return s.listRefs(ctx, tableCategories, activeOnly)
}

// SaveCategory upserts a category by code.
func (s *Store) SaveCategory(ctx context.Context, r Reference) error {
	return s.saveRef(ctx, tableCategories, r)
}

// DeleteCategory removes a category. It fails with ErrInUse while a post
// still belongs to it.
func (s *Store) DeleteCategory(ctx context.Context, code string) error {
	return s.deleteRef(ctx, tableCategories, `SELECT COUNT(*) FROM blog_posts WHERE category = ?`, code)
}

// ListTags returns tags ordered by Ukrainian name.
func (s *Store) ListTags(ctx context.Context, activeOnly bool) ([]Reference, error) {
	return s.listRefs(ctx, tableTags, activeOnly)
}

// SaveTag upserts a tag by code.
func (s *Store) SaveTag(ctx context.Context, r Reference) error {
	return s.saveRef(ctx, tableTags, r)
}

// DeleteTag removes a tag. It fails with ErrInUse while a post carries it.
func (s *Store) DeleteTag(ctx context.Context, code string) error {
	return s.deleteRef(ctx, tableTags, `SELECT COUNT(*) FROM post_tags WHERE tag_code = ?`, code)
}

// ListImages returns uploaded images, newest first.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, original_name, width, height, size, uploaded_at
		FROM images ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		var at database.Time
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &at); err != nil {
			return nil, err
		}
		img.UploadedAt = at.Time
		out = append(out, img)
	}
	return out, rows.Err()
}

// ImageExists reports whether filename is already registered.
func (s *Store) ImageExists(ctx context.Context, filename string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM images WHERE filename = ?`), filename).Scan(&n)
	return n > 0, err
}

// SaveImage stores image metadata.
func (s *Store) SaveImage(ctx context.Context, img Image) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO images (filename, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, database.FormatTime(img.UploadedAt))
	return err
}

// DeleteImage removes image metadata.
func (s *Store) DeleteImage(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM images WHERE filename = ?`), filename)
	return err
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
