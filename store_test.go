package trexim

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/trexim/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func publishedPost(slug string, at time.Time, tags ...string) BlogPost {
	return BlogPost{
		Slug:        slug,
		Category:    "logistics",
		Tags:        tags,
		Status:      StatusPublished,
		PublishedAt: &at,
		UK:          Translation{Title: "Стаття " + slug, Excerpt: "Коротко", Content: "<p>Текст</p>"},
		EN:          Translation{Title: "Article " + slug},
	}
}

func TestSavePostDefaultsAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := publishedPost("customs", time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), "Import", "import", " export ")
	require.NoError(t, s.SavePost(ctx, p))

	got, err := s.GetPost(ctx, "customs")
	require.NoError(t, err)
	assert.Equal(t, "orange", got.Color)
	assert.Equal(t, 5, got.ReadTime)
	assert.Equal(t, []string{"export", "import"}, got.Tags)
	assert.Equal(t, "Стаття customs", got.UK.Title)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(*p.PublishedAt))
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSavePostKeepsFirstPublication(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePost(ctx, publishedPost("p", first)))

	edit := publishedPost("p", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	edit.UK.Title = "Оновлено"
	require.NoError(t, s.SavePost(ctx, edit))

	got, err := s.GetPost(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "Оновлено", got.UK.Title)
	assert.True(t, got.PublishedAt.Equal(first))
}

func TestDraftsAreHidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePost(ctx, BlogPost{Slug: "draft", UK: Translation{Title: "Чернетка"}}))

	_, err := s.GetPost(ctx, "draft")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetPostAny(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)

	posts, err := s.ListPosts(ctx, LangUK, "")
	require.NoError(t, err)
	assert.Empty(t, posts)

	all, err := s.ListAllPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListPostsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SavePost(ctx, publishedPost("old", base, "import")))
	require.NoError(t, s.SavePost(ctx, publishedPost("new", base.Add(48*time.Hour), "export")))
	ukOnly := publishedPost("uk-only", base.Add(24*time.Hour), "import")
	ukOnly.EN = Translation{}
	require.NoError(t, s.SavePost(ctx, ukOnly))

	posts, err := s.ListPosts(ctx, LangUK, "")
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "new", posts[0].Slug)
	assert.Equal(t, "old", posts[2].Slug)

	posts, err = s.ListPosts(ctx, LangEN, "")
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, err = s.ListPosts(ctx, LangUK, "IMPORT")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "uk-only", posts[0].Slug)
}

func TestListHomepagePosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, slug := range []string{"a", "b", "c"} {
		p := publishedPost(slug, base.Add(time.Duration(i)*time.Hour))
		p.ShowOnHomepage = slug != "b"
		require.NoError(t, s.SavePost(ctx, p))
	}

	posts, err := s.ListHomepagePosts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "c", posts[0].Slug)
}

func TestDeletePost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePost(ctx, publishedPost("gone", time.Now(), "import")))
	require.NoError(t, s.DeletePost(ctx, "gone"))
	assert.ErrorIs(t, s.DeletePost(ctx, "gone"), ErrNotFound)

	// The tag is free again once the post is gone.
	require.NoError(t, s.SaveTag(ctx, Reference{Code: "import", NameUK: "Імпорт"}))
	assert.NoError(t, s.DeleteTag(ctx, "import"))
}

func TestReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCategory(ctx, Reference{Code: " Logistics ", NameUK: "Логістика", Active: true}))
	require.NoError(t, s.SaveCategory(ctx, Reference{Code: "archive", NameUK: "Архів", NameEN: "Archive"}))
	assert.Error(t, s.SaveCategory(ctx, Reference{Code: "", NameUK: "x"}))

	all, err := s.ListCategories(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListCategories(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "logistics", active[0].Code)
	assert.Equal(t, "Логістика", active[0].NameEN, "English name falls back to Ukrainian")

	require.NoError(t, s.SavePost(ctx, publishedPost("p", time.Now())))
	assert.ErrorIs(t, s.DeleteCategory(ctx, "logistics"), ErrInUse)
	assert.NoError(t, s.DeleteCategory(ctx, "archive"))
	assert.ErrorIs(t, s.DeleteCategory(ctx, "archive"), ErrNotFound)
}

func TestImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	img := Image{Filename: "port.jpg", OriginalName: "Port.PNG", Width: 800, Height: 600, Size: 1024, UploadedAt: time.Now()}
	require.NoError(t, s.SaveImage(ctx, img))
	assert.True(t, database.IsUniqueViolation(s.SaveImage(ctx, img)))

	ok, err := s.ImageExists(ctx, "port.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	images, err := s.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "/public/uploads/port.jpg", images[0].URL())

	require.NoError(t, s.DeleteImage(ctx, "port.jpg"))
	ok, err = s.ImageExists(ctx, "port.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}
