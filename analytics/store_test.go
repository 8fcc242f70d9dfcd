package analytics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, err := NewStore(s.db)
	require.NoError(t, err)

	v, err := s.GetSetting(context.Background(), "analytics_schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestEnsureSaltPersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	salt, err := s.EnsureSalt(ctx)
	require.NoError(t, err)
	assert.Len(t, salt, 64)

	again, err := s.EnsureSalt(ctx)
	require.NoError(t, err)
	assert.Equal(t, salt, again)
}

func TestUpsertSessionKeepsPagesVisited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, Session{
		ID: "a1b2c3d4", StartedAt: testNow, IPHash: "hash1", ConsentGiven: true, UserAgent: "ua1",
	}))
	pages := 4
	require.NoError(t, s.PatchSession(ctx, "a1b2c3d4", SessionPatch{PagesVisited: &pages}))

	require.NoError(t, s.UpsertSession(ctx, Session{
		ID: "a1b2c3d4", StartedAt: testNow.Add(time.Hour), IPHash: "hash2", ConsentGiven: false, UserAgent: "ua2",
	}))

	sess, err := s.GetSession(ctx, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, 4, sess.PagesVisited)
	assert.False(t, sess.ConsentGiven)
	assert.Equal(t, "hash2", sess.IPHash)
	assert.Equal(t, "ua2", sess.UserAgent)
	assert.True(t, sess.StartedAt.Equal(testNow))
	assert.Nil(t, sess.EndedAt)
}

func TestPatchSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertSession(ctx, Session{ID: "0000ffff", StartedAt: testNow, IPHash: "h", ConsentGiven: true}))

	require.NoError(t, s.PatchSession(ctx, "0000ffff", SessionPatch{}))
	sess, err := s.GetSession(ctx, "0000ffff")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.PagesVisited)

	ended := testNow.Add(12 * time.Minute)
	require.NoError(t, s.PatchSession(ctx, "0000ffff", SessionPatch{EndedAt: &ended}))
	sess, err = s.GetSession(ctx, "0000ffff")
	require.NoError(t, err)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(ended))
	assert.Equal(t, 1, sess.PagesVisited)

	_, err = s.GetSession(ctx, "missing0")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCountsRespectSpan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addView(t, s, testNow.Add(-time.Hour), "/", "a")
	addView(t, s, testNow.Add(-2*time.Hour), "/", "a")
	addView(t, s, testNow.Add(-3*time.Hour), "/about/", "b")
	addView(t, s, testNow.Add(-10*24*time.Hour), "/", "c")

	sp := Span{From: testNow.Add(-24 * time.Hour)}
	views, err := s.CountPageViews(ctx, sp)
	require.NoError(t, err)
	assert.Equal(t, 3, views)

	visitors, err := s.CountVisitors(ctx, sp)
	require.NoError(t, err)
	assert.Equal(t, 2, visitors)

	bounded := Span{From: testNow.Add(-30 * 24 * time.Hour), To: testNow.Add(-24 * time.Hour)}
	views, err = s.CountPageViews(ctx, bounded)
	require.NoError(t, err)
	assert.Equal(t, 1, views)
}

func TestSetFormStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertFormSubmission(ctx, FormSubmission{
		Timestamp: testNow, FormType: "contact", Email: "lead@example.com",
	}))

	forms, err := s.RecentFormSubmissions(ctx, testNow.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, FormStatusNew, forms[0].Status)

	require.NoError(t, s.SetFormStatus(ctx, forms[0].ID, FormStatusSpam))
	forms, err = s.RecentFormSubmissions(ctx, testNow.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, FormStatusSpam, forms[0].Status)

	assert.ErrorIs(t, s.SetFormStatus(ctx, 999, FormStatusProcessed), sql.ErrNoRows)
}

func TestGroupPageViewsRejectsUnknownColumn(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GroupPageViews(context.Background(), "ip_hash; DROP TABLE page_views", testNow)
	assert.Error(t, err)
}
