package analytics

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"

	"github.com/eringen/trexim/database"
)

// testNow is a Wednesday.
var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	return cfg
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func newTestIngestor(store *Store) (*Ingestor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New("test")
	logger.SetOutput(&buf)
	ing := NewIngestor(store, testConfig(),
		WithLogger(logger),
		WithClock(func() time.Time { return testNow }),
	)
	return ing, &buf
}

func newTestService(store *Store) *Service {
	return NewService(store, testConfig(), WithServiceClock(func() time.Time { return testNow }))
}

func addView(t *testing.T, s *Store, at time.Time, path, ipHash string, mods ...func(*PageView)) {
	t.Helper()
	pv := PageView{
		Timestamp: at,
		Path:      path,
		IPHash:    ipHash,
		Referrer:  ReferrerDirect,
		Browser:   "Chrome",
		Device:    DeviceDesktop,
		OS:        "Linux",
	}
	for _, m := range mods {
		m(&pv)
	}
	require.NoError(t, s.InsertPageView(context.Background(), pv))
}

func addEvent(t *testing.T, s *Store, at time.Time, sessionID, eventType string) {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), Event{
		Timestamp: at,
		SessionID: sessionID,
		Type:      eventType,
	}))
}

func countAll(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
