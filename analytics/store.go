package analytics

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/trexim/database"
)

// Store provides database operations for analytics.
type Store struct {
	db *database.DB
}

// NewStore creates the analytics tables if needed and returns the store.
// The handle is shared with other stores and is not closed by Store.
func NewStore(db *database.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(s.db.DDL(`
		CREATE TABLE IF NOT EXISTS page_views (
			id {{id}},
			timestamp {{ts}} NOT NULL,
			path TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT,
			referrer TEXT,
			browser TEXT,
			device TEXT,
			os TEXT,
			country TEXT
		);

		CREATE TABLE IF NOT EXISTS analytics_sessions (
			id TEXT PRIMARY KEY,
			started_at {{ts}} NOT NULL,
			ended_at {{ts}},
			ip_hash TEXT NOT NULL,
			pages_visited INTEGER NOT NULL DEFAULT 1,
			consent_given INTEGER NOT NULL DEFAULT 0,
			user_agent TEXT
		);

		CREATE TABLE IF NOT EXISTS analytics_events (
			id {{id}},
			timestamp {{ts}} NOT NULL,
			session_id TEXT,
			event_type TEXT NOT NULL,
			event_data TEXT,
			path TEXT
		);

		CREATE TABLE IF NOT EXISTS form_submissions (
			id {{id}},
			timestamp {{ts}} NOT NULL,
			form_type TEXT NOT NULL,
			company TEXT,
			email TEXT,
			phone TEXT,
			message TEXT,
			request_type TEXT,
			ip_hash TEXT,
			status TEXT NOT NULL DEFAULT 'new'
		);

		CREATE INDEX IF NOT EXISTS idx_page_views_timestamp ON page_views(timestamp);
		CREATE INDEX IF NOT EXISTS idx_page_views_path ON page_views(path);
		CREATE INDEX IF NOT EXISTS idx_page_views_ip_hash ON page_views(ip_hash);
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON analytics_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events(event_type);
		CREATE INDEX IF NOT EXISTS idx_events_session ON analytics_events(session_id);
		CREATE INDEX IF NOT EXISTS idx_form_submissions_timestamp ON form_submissions(timestamp);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`))
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

// migrate applies incremental schema migrations based on a version stored in the settings table.
func (s *Store) migrate() error {
	ctx := context.Background()
	verStr, err := s.GetSetting(ctx, "analytics_schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return s.SetSetting(ctx, "analytics_schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT value FROM settings WHERE key = ?`), key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`), key, value)
	return err
}

// EnsureSalt returns the persisted per-installation hash salt, generating
// and storing a random one on first use.
func (s *Store) EnsureSalt(ctx context.Context) (string, error) {
	salt, err := s.GetSetting(ctx, "hash_salt")
	if err != nil {
		return "", fmt.Errorf("read hash salt: %w", err)
	}
	if salt != "" {
		return salt, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(b)
	if err := s.SetSetting(ctx, "hash_salt", salt); err != nil {
		return "", fmt.Errorf("store hash salt: %w", err)
	}
	return salt, nil
}

// InsertPageView stores one page view.
func (s *Store) InsertPageView(ctx context.Context, pv PageView) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO page_views (timestamp, path, ip_hash, user_agent, referrer, browser, device, os, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		database.FormatTime(pv.Timestamp), pv.Path, pv.IPHash,
		database.NullString(pv.UserAgent), database.NullString(pv.Referrer),
		database.NullString(pv.Browser), database.NullString(pv.Device),
		database.NullString(pv.OS), database.NullString(pv.Country),
	)
	return err
}

// InsertEvent stores one client event.
func (s *Store) InsertEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO analytics_events (timestamp, session_id, event_type, event_data, path)
		VALUES (?, ?, ?, ?, ?)`),
		database.FormatTime(ev.Timestamp), database.NullString(ev.SessionID), ev.Type,
		database.NullString(ev.Data), database.NullString(ev.Path),
	)
	return err
}

// InsertFormSubmission stores one lead form submission.
func (s *Store) InsertFormSubmission(ctx context.Context, f FormSubmission) error {
	status := f.Status
	if status == "" {
		status = FormStatusNew
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO form_submissions (timestamp, form_type, company, email, phone, message, request_type, ip_hash, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		database.FormatTime(f.Timestamp), f.FormType,
		database.NullString(f.Company), database.NullString(f.Email),
		database.NullString(f.Phone), database.NullString(f.Message),
		database.NullString(f.RequestType), database.NullString(f.IPHash), status,
	)
	return err
}

// SetFormStatus changes the status of a submission. Returns sql.ErrNoRows
// when id does not exist.
func (s *Store) SetFormStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE form_submissions SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertSession inserts a session or, when the id exists, refreshes its
// ip hash, user agent and consent flag. pages_visited is left untouched.
func (s *Store) UpsertSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO analytics_sessions (id, started_at, ip_hash, pages_visited, consent_given, user_agent)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ip_hash = excluded.ip_hash,
			user_agent = excluded.user_agent,
			consent_given = excluded.consent_given`),
		sess.ID, database.FormatTime(sess.StartedAt), sess.IPHash,
		boolInt(sess.ConsentGiven), database.NullString(sess.UserAgent),
	)
	return err
}

// PatchSession updates only the fields set in patch. An empty patch is a no-op.
func (s *Store) PatchSession(ctx context.Context, id string, patch SessionPatch) error {
	var sets []string
	var args []any
	if patch.PagesVisited != nil {
		sets = append(sets, "pages_visited = ?")
		args = append(args, *patch.PagesVisited)
	}
	if patch.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, database.FormatTime(*patch.EndedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := "UPDATE analytics_sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

// GetSession returns a session by id, or sql.ErrNoRows.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var (
		sess      Session
		started   database.Time
		ended     database.Time
		consent   int
		userAgent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, started_at, ended_at, ip_hash, pages_visited, consent_given, user_agent
		FROM analytics_sessions WHERE id = ?`), id).
		Scan(&sess.ID, &started, &ended, &sess.IPHash, &sess.PagesVisited, &consent, &userAgent)
	if err != nil {
		return Session{}, err
	}
	sess.StartedAt = started.Time
	sess.EndedAt = ended.Ptr()
	sess.ConsentGiven = consent == 1
	sess.UserAgent = userAgent.String
	return sess, nil
}

// Span is a half-open time range [From, To). A zero To means no upper bound.
type Span struct {
	From, To time.Time
}

func (sp Span) where(extra string) (string, []any) {
	clause := "WHERE timestamp >= ?"
	args := []any{database.FormatTime(sp.From)}
	if !sp.To.IsZero() {
		clause += " AND timestamp < ?"
		args = append(args, database.FormatTime(sp.To))
	}
	if extra != "" {
		clause += " AND " + extra
	}
	return clause, args
}

func (s *Store) count(ctx context.Context, expr, table string, sp Span, extra string, extraArgs ...any) (int, error) {
	where, args := sp.where(extra)
	args = append(args, extraArgs...)
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+expr+" FROM "+table+" "+where), args...).Scan(&n)
	return n, err
}

// CountPageViews counts page view rows in sp.
func (s *Store) CountPageViews(ctx context.Context, sp Span) (int, error) {
	return s.count(ctx, "COUNT(*)", "page_views", sp, "")
}

// CountVisitors counts distinct ip hashes in sp.
func (s *Store) CountVisitors(ctx context.Context, sp Span) (int, error) {
	return s.count(ctx, "COUNT(DISTINCT ip_hash)", "page_views", sp, "")
}

// CountEvents counts events of eventType in sp.
func (s *Store) CountEvents(ctx context.Context, eventType string, sp Span) (int, error) {
	return s.count(ctx, "COUNT(*)", "analytics_events", sp, "event_type = ?", eventType)
}

// Visit is the slice of a page view the daily series needs.
type Visit struct {
	At     time.Time
	IPHash string
}

// Visits returns timestamp and ip hash of every page view since from.
func (s *Store) Visits(ctx context.Context, from time.Time) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT timestamp, ip_hash FROM page_views WHERE timestamp >= ? ORDER BY timestamp`),
		database.FormatTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var at database.Time
		var v Visit
		if err := rows.Scan(&at, &v.IPHash); err != nil {
			return nil, err
		}
		v.At = at.Time
		out = append(out, v)
	}
	return out, rows.Err()
}

// Dimension columns of page_views that may be grouped on.
const (
	dimReferrer = "referrer"
	dimDevice   = "device"
	dimBrowser  = "browser"
	dimOS       = "os"
)

// DimensionCount is a raw group-by row; Name is empty for NULL.
type DimensionCount struct {
	Name  string
	Count int
}

// GroupPageViews counts page views since from grouped by one dimension column.
func (s *Store) GroupPageViews(ctx context.Context, column string, from time.Time) ([]DimensionCount, error) {
	switch column {
	case dimReferrer, dimDevice, dimBrowser, dimOS:
	default:
		return nil, fmt.Errorf("unknown dimension %q", column)
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT `+column+`, COUNT(*) AS n FROM page_views
		WHERE timestamp >= ?
		GROUP BY `+column+`
		ORDER BY n DESC`), database.FormatTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DimensionCount
	for rows.Next() {
		var name sql.NullString
		var d DimensionCount
		if err := rows.Scan(&name, &d.Count); err != nil {
			return nil, err
		}
		d.Name = name.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// PathCount is a raw popular-page row.
type PathCount struct {
	Path     string
	Views    int
	Visitors int
}

// TopPaths returns the most viewed paths since from.
func (s *Store) TopPaths(ctx context.Context, from time.Time, limit int) ([]PathCount, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT path, COUNT(*) AS views, COUNT(DISTINCT ip_hash) AS visitors
		FROM page_views
		WHERE timestamp >= ?
		GROUP BY path
		ORDER BY views DESC, path ASC
		LIMIT ?`), database.FormatTime(from), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PathCount
	for rows.Next() {
		var p PathCount
		if err := rows.Scan(&p.Path, &p.Views, &p.Visitors); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SessionSpan is the first and last event time of one session.
type SessionSpan struct {
	First, Last time.Time
}

// SessionSpans returns, for every session with more than one event since
// from, the timestamps of its first and last event.
func (s *Store) SessionSpans(ctx context.Context, from time.Time) ([]SessionSpan, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT MIN(timestamp), MAX(timestamp)
		FROM analytics_events
		WHERE timestamp >= ? AND session_id IS NOT NULL
		GROUP BY session_id
		HAVING COUNT(*) > 1`), database.FormatTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSpan
	for rows.Next() {
		var first, last database.Time
		if err := rows.Scan(&first, &last); err != nil {
			return nil, err
		}
		out = append(out, SessionSpan{First: first.Time, Last: last.Time})
	}
	return out, rows.Err()
}

// RecentEvents returns the latest events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, timestamp, session_id, event_type, event_data, path
		FROM analytics_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var ev Event
		var at database.Time
		var sessionID, data, p sql.NullString
		if err := rows.Scan(&ev.ID, &at, &sessionID, &ev.Type, &data, &p); err != nil {
			return nil, err
		}
		ev.Timestamp = at.Time
		ev.SessionID = sessionID.String
		ev.Data = data.String
		ev.Path = p.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentFormSubmissions returns submissions since from, newest first.
func (s *Store) RecentFormSubmissions(ctx context.Context, from time.Time, limit int) ([]FormSubmission, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, timestamp, form_type, company, email, phone, message, request_type, status
		FROM form_submissions
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`), database.FormatTime(from), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FormSubmission{}
	for rows.Next() {
		var f FormSubmission
		var at database.Time
		var company, email, phone, message, reqType sql.NullString
		if err := rows.Scan(&f.ID, &at, &f.FormType, &company, &email, &phone, &message, &reqType, &f.Status); err != nil {
			return nil, err
		}
		f.Timestamp = at.Time
		f.Company = company.String
		f.Email = email.String
		f.Phone = phone.String
		f.Message = message.String
		f.RequestType = reqType.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
