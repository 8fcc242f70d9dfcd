package analytics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// Record kinds, used in logs and metric labels.
const (
	kindPageView = "page_view"
	kindEvent    = "event"
	kindForm     = "form_submission"
	kindSession  = "session"
)

// WriteResult is the outcome of a fire-and-forget write. Ingestion never
// returns an error to the request path; callers may inspect the result, and
// the Ingestor has already logged any failure.
type WriteResult struct {
	OK  bool
	Err error
}

// Ingestor persists page views, client events, sessions and form
// submissions. Every write is best effort.
type Ingestor struct {
	store   *Store
	cfg     Config
	logger  echo.Logger
	metrics *Metrics
	now     func() time.Time
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets the logger write failures are reported to.
func WithLogger(l echo.Logger) IngestorOption {
	return func(i *Ingestor) { i.logger = l }
}

// WithMetrics sets the collectors updated by the ingestor.
func WithMetrics(m *Metrics) IngestorOption {
	return func(i *Ingestor) { i.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// NewIngestor creates an Ingestor writing to store under cfg.
func NewIngestor(store *Store, cfg Config, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = log.New("analytics")
	}
	if i.metrics == nil {
		i.metrics = NewMetrics(nil)
	}
	return i
}

// Config returns the collector configuration.
func (i *Ingestor) Config() Config {
	return i.cfg
}

func (i *Ingestor) result(kind string, err error) WriteResult {
	if err != nil {
		i.logger.Errorf("analytics: save %s: %v", kind, err)
		i.metrics.WriteFailures.WithLabelValues(kind).Inc()
		return WriteResult{Err: err}
	}
	return WriteResult{OK: true}
}

// RecordPageView inserts pv. The timestamp defaults to now.
func (i *Ingestor) RecordPageView(ctx context.Context, pv PageView) WriteResult {
	if pv.Timestamp.IsZero() {
		pv.Timestamp = i.now()
	}
	res := i.result(kindPageView, i.store.InsertPageView(ctx, pv))
	if res.OK {
		i.metrics.PageViewsTracked.Inc()
	}
	return res
}

// RecordEvent inserts ev. Callers are responsible for the consent check.
func (i *Ingestor) RecordEvent(ctx context.Context, ev Event) WriteResult {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = i.now()
	}
	return i.result(kindEvent, i.store.InsertEvent(ctx, ev))
}

// RecordFormSubmission inserts f with status new unless set.
func (i *Ingestor) RecordFormSubmission(ctx context.Context, f FormSubmission) WriteResult {
	if f.Timestamp.IsZero() {
		f.Timestamp = i.now()
	}
	if f.Status == "" {
		f.Status = FormStatusNew
	}
	return i.result(kindForm, i.store.InsertFormSubmission(ctx, f))
}

// CreateOrRefreshSession upserts the session keyed by id. A new session
// starts now with one page visited; an existing one only gets its ip hash,
// user agent and consent flag replaced. Concurrent callers race and the
// last write wins.
func (i *Ingestor) CreateOrRefreshSession(ctx context.Context, id, ipHash, userAgent string, consent bool) WriteResult {
	if id == "" {
		return i.result(kindSession, fmt.Errorf("empty session id"))
	}
	return i.result(kindSession, i.store.UpsertSession(ctx, Session{
		ID:           id,
		StartedAt:    i.now(),
		IPHash:       ipHash,
		ConsentGiven: consent,
		UserAgent:    userAgent,
	}))
}

// UpdateSession patches only the provided fields of session id.
func (i *Ingestor) UpdateSession(ctx context.Context, id string, patch SessionPatch) WriteResult {
	return i.result(kindSession, i.store.PatchSession(ctx, id, patch))
}

// ConsentedSession reports whether id names a stored session created
// under consent. Lookup failures count as no.
func (i *Ingestor) ConsentedSession(ctx context.Context, id string) bool {
	sess, err := i.store.GetSession(ctx, id)
	if err != nil {
		return false
	}
	return sess.ConsentGiven
}

// SessionOwnedBy reports whether id names a stored session whose ip hash
// is ipHash. Lookup failures count as no.
func (i *Ingestor) SessionOwnedBy(ctx context.Context, id, ipHash string) bool {
	sess, err := i.store.GetSession(ctx, id)
	if err != nil {
		return false
	}
	return sess.IPHash == ipHash
}

// TrackRequest applies the tracking policy to a finished request and
// records a page view when it qualifies. It reports whether a row was
// written.
func (i *Ingestor) TrackRequest(r *http.Request, status int) bool {
	if !i.cfg.ShouldTrack(r.Method, r.URL.Path, status) {
		i.metrics.PageViewsSkipped.WithLabelValues("policy").Inc()
		return false
	}
	userAgent := r.UserAgent()
	ua := ParseUserAgent(userAgent)
	if ua.Device == DeviceBot || IsBot(userAgent) {
		i.metrics.PageViewsSkipped.WithLabelValues("bot").Inc()
		return false
	}
	res := i.RecordPageView(r.Context(), PageView{
		Path:      r.URL.Path,
		IPHash:    i.cfg.HashIP(ClientIP(r)),
		UserAgent: userAgent,
		Referrer:  i.cfg.CategorizeReferrer(r.Referer()),
		Browser:   ua.Browser,
		Device:    ua.Device,
		OS:        ua.OS,
		Country:   countryCode(r),
	})
	return res.OK
}

// countryCode reads the two-letter country set by a CDN in front of the site.
func countryCode(r *http.Request) string {
	c := strings.ToUpper(strings.TrimSpace(r.Header.Get("CF-IPCountry")))
	if len(c) != 2 || c == "XX" {
		return ""
	}
	return c
}

// Tracker returns echo middleware that records a page view after the
// handler completed successfully. Tracking never changes the response.
func (i *Ingestor) Tracker() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			i.TrackRequest(c.Request(), c.Response().Status)
			return nil
		}
	}
}
