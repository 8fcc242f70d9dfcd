package analytics

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ConsentCookie is set to ConsentAccepted by the cookie banner.
const (
	ConsentCookie   = "analytics_consent"
	ConsentAccepted = "accepted"
)

// Input validation limits for the public endpoints.
const (
	maxBodyBytes    = 16 << 10
	maxTypeLen      = 64
	maxPathLen      = 2048
	maxDataLen      = 4096
	maxSessionIDLen = 64
	sessionIDLen    = 8
	maxDays         = 365
	maxLimit        = 100
)

// ErrTypeRequired is returned for an event without a type.
var ErrTypeRequired = errors.New("type required")

// Handler serves the public collection endpoints and the admin JSON API.
type Handler struct {
	ingestor     *Ingestor
	service      *Service
	limiter      *RateLimiter
	queryTimeout time.Duration
	metrics      *Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithQueryTimeout bounds every admin aggregation request.
func WithQueryTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.queryTimeout = d }
}

// WithRateLimiter replaces the default 60 per minute client limiter.
func WithRateLimiter(rl *RateLimiter) HandlerOption {
	return func(h *Handler) { h.limiter = rl }
}

// WithHandlerMetrics sets the collectors consent skips are counted on.
func WithHandlerMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a Handler. The public endpoints are rate-limited to
// 60 requests per IP per minute.
func NewHandler(ingestor *Ingestor, service *Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		ingestor:     ingestor,
		service:      service,
		queryTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = NewRateLimiter(60, time.Minute)
	}
	if h.metrics == nil {
		h.metrics = ingestor.metrics
	}
	return h
}

// Close releases the limiter.
func (h *Handler) Close() {
	h.limiter.Close()
}

// RegisterPublic mounts POST /event, /session and /session/update on g.
func (h *Handler) RegisterPublic(g *echo.Group) {
	g.POST("/event", h.Event)
	g.POST("/session", h.Session)
	g.POST("/session/update", h.SessionUpdate)
}

// RegisterAdmin mounts the read-only dashboard API on g. Authentication is
// the caller's middleware; see RequireAdmin.
func (h *Handler) RegisterAdmin(g *echo.Group) {
	g.GET("/summary", h.GetSummary)
	g.GET("/visitors", h.GetVisitors)
	g.GET("/views", h.GetPageViews)
	g.GET("/traffic", h.GetTraffic)
	g.GET("/sources", h.GetSources)
	g.GET("/pages", h.GetPages)
	g.GET("/devices", h.GetDevices)
	g.GET("/browsers", h.GetBrowsers)
	g.GET("/os", h.GetOS)
	g.GET("/events", h.GetEvents)
	g.GET("/forms", h.GetForms)
}

// RequireAdmin rejects requests for which isAdmin is false with a JSON 401.
func RequireAdmin(isAdmin func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isAdmin(c) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return next(c)
		}
	}
}

// HasConsent reports whether the request carries the accepted consent cookie.
func HasConsent(r *http.Request) bool {
	ck, err := r.Cookie(ConsentCookie)
	return err == nil && ck.Value == ConsentAccepted
}

func statusOK(extra ...string) map[string]string {
	m := map[string]string{"status": "ok"}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i]] = extra[i+1]
	}
	return m
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"status": "error", "message": msg})
}

// gate applies the rate limit and consent check shared by the public
// endpoints. It returns true when the request was already answered.
func (h *Handler) gate(c echo.Context, endpoint string) (bool, error) {
	if !h.limiter.Allow(ClientIP(c.Request())) {
		return true, c.JSON(http.StatusTooManyRequests, map[string]string{
			"status":  "error",
			"message": "rate limit exceeded",
		})
	}
	if !HasConsent(c.Request()) {
		h.metrics.ConsentSkips.WithLabelValues(endpoint).Inc()
		return true, c.JSON(http.StatusOK, map[string]string{"status": "skipped", "reason": "no_consent"})
	}
	return false, nil
}

// decodeBody unmarshals a bounded JSON body into v. An empty body leaves v
// untouched.
func decodeBody(c echo.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// EventRequest is the body of POST /event.
type EventRequest struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Path      string          `json:"path"`
	SessionID string          `json:"session_id"`
}

func (req *EventRequest) validate() error {
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		return ErrTypeRequired
	}
	if len(req.Type) > maxTypeLen {
		return fmt.Errorf("type exceeds maximum length of %d", maxTypeLen)
	}
	if len(req.Path) > maxPathLen {
		return fmt.Errorf("path exceeds maximum length of %d", maxPathLen)
	}
	if len(req.Data) > maxDataLen {
		return fmt.Errorf("data exceeds maximum length of %d", maxDataLen)
	}
	if len(req.SessionID) > maxSessionIDLen {
		return fmt.Errorf("session_id exceeds maximum length of %d", maxSessionIDLen)
	}
	return nil
}

// eventData compacts the client payload; null and absent data store nothing.
func eventData(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Event stores a consent-gated client event.
func (h *Handler) Event(c echo.Context) error {
	if done, err := h.gate(c, "event"); done {
		return err
	}

	var req EventRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := req.validate(); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	sessionID := req.SessionID
	if sessionID != "" && !h.ingestor.ConsentedSession(ctx, sessionID) {
		sessionID = ""
	}

	h.ingestor.RecordEvent(ctx, Event{
		SessionID: sessionID,
		Type:      req.Type,
		Data:      eventData(req.Data),
		Path:      req.Path,
	})
	return c.JSON(http.StatusOK, statusOK())
}

// SessionRequest is the optional body of POST /session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

func validSessionID(id string) bool {
	if len(id) != sessionIDLen {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// NewSessionID returns a fresh 8 character hex token.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDLen]
}

// Session creates or refreshes the session of a consenting client.
func (h *Handler) Session(c echo.Context) error {
	if done, err := h.gate(c, "session"); done {
		return err
	}

	var req SessionRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	r := c.Request()
	ipHash := h.ingestor.Config().HashIP(ClientIP(r))
	// only the client that opened a session may refresh it
	id := strings.ToLower(strings.TrimSpace(req.SessionID))
	if !validSessionID(id) || !h.ingestor.SessionOwnedBy(r.Context(), id, ipHash) {
		id = NewSessionID()
	}

	h.ingestor.CreateOrRefreshSession(r.Context(), id, ipHash, r.UserAgent(), true)
	return c.JSON(http.StatusOK, statusOK("session_id", id))
}

// SessionUpdateRequest is the body of POST /session/update.
type SessionUpdateRequest struct {
	SessionID    string `json:"session_id"`
	PagesVisited *int   `json:"pages_visited"`
	Ended        bool   `json:"ended"`
}

// SessionUpdate records page counts and the end of a session.
func (h *Handler) SessionUpdate(c echo.Context) error {
	if done, err := h.gate(c, "session_update"); done {
		return err
	}

	var req SessionUpdateRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if !validSessionID(req.SessionID) {
		return badRequest(c, "session_id required")
	}
	if req.PagesVisited != nil && *req.PagesVisited < 1 {
		return badRequest(c, "pages_visited must be positive")
	}

	patch := SessionPatch{PagesVisited: req.PagesVisited}
	if req.Ended {
		ended := h.ingestor.now()
		patch.EndedAt = &ended
	}
	h.ingestor.UpdateSession(c.Request().Context(), req.SessionID, patch)
	return c.JSON(http.StatusOK, statusOK())
}

// intParam parses a positive query integer clamped to max; anything
// unparsable or out of range falls back to def.
func intParam(c echo.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) days(c echo.Context) int {
	return intParam(c, "days", DefaultDays, maxDays)
}

func (h *Handler) limit(c echo.Context) int {
	return intParam(c, "limit", DefaultLimit, maxLimit)
}

// query runs fn under the query timeout and writes its result as JSON.
func query[T any](h *Handler, c echo.Context, name string, fn func(context.Context) (T, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.queryTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		c.Logger().Errorf("Failed to get %s: %v", name, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, v)
}

// GetSummary returns every dashboard widget.
func (h *Handler) GetSummary(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "summary", func(ctx context.Context) (Summary, error) {
		return h.service.Summary(ctx, days)
	})
}

// GetVisitors returns unique visitors with change.
func (h *Handler) GetVisitors(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "visitors", func(ctx context.Context) (Metric, error) {
		return h.service.Visitors(ctx, days)
	})
}

// GetPageViews returns page views with change.
func (h *Handler) GetPageViews(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "page views", func(ctx context.Context) (Metric, error) {
		return h.service.PageViews(ctx, days)
	})
}

// GetTraffic returns the daily series.
func (h *Handler) GetTraffic(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "traffic", func(ctx context.Context) (DailyTraffic, error) {
		return h.service.TrafficByDay(ctx, days)
	})
}

// GetSources returns the referrer breakdown.
func (h *Handler) GetSources(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "sources", func(ctx context.Context) ([]Breakdown, error) {
		return h.service.TrafficSources(ctx, days)
	})
}

// GetPages returns the popular pages.
func (h *Handler) GetPages(c echo.Context) error {
	days, limit := h.days(c), h.limit(c)
	return query(h, c, "pages", func(ctx context.Context) ([]PageStat, error) {
		return h.service.PopularPages(ctx, limit, days)
	})
}

// GetDevices returns the device breakdown.
func (h *Handler) GetDevices(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "devices", func(ctx context.Context) ([]Breakdown, error) {
		return h.service.DeviceStats(ctx, days)
	})
}

// GetBrowsers returns the browser breakdown.
func (h *Handler) GetBrowsers(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "browsers", func(ctx context.Context) ([]Breakdown, error) {
		return h.service.BrowserStats(ctx, days)
	})
}

// GetOS returns the operating system breakdown.
func (h *Handler) GetOS(c echo.Context) error {
	days := h.days(c)
	return query(h, c, "os", func(ctx context.Context) ([]Breakdown, error) {
		return h.service.OSStats(ctx, days)
	})
}

// GetEvents returns the latest client events.
func (h *Handler) GetEvents(c echo.Context) error {
	limit := h.limit(c)
	return query(h, c, "events", func(ctx context.Context) ([]Event, error) {
		return h.service.RecentEvents(ctx, limit)
	})
}

// GetForms returns the latest form submissions.
func (h *Handler) GetForms(c echo.Context) error {
	days := intParam(c, "days", DefaultFormDays, maxDays)
	limit := h.limit(c)
	return query(h, c, "forms", func(ctx context.Context) ([]FormSubmission, error) {
		return h.service.FormSubmissions(ctx, days, limit)
	})
}
