package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	e     *echo.Echo
	store *Store
	admin bool
	addr  string
}

func newHandlerFixture(t *testing.T, opts ...HandlerOption) *handlerFixture {
	t.Helper()
	s := newTestStore(t)
	ing, _ := newTestIngestor(s)
	h := NewHandler(ing, newTestService(s), opts...)
	t.Cleanup(h.Close)

	f := &handlerFixture{e: echo.New(), store: s, addr: "198.51.100.20:1234"}
	h.RegisterPublic(f.e.Group("/api/analytics"))
	h.RegisterAdmin(f.e.Group("/admin/analytics/api", RequireAdmin(func(echo.Context) bool { return f.admin })))
	return f
}

func (f *handlerFixture) post(target, body string, consent bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = f.addr
	if consent {
		req.AddCookie(&http.Cookie{Name: ConsentCookie, Value: ConsentAccepted})
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestEventWithoutConsentIsSkipped(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/analytics/event", `{"type":"cta_click"}`, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "skipped", "reason": "no_consent"}, decode(t, rec))
	assert.Equal(t, 0, countAll(t, f.store, "analytics_events"))

	cookie := httptest.NewRequest(http.MethodPost, "/api/analytics/event", strings.NewReader(`{"type":"x"}`))
	cookie.AddCookie(&http.Cookie{Name: ConsentCookie, Value: "declined"})
	rec = httptest.NewRecorder()
	f.e.ServeHTTP(rec, cookie)
	assert.Equal(t, "skipped", decode(t, rec)["status"])
	assert.Equal(t, 0, countAll(t, f.store, "analytics_events"))
}

func TestEventValidation(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/analytics/event", `{"data":{"a":1}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "message": "type required"}, decode(t, rec))

	rec = f.post("/api/analytics/event", `{"type":`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])

	rec = f.post("/api/analytics/event", `{"type":"`+strings.Repeat("x", 65)+`"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, countAll(t, f.store, "analytics_events"))
}

func TestEventStored(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/analytics/event", `{"type":"cta_click","data":{ "button" : "hero" },"path":"/pricing/","session_id":"deadbeef"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))

	events, err := f.store.RecentEvents(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cta_click", events[0].Type)
	assert.Equal(t, `{"button":"hero"}`, events[0].Data)
	assert.Equal(t, "/pricing/", events[0].Path)
	// the session does not exist, so the event is not linked to it
	assert.Empty(t, events[0].SessionID)
}

func TestSessionThenLinkedEvent(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.post("/api/analytics/session", ``, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	id, _ := body["session_id"].(string)
	require.Len(t, id, 8)

	rec = f.post("/api/analytics/session", `{"session_id":"`+id+`"}`, true)
	assert.Equal(t, id, decode(t, rec)["session_id"])
	assert.Equal(t, 1, countAll(t, f.store, "analytics_sessions"))

	f.post("/api/analytics/event", `{"type":"cta_click","session_id":"`+id+`"}`, true)
	events, err := f.store.RecentEvents(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].SessionID)

	rec = f.post("/api/analytics/session/update", `{"session_id":"`+id+`","pages_visited":3,"ended":true}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	sess, err := f.store.GetSession(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.PagesVisited)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(testNow))

	rec = f.post("/api/analytics/session/update", `{"session_id":"nope"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionIDOfAnotherClientIsReplaced(t *testing.T) {
	f := newHandlerFixture(t)

	id, _ := decode(t, f.post("/api/analytics/session", `{}`, true))["session_id"].(string)
	require.Len(t, id, 8)

	f.addr = "203.0.113.7:4321"
	other, _ := decode(t, f.post("/api/analytics/session", `{"session_id":"`+id+`"}`, true))["session_id"].(string)
	require.Len(t, other, 8)
	assert.NotEqual(t, id, other)

	unknown, _ := decode(t, f.post("/api/analytics/session", `{"session_id":"0badf00d"}`, true))["session_id"].(string)
	assert.NotEqual(t, "0badf00d", unknown)
	assert.Equal(t, 3, countAll(t, f.store, "analytics_sessions"))

	sess, err := f.store.GetSession(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, testConfig().HashIP("198.51.100.20"), sess.IPHash)
}

func TestPublicWriteFailuresStillAnswerOK(t *testing.T) {
	f := newHandlerFixture(t)
	_, err := f.store.db.Exec("DROP TABLE analytics_events")
	require.NoError(t, err)
	_, err = f.store.db.Exec("DROP TABLE analytics_sessions")
	require.NoError(t, err)

	rec := f.post("/api/analytics/event", `{"type":"cta_click","session_id":"deadbeef"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))

	rec = f.post("/api/analytics/session", `{}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, body["session_id"], 8)

	rec = f.post("/api/analytics/session/update", `{"session_id":"deadbeef","pages_visited":2,"ended":true}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))
}

func TestSessionWithoutConsentIsSkipped(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.post("/api/analytics/session", `{}`, false)
	assert.Equal(t, "skipped", decode(t, rec)["status"])
	assert.Equal(t, 0, countAll(t, f.store, "analytics_sessions"))
}

func TestPublicEndpointsAreRateLimited(t *testing.T) {
	f := newHandlerFixture(t, WithRateLimiter(NewRateLimiter(2, time.Minute)))

	assert.Equal(t, http.StatusOK, f.post("/api/analytics/event", `{"type":"a"}`, true).Code)
	assert.Equal(t, http.StatusOK, f.post("/api/analytics/session", `{}`, true).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.post("/api/analytics/event", `{"type":"a"}`, true).Code)
}

func TestAdminAPIRequiresAuth(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.get("/admin/analytics/api/summary")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Unauthorized"}, decode(t, rec))
}

func TestAdminAPI(t *testing.T) {
	f := newHandlerFixture(t)
	f.admin = true
	addView(t, f.store, testNow.Add(-time.Hour), "/", "a")
	addView(t, f.store, testNow.Add(-2*time.Hour), "/services/", "b")

	rec := f.get("/admin/analytics/api/summary?days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.Visitors.Count)
	assert.Len(t, sum.TrafficByDay.Labels, 7)

	rec = f.get("/admin/analytics/api/traffic?days=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	var traffic DailyTraffic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &traffic))
	assert.Len(t, traffic.Labels, DefaultDays)

	rec = f.get("/admin/analytics/api/pages?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var pages []PageStat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pages))
	assert.Len(t, pages, 1)

	for _, p := range []string{"visitors", "views", "sources", "devices", "browsers", "os", "events", "forms"} {
		assert.Equal(t, http.StatusOK, f.get("/admin/analytics/api/"+p).Code, p)
	}
}

func TestIntParamClamps(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?days=9999&limit=-3", nil), httptest.NewRecorder())
	assert.Equal(t, maxDays, intParam(c, "days", DefaultDays, maxDays))
	assert.Equal(t, DefaultLimit, intParam(c, "limit", DefaultLimit, maxLimit))
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	assert.True(t, validSessionID(id))
	assert.NotEqual(t, id, NewSessionID())
}
