package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Dashboard defaults.
const (
	DefaultDays           = 7
	DefaultLimit          = 10
	DefaultFormDays       = 30
	summaryPopularLimit   = 5
	summaryRecentLimit    = 5
	summaryFormLimit      = 5
	eventTypeCTAClick     = "cta_click"
	fallbackSourceName    = ReferrerDirect
	fallbackDimensionName = Unknown
)

// Metric is a windowed count with its change against the previous window.
type Metric struct {
	Count  int     `json:"count"`
	Change float64 `json:"change"`
}

// SessionTime is the average duration of multi-event sessions.
type SessionTime struct {
	Formatted string  `json:"formatted"`
	Minutes   float64 `json:"minutes"`
	Change    float64 `json:"change"`
}

// DailyTraffic is a zero-filled per-day series, oldest first.
type DailyTraffic struct {
	Labels   []string `json:"labels"`
	Dates    []string `json:"dates"`
	Visitors []int    `json:"visitors"`
	Views    []int    `json:"views"`
}

// Breakdown is one category of a source, device or browser split.
type Breakdown struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PageStat is one row of the popular pages table.
type PageStat struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Views    int    `json:"views"`
	Visitors int    `json:"visitors"`
}

// Summary is the whole dashboard in one response.
type Summary struct {
	Visitors        Metric           `json:"visitors"`
	PageViews       Metric           `json:"page_views"`
	AvgTime         SessionTime      `json:"avg_time"`
	CTAClicks       Metric           `json:"cta_clicks"`
	TrafficByDay    DailyTraffic     `json:"traffic_by_day"`
	Sources         []Breakdown      `json:"sources"`
	PopularPages    []PageStat       `json:"popular_pages"`
	Devices         []Breakdown      `json:"devices"`
	Browsers        []Breakdown      `json:"browsers"`
	RecentEvents    []Event          `json:"recent_events"`
	FormSubmissions []FormSubmission `json:"form_submissions"`
}

// Service computes dashboard aggregations over the stored rows. Each call
// is independent; the only shared state is the database pool.
type Service struct {
	store   *Store
	loc     *time.Location
	metrics *Metrics
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides time.Now for window computation.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithServiceMetrics sets the collectors query latency is observed on.
func WithServiceMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. Calendar days are computed in cfg.Location.
func NewService(store *Store, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		loc:   cfg.location(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

func (s *Service) observe(query string) func() {
	start := time.Now()
	return func() {
		s.metrics.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}
}

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// PercentChange compares current against previous. Without a previous
// value any activity counts as a 100% increase.
func PercentChange(current, previous int) float64 {
	if previous > 0 {
		return round1(float64(current-previous) / float64(previous) * 100)
	}
	if current > 0 {
		return 100
	}
	return 0
}

func normDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	return days
}

func normLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// windows returns the current window [now-W, now) and the one before it.
func (s *Service) windows(days int) (current, previous Span) {
	now := s.now()
	w := time.Duration(normDays(days)) * 24 * time.Hour
	current = Span{From: now.Add(-w)}
	previous = Span{From: now.Add(-2 * w), To: now.Add(-w)}
	return current, previous
}

func (s *Service) since(days int) time.Time {
	return s.now().Add(-time.Duration(normDays(days)) * 24 * time.Hour)
}

func (s *Service) metric(ctx context.Context, name string, days int, count func(context.Context, Span) (int, error)) (Metric, error) {
	defer s.observe(name)()
	cur, prev := s.windows(days)
	c, err := count(ctx, cur)
	if err != nil {
		return Metric{}, fmt.Errorf("%s: %w", name, err)
	}
	p, err := count(ctx, prev)
	if err != nil {
		return Metric{}, fmt.Errorf("%s previous: %w", name, err)
	}
	return Metric{Count: c, Change: PercentChange(c, p)}, nil
}

// Visitors counts distinct visitors in the window.
func (s *Service) Visitors(ctx context.Context, days int) (Metric, error) {
	return s.metric(ctx, "visitors", days, s.store.CountVisitors)
}

// PageViews counts page views in the window.
func (s *Service) PageViews(ctx context.Context, days int) (Metric, error) {
	return s.metric(ctx, "page_views", days, s.store.CountPageViews)
}

// CTAClicks counts call-to-action click events in the window.
func (s *Service) CTAClicks(ctx context.Context, days int) (Metric, error) {
	return s.metric(ctx, "cta_clicks", days, func(ctx context.Context, sp Span) (int, error) {
		return s.store.CountEvents(ctx, eventTypeCTAClick, sp)
	})
}

var ukrainianWeekdays = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
	time.Sunday:    "Нд",
}

// TrafficByDay returns views and distinct visitors for each of the last
// days calendar days, today included, oldest first.
func (s *Service) TrafficByDay(ctx context.Context, days int) (DailyTraffic, error) {
	defer s.observe("traffic_by_day")()
	days = normDays(days)
	today := s.now().In(s.loc)
	first := time.Date(today.Year(), today.Month(), today.Day()-(days-1), 0, 0, 0, 0, s.loc)

	visits, err := s.store.Visits(ctx, first)
	if err != nil {
		return DailyTraffic{}, fmt.Errorf("traffic by day: %w", err)
	}

	views := make(map[string]int, days)
	visitors := make(map[string]map[string]struct{}, days)
	for _, v := range visits {
		key := v.At.In(s.loc).Format(time.DateOnly)
		views[key]++
		if visitors[key] == nil {
			visitors[key] = make(map[string]struct{})
		}
		visitors[key][v.IPHash] = struct{}{}
	}

	out := DailyTraffic{
		Labels:   make([]string, 0, days),
		Dates:    make([]string, 0, days),
		Visitors: make([]int, 0, days),
		Views:    make([]int, 0, days),
	}
	for i := 0; i < days; i++ {
		day := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, s.loc)
		key := day.Format(time.DateOnly)
		out.Labels = append(out.Labels, ukrainianWeekdays[day.Weekday()])
		out.Dates = append(out.Dates, key)
		out.Views = append(out.Views, views[key])
		out.Visitors = append(out.Visitors, len(visitors[key]))
	}
	return out, nil
}

func (s *Service) breakdown(ctx context.Context, column, fallback string, days int) ([]Breakdown, error) {
	defer s.observe(column)()
	rows, err := s.store.GroupPageViews(ctx, column, s.since(days))
	if err != nil {
		return nil, fmt.Errorf("%s breakdown: %w", column, err)
	}

	counts := make(map[string]int, len(rows))
	total := 0
	for _, r := range rows {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = fallback
		}
		counts[name] += r.Count
		total += r.Count
	}

	out := make([]Breakdown, 0, len(counts))
	if total == 0 {
		return out, nil
	}
	for name, n := range counts {
		out = append(out, Breakdown{
			Name:       name,
			Count:      n,
			Percentage: round1(float64(n) / float64(total) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// TrafficSources splits page views by referrer category.
func (s *Service) TrafficSources(ctx context.Context, days int) ([]Breakdown, error) {
	return s.breakdown(ctx, dimReferrer, fallbackSourceName, days)
}

// DeviceStats splits page views by device class.
func (s *Service) DeviceStats(ctx context.Context, days int) ([]Breakdown, error) {
	return s.breakdown(ctx, dimDevice, fallbackDimensionName, days)
}

// BrowserStats splits page views by browser.
func (s *Service) BrowserStats(ctx context.Context, days int) ([]Breakdown, error) {
	return s.breakdown(ctx, dimBrowser, fallbackDimensionName, days)
}

// OSStats splits page views by operating system.
func (s *Service) OSStats(ctx context.Context, days int) ([]Breakdown, error) {
	return s.breakdown(ctx, dimOS, fallbackDimensionName, days)
}

var pageNames = map[string]string{
	"/":         "Головна",
	"/services": "Послуги",
	"/pricing":  "Тарифи",
	"/about":    "Про нас",
	"/blog":     "Блог",
	"/contact":  "Контакти",
	"/partners": "Партнери",
	"/faq":      "FAQ",
}

// PageName returns the human readable name of a site path.
func PageName(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	if name, ok := pageNames[trimmed]; ok {
		return name
	}
	if strings.HasPrefix(trimmed, "/blog/") {
		return "Стаття блогу"
	}
	seg := strings.Trim(trimmed, "/")
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	if seg == "" {
		return p
	}
	return titleCase(seg)
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, leaving separators in place.
func titleCase(s string) string {
	var b strings.Builder
	inWord := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			inWord = false
		case inWord:
			r = unicode.ToLower(r)
		default:
			r = unicode.ToTitle(r)
			inWord = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PopularPages returns the most viewed paths in the window.
func (s *Service) PopularPages(ctx context.Context, limit, days int) ([]PageStat, error) {
	defer s.observe("popular_pages")()
	rows, err := s.store.TopPaths(ctx, s.since(days), normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("popular pages: %w", err)
	}
	out := make([]PageStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, PageStat{
			Path:     r.Path,
			Name:     PageName(r.Path),
			Views:    r.Views,
			Visitors: r.Visitors,
		})
	}
	return out, nil
}

// FormatMinutes renders fractional minutes as M:SS.
func FormatMinutes(minutes float64) string {
	total := int(math.Round(minutes * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// AvgSessionTime averages first-to-last event time over sessions with
// more than one event in the window. Change is not tracked and stays 0.
func (s *Service) AvgSessionTime(ctx context.Context, days int) (SessionTime, error) {
	defer s.observe("avg_session_time")()
	spans, err := s.store.SessionSpans(ctx, s.since(days))
	if err != nil {
		return SessionTime{}, fmt.Errorf("avg session time: %w", err)
	}
	var avg float64
	if len(spans) > 0 {
		var sum float64
		for _, sp := range spans {
			sum += sp.Last.Sub(sp.First).Minutes()
		}
		avg = sum / float64(len(spans))
	}
	return SessionTime{
		Formatted: FormatMinutes(avg),
		Minutes:   round1(avg),
	}, nil
}

// RecentEvents returns the latest client events, newest first.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	defer s.observe("recent_events")()
	events, err := s.store.RecentEvents(ctx, normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

// FormSubmissions returns the latest leads of the window, newest first.
// The window defaults to 30 days.
func (s *Service) FormSubmissions(ctx context.Context, days, limit int) ([]FormSubmission, error) {
	defer s.observe("form_submissions")()
	if days <= 0 {
		days = DefaultFormDays
	}
	forms, err := s.store.RecentFormSubmissions(ctx, s.since(days), normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("form submissions: %w", err)
	}
	return forms, nil
}

// SetFormStatus moves a submission to status.
func (s *Service) SetFormStatus(ctx context.Context, id int64, status string) error {
	if !ValidFormStatus(status) {
		return fmt.Errorf("invalid form status %q", status)
	}
	return s.store.SetFormStatus(ctx, id, status)
}

// Summary computes every dashboard widget concurrently. The first failure
// cancels the remaining queries and is returned.
func (s *Service) Summary(ctx context.Context, days int) (Summary, error) {
	days = normDays(days)
	var sum Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		sum.Visitors, err = s.Visitors(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.PageViews, err = s.PageViews(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.AvgTime, err = s.AvgSessionTime(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.CTAClicks, err = s.CTAClicks(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.TrafficByDay, err = s.TrafficByDay(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.Sources, err = s.TrafficSources(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.PopularPages, err = s.PopularPages(ctx, summaryPopularLimit, days)
		return err
	})
	g.Go(func() (err error) {
		sum.Devices, err = s.DeviceStats(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.Browsers, err = s.BrowserStats(ctx, days)
		return err
	})
	g.Go(func() (err error) {
		sum.RecentEvents, err = s.RecentEvents(ctx, summaryRecentLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.FormSubmissions, err = s.FormSubmissions(ctx, DefaultFormDays, summaryFormLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return sum, nil
}
