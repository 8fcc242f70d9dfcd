package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/trexim/database"
)

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, 100.0, PercentChange(5, 0))
	assert.Equal(t, 50.0, PercentChange(15, 10))
	assert.Equal(t, -50.0, PercentChange(5, 10))
	assert.Equal(t, 33.3, PercentChange(4, 3))
	assert.Equal(t, -100.0, PercentChange(0, 7))
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0:00", FormatMinutes(0))
	assert.Equal(t, "5:00", FormatMinutes(5))
	assert.Equal(t, "2:30", FormatMinutes(2.5))
	assert.Equal(t, "61:05", FormatMinutes(61+5.0/60))
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "Головна", PageName("/"))
	assert.Equal(t, "Послуги", PageName("/services/"))
	assert.Equal(t, "Тарифи", PageName("/pricing"))
	assert.Equal(t, "Блог", PageName("/blog/"))
	assert.Equal(t, "Стаття блогу", PageName("/blog/seo-basics/"))
	assert.Equal(t, "Case-Studies", PageName("/work/case-studies/"))
	assert.Equal(t, "Faq-Extra", PageName("/FAQ-extra"))
	assert.Equal(t, "Promo_2024", PageName("/promo_2024/"))
}

func TestVisitorsChange(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	day := 24 * time.Hour

	addView(t, s, testNow.Add(-time.Hour), "/", "a")
	addView(t, s, testNow.Add(-2*time.Hour), "/", "a")
	addView(t, s, testNow.Add(-2*day), "/", "b")
	addView(t, s, testNow.Add(-6*day), "/", "c")
	addView(t, s, testNow.Add(-8*day), "/", "d")
	addView(t, s, testNow.Add(-9*day), "/", "e")

	m, err := svc.Visitors(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, Metric{Count: 3, Change: 50}, m)

	views, err := svc.PageViews(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, Metric{Count: 4, Change: 100}, views)
}

func TestCTAClicksWithoutHistory(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	addEvent(t, s, testNow.Add(-time.Hour), "", "cta_click")
	addEvent(t, s, testNow.Add(-time.Hour), "", "scroll")

	m, err := svc.CTAClicks(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Metric{Count: 1, Change: 100}, m)

	empty, err := newTestService(newTestStore(t)).CTAClicks(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, Metric{}, empty)
}

func TestTrafficByDayOnEmptyTable(t *testing.T) {
	svc := newTestService(newTestStore(t))

	traffic, err := svc.TrafficByDay(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"Чт", "Пт", "Сб", "Нд", "Пн", "Вт", "Ср"}, traffic.Labels)
	assert.Equal(t, "2026-02-26", traffic.Dates[0])
	assert.Equal(t, "2026-03-04", traffic.Dates[6])
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0}, traffic.Views)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0}, traffic.Visitors)
}

func TestTrafficByDayBuckets(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	addView(t, s, testNow.Add(-time.Hour), "/", "a")
	addView(t, s, testNow.Add(-2*time.Hour), "/about/", "a")
	addView(t, s, testNow.Add(-3*time.Hour), "/", "b")
	addView(t, s, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), "/", "c")
	addView(t, s, time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC), "/", "old")

	traffic, err := svc.TrafficByDay(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 3}, traffic.Views)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 2}, traffic.Visitors)

	month, err := svc.TrafficByDay(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, month.Labels, 30)
}

func TestBreakdownPercentages(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	ref := func(r string) func(*PageView) { return func(pv *PageView) { pv.Referrer = r } }

	addView(t, s, testNow.Add(-time.Hour), "/", "a", ref("Google"))
	addView(t, s, testNow.Add(-time.Hour), "/", "b", ref("Google"))
	addView(t, s, testNow.Add(-time.Hour), "/", "c", ref("Google"))
	addView(t, s, testNow.Add(-time.Hour), "/", "d", ref("Facebook"))
	addView(t, s, testNow.Add(-time.Hour), "/", "e", ref(""))
	addView(t, s, testNow.Add(-time.Hour), "/", "f", ref("Direct"))

	sources, err := svc.TrafficSources(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, Breakdown{Name: "Google", Count: 3, Percentage: 50}, sources[0])
	assert.Equal(t, Breakdown{Name: "Direct", Count: 2, Percentage: 33.3}, sources[1])
	assert.Equal(t, Breakdown{Name: "Facebook", Count: 1, Percentage: 16.7}, sources[2])

	var sum float64
	for _, b := range sources {
		sum += b.Percentage
	}
	assert.InDelta(t, 100, sum, 0.5)

	devices, err := svc.DeviceStats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []Breakdown{{Name: DeviceDesktop, Count: 6, Percentage: 100}}, devices)
}

func TestBreakdownEmpty(t *testing.T) {
	svc := newTestService(newTestStore(t))
	browsers, err := svc.BrowserStats(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, browsers)
	assert.Empty(t, browsers)
}

func TestPopularPages(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	addView(t, s, testNow.Add(-time.Hour), "/", "a")
	addView(t, s, testNow.Add(-time.Hour), "/", "b")
	addView(t, s, testNow.Add(-time.Hour), "/", "b")
	addView(t, s, testNow.Add(-time.Hour), "/blog/post-one/", "a")
	addView(t, s, testNow.Add(-time.Hour), "/blog/post-one/", "c")
	addView(t, s, testNow.Add(-time.Hour), "/pricing/", "c")

	pages, err := svc.PopularPages(context.Background(), 2, 7)
	require.NoError(t, err)
	assert.Equal(t, []PageStat{
		{Path: "/", Name: "Головна", Views: 3, Visitors: 2},
		{Path: "/blog/post-one/", Name: "Стаття блогу", Views: 2, Visitors: 2},
	}, pages)
}

func TestAvgSessionTime(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)

	addEvent(t, s, testNow.Add(-10*time.Minute), "abcd1234", "page_view")
	addEvent(t, s, testNow.Add(-7*time.Minute), "abcd1234", "cta_click")
	addEvent(t, s, testNow.Add(-5*time.Minute), "abcd1234", "scroll")
	addEvent(t, s, testNow.Add(-time.Minute), "ffff0000", "page_view")
	addEvent(t, s, testNow.Add(-time.Minute), "", "page_view")

	avg, err := svc.AvgSessionTime(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, SessionTime{Formatted: "5:00", Minutes: 5, Change: 0}, avg)
}

func TestAvgSessionTimeEmpty(t *testing.T) {
	avg, err := newTestService(newTestStore(t)).AvgSessionTime(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "0:00", avg.Formatted)
}

func TestRecentEventsAndForms(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	ctx := context.Background()
	addEvent(t, s, testNow.Add(-3*time.Minute), "", "first")
	addEvent(t, s, testNow.Add(-2*time.Minute), "", "second")
	addEvent(t, s, testNow.Add(-time.Minute), "", "third")

	events, err := svc.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Type)
	assert.Equal(t, "second", events[1].Type)

	require.NoError(t, s.InsertFormSubmission(ctx, FormSubmission{Timestamp: testNow.Add(-40 * 24 * time.Hour), FormType: "old"}))
	require.NoError(t, s.InsertFormSubmission(ctx, FormSubmission{Timestamp: testNow.Add(-time.Hour), FormType: "contact"}))

	forms, err := svc.FormSubmissions(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "contact", forms[0].FormType)

	assert.Error(t, svc.SetFormStatus(ctx, forms[0].ID, "archived"))
	assert.NoError(t, svc.SetFormStatus(ctx, forms[0].ID, FormStatusProcessed))
}

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(s)
	addView(t, s, testNow.Add(-time.Hour), "/", "a")
	addEvent(t, s, testNow.Add(-time.Hour), "", "cta_click")

	sum, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Visitors.Count)
	assert.Equal(t, 1, sum.PageViews.Count)
	assert.Equal(t, 1, sum.CTAClicks.Count)
	assert.Len(t, sum.TrafficByDay.Labels, 7)
	assert.Len(t, sum.PopularPages, 1)
	assert.Len(t, sum.RecentEvents, 1)
	assert.NotNil(t, sum.FormSubmissions)
}

func TestSummaryPropagatesReadFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(false))
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	svc := newTestService(&Store{db: database.New(db, database.SQLite)})
	_, err = svc.Summary(context.Background(), 7)
	assert.Error(t, err)
}
