package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

type fakeReportsRepo struct {
	summary      Summary
	trend        []TrendPoint
	top          []TopProduct
	summaryCalls int
	trendCalls   int
}

func (r *fakeReportsRepo) SalesSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	r.summaryCalls++
	return r.summary, nil
}

func (r *fakeReportsRepo) DailyTrend(ctx context.Context, from, to time.Time) ([]TrendPoint, error) {
	r.trendCalls++
	return r.trend, nil
}

func (r *fakeReportsRepo) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit < len(r.top) {
		return r.top[:limit], nil
	}
	return r.top, nil
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func TestResolveRangeWindows(t *testing.T) {
	now := fixedNow()

	today, ok := ResolveRange(RangeToday, now)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), today.From)
	require.Equal(t, time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC), today.To)

	lastMonth, ok := ResolveRange(RangeLastMonth, now)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), lastMonth.From)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), lastMonth.To)

	_, ok = ResolveRange("quarter", now)
	require.False(t, ok)
}

func TestResolveWindowValidation(t *testing.T) {
	svc := NewService(&fakeReportsRepo{}, nil)
	svc.now = fixedNow

	_, err := svc.ResolveWindow("bogus", time.Time{}, time.Time{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ResolveWindow("", time.Time{}, time.Time{})
	require.ErrorIs(t, err, shared.ErrValidation)

	w, err := svc.ResolveWindow("", day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, day(1), w.From)
	require.Equal(t, day(4), w.To)
}

func TestSalesSummaryUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportsRepo{summary: Summary{Orders: 3, TotalSales: 900}}
	svc := NewService(repo, testCache(t))
	svc.now = fixedNow
	w, _ := ResolveRange(RangeToday, fixedNow())

	first, err := svc.SalesSummary(ctx, w)
	require.NoError(t, err)
	second, err := svc.SalesSummary(ctx, w)
	require.NoError(t, err)

	require.Equal(t, first.TotalSales, second.TotalSales)
	require.Equal(t, 1, repo.summaryCalls)
}

func TestSalesSummaryWithoutCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportsRepo{summary: Summary{Orders: 1}}
	svc := NewService(repo, nil)
	svc.now = fixedNow
	w, _ := ResolveRange(RangeToday, fixedNow())

	_, err := svc.SalesSummary(ctx, w)
	require.NoError(t, err)
	_, err = svc.SalesSummary(ctx, w)
	require.NoError(t, err)
	require.Equal(t, 2, repo.summaryCalls)
}

func TestOverviewAssemblesAllSections(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportsRepo{
		summary: Summary{Orders: 5, TotalSales: 1200},
		trend:   []TrendPoint{{Day: day(1), Orders: 2, Total: 400}},
		top:     []TopProduct{{ProductID: 7, Name: "Grameen Check 3pc", QtySold: 12, Revenue: 600}},
	}
	svc := NewService(repo, testCache(t))
	svc.now = fixedNow
	w, _ := ResolveRange(RangeWeek, fixedNow())

	overview, err := svc.Overview(ctx, w)
	require.NoError(t, err)
	require.Equal(t, int64(5), overview.Summary.Orders)
	require.Len(t, overview.Trend, 1)
	require.Len(t, overview.TopProducts, 1)
}

func TestSummaryCSVQuotesGroupedAmounts(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportsRepo{summary: Summary{Orders: 4, TotalSales: 125000.5, TotalPaid: 100000, TotalDue: 25000.5}}
	svc := NewService(repo, nil)
	svc.now = fixedNow
	w, _ := ResolveRange(RangeMonth, fixedNow())

	csv, err := svc.SummaryCSV(ctx, w)
	require.NoError(t, err)
	require.Contains(t, string(csv), "from,to,orders,total_sales")
	require.Contains(t, string(csv), `"125,000.50"`)
	require.Contains(t, string(csv), `"25,000.50"`)
}

func TestWarmupPrimesCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportsRepo{summary: Summary{Orders: 2}}
	svc := NewService(repo, testCache(t))
	svc.now = fixedNow

	require.NoError(t, svc.WarmupRanges(ctx))
	calls := repo.summaryCalls

	w, _ := ResolveRange(RangeToday, fixedNow())
	_, err := svc.SalesSummary(ctx, w)
	require.NoError(t, err)
	require.Equal(t, calls, repo.summaryCalls)
}

func day(n int) time.Time {
	return time.Date(2026, time.March, n, 0, 0, 0, 0, time.UTC)
}
