package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort abstracts the report queries.
type RepositoryPort interface {
	SalesSummary(ctx context.Context, from, to time.Time) (Summary, error)
	DailyTrend(ctx context.Context, from, to time.Time) ([]TrendPoint, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
}

// Service serves read-only sales reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

func cacheKey(prefix string, w Window) string {
	return fmt.Sprintf("reports:%s:%s:%s", prefix, w.From.Format("20060102"), w.To.Format("20060102"))
}

// ResolveWindow turns a named range or custom from/to into a window.
func (s *Service) ResolveWindow(name RangeName, from, to time.Time) (Window, error) {
	if name != "" {
		w, ok := ResolveRange(name, s.now())
		if !ok {
			return Window{}, shared.Validationf("reports: unknown range %q", name)
		}
		return w, nil
	}
	if from.IsZero() || to.IsZero() {
		return Window{}, shared.Validationf("reports: range name or from/to required")
	}
	if !to.After(from) {
		return Window{}, shared.Validationf("reports: to must be after from")
	}
	return Window{From: from, To: to.AddDate(0, 0, 1)}, nil
}

// SalesSummary aggregates sales over the window, served from cache when
// possible.
func (s *Service) SalesSummary(ctx context.Context, w Window) (Summary, error) {
	key := cacheKey("summary", w)
	var cached Summary
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	summary, err := s.repo.SalesSummary(ctx, w.From, w.To)
	if err != nil {
		return Summary{}, err
	}
	summary.From, summary.To = w.From, w.To
	s.cache.Set(ctx, key, summary)
	return summary, nil
}

// DailyTrend returns one point per day over the last days days.
func (s *Service) DailyTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 || days > 90 {
		days = 14
	}
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	w := Window{From: startOfDay.AddDate(0, 0, -(days - 1)), To: startOfDay.AddDate(0, 0, 1)}

	key := cacheKey("trend", w)
	var cached []TrendPoint
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	trend, err := s.repo.DailyTrend(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, trend)
	return trend, nil
}

// TopProducts ranks products by quantity sold over the window.
func (s *Service) TopProducts(ctx context.Context, w Window, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.repo.TopProducts(ctx, w.From, w.To, limit)
}

// Overview assembles summary, trend and top products concurrently.
func (s *Service) Overview(ctx context.Context, w Window) (Overview, error) {
	var overview Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.SalesSummary(ctx, w)
		overview.Summary = summary
		return err
	})
	g.Go(func() error {
		trend, err := s.DailyTrend(ctx, 14)
		overview.Trend = trend
		return err
	})
	g.Go(func() error {
		top, err := s.TopProducts(ctx, w, 10)
		overview.TopProducts = top
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return overview, nil
}

// SummaryCSV renders the summary as a two-row CSV with localized amounts.
func (s *Service) SummaryCSV(ctx context.Context, w Window) ([]byte, error) {
	summary, err := s.SalesSummary(ctx, w)
	if err != nil {
		return nil, err
	}
	// Grouped amounts carry commas, so they are quoted.
	printer := message.NewPrinter(language.English)
	amount := func(v float64) string {
		return `"` + printer.Sprintf("%.2f", v) + `"`
	}
	var b strings.Builder
	b.WriteString("from,to,orders,total_sales,total_discount,total_paid,total_due\n")
	fmt.Fprintf(&b, "%s,%s,%d,%s,%s,%s,%s\n",
		summary.From.Format("2006-01-02"), summary.To.AddDate(0, 0, -1).Format("2006-01-02"),
		summary.Orders, amount(summary.TotalSales), amount(summary.TotalDiscount),
		amount(summary.TotalPaid), amount(summary.TotalDue))
	return []byte(b.String()), nil
}

// WarmupRanges precomputes the cached windows the dashboard hits first.
func (s *Service) WarmupRanges(ctx context.Context) error {
	for _, name := range []RangeName{RangeToday, RangeWeek, RangeMonth} {
		w, _ := ResolveRange(name, s.now())
		if _, err := s.SalesSummary(ctx, w); err != nil {
			return err
		}
	}
	_, err := s.DailyTrend(ctx, 14)
	return err
}
