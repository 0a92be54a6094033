package reports

import "time"

// RangeName is a named reporting window.
type RangeName string

const (
	RangeToday     RangeName = "today"
	RangeWeek      RangeName = "week"
	RangeMonth     RangeName = "month"
	RangeLastMonth RangeName = "lastMonth"
)

// Summary aggregates sales over a window.
type Summary struct {
	From          time.Time
	To            time.Time
	Orders        int64
	TotalSales    float64
	TotalDiscount float64
	TotalPaid     float64
	TotalDue      float64
}

// TrendPoint is one day of the sales trend.
type TrendPoint struct {
	Day    time.Time
	Orders int64
	Total  float64
}

// TopProduct is one row of the best-sellers ranking, ordered by quantity.
type TopProduct struct {
	ProductID int64
	Name      string
	QtySold   int64
	Revenue   float64
}

// Overview bundles the dashboard widgets assembled in one request.
type Overview struct {
	Summary     Summary
	Trend       []TrendPoint
	TopProducts []TopProduct
}

// Window is a resolved half-open reporting interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// ResolveRange translates a named range into a concrete window, anchored at
// now in the local timezone.
func ResolveRange(name RangeName, now time.Time) (Window, bool) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch name {
	case RangeToday:
		return Window{From: startOfDay, To: startOfDay.AddDate(0, 0, 1)}, true
	case RangeWeek:
		return Window{From: startOfDay.AddDate(0, 0, -6), To: startOfDay.AddDate(0, 0, 1)}, true
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{From: start, To: start.AddDate(0, 1, 0)}, true
	case RangeLastMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return Window{From: start, To: start.AddDate(0, 1, 0)}, true
	}
	return Window{}, false
}
