package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the report aggregations against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesSummary aggregates sale invoices over [from, to).
func (r *Repository) SalesSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
COALESCE(SUM(grand_total), 0), COALESCE(SUM(discount), 0),
COALESCE(SUM(paid_amount), 0), COALESCE(SUM(due_amount), 0)
FROM invoices WHERE kind = 'SALE' AND created_at >= $1 AND created_at < $2`, from, to).
		Scan(&s.Orders, &s.TotalSales, &s.TotalDiscount, &s.TotalPaid, &s.TotalDue)
	return s, err
}

// DailyTrend groups sale invoices per day over [from, to). Days with no
// sales are absent from the result.
func (r *Repository) DailyTrend(ctx context.Context, from, to time.Time) ([]TrendPoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*), COALESCE(SUM(grand_total), 0)
FROM invoices WHERE kind = 'SALE' AND created_at >= $1 AND created_at < $2
GROUP BY day ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var trend []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Day, &p.Orders, &p.Total); err != nil {
			return nil, err
		}
		trend = append(trend, p)
	}
	return trend, rows.Err()
}

// TopProducts ranks sold products by quantity over [from, to).
func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.product_id, p.name, SUM(l.qty)::bigint, SUM(l.line_total)
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id
JOIN products p ON p.id = l.product_id
WHERE i.kind = 'SALE' AND i.created_at >= $1 AND i.created_at < $2
GROUP BY l.product_id, p.name
ORDER BY SUM(l.qty) DESC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.QtySold, &t.Revenue); err != nil {
			return nil, err
		}
		top = append(top, t)
	}
	return top, rows.Err()
}
