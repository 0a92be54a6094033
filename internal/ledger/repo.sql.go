package ledger

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMovement appends one movement row.
func (r *Repository) InsertMovement(ctx context.Context, input AppendInput) (Movement, error) {
	var m Movement
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_movements (product_id, kind, qty_change, note, ref_type, ref_id, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NOW()) RETURNING id, created_at`,
		input.ProductID, input.Kind, input.QtyChange, input.Note, input.Reference.Type, input.Reference.ID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	m.ProductID = input.ProductID
	m.Kind = input.Kind
	m.QtyChange = input.QtyChange
	m.Note = input.Note
	m.RefType = input.Reference.Type
	m.RefID = input.Reference.ID
	return m, nil
}

// SumByProduct aggregates qty_change per product in a single query so that
// catalog listings avoid N+1 lookups.
func (r *Repository) SumByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, COALESCE(SUM(qty_change), 0)
FROM stock_movements WHERE product_id = ANY($1) GROUP BY product_id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sums := make(map[int64]int64, len(productIDs))
	for rows.Next() {
		var productID, sum int64
		if err := rows.Scan(&productID, &sum); err != nil {
			return nil, err
		}
		sums[productID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sums, nil
}

// ListMovements returns movements matching the filter, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, product_id, kind, qty_change, note, ref_type, COALESCE(ref_id, 0), created_at
FROM stock_movements WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.ProductID != 0 {
		query += ` AND product_id = $` + strconv.Itoa(idx)
		args = append(args, filter.ProductID)
		idx++
	}
	if filter.Kind != "" {
		query += ` AND kind = $` + strconv.Itoa(idx)
		args = append(args, filter.Kind)
		idx++
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= $` + strconv.Itoa(idx)
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		query += ` AND created_at <= $` + strconv.Itoa(idx)
		args = append(args, filter.To)
		idx++
	}
	query += ` ORDER BY created_at, id LIMIT $` + strconv.Itoa(idx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.QtyChange, &m.Note, &m.RefType, &m.RefID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

// ProductExists reports whether the product id is known.
func (r *Repository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	return exists, err
}
