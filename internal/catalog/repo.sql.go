package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, size, quality, retail_price, wholesale_price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Size, &p.Quality, &p.RetailPrice, &p.WholesalePrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundf("catalog: product not found")
	}
	return p, err
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, size, quality, retail_price, wholesale_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW()) RETURNING `+productColumns,
		input.SKU, input.Name, input.Size, input.Quality, input.RetailPrice, input.WholesalePrice)
	return scanProduct(row)
}

// Get returns one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// SKUExists reports whether a product carries the SKU already.
func (r *Repository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`, sku).Scan(&exists)
	return exists, err
}

// ListWithStock joins products against the movement sums so listings show
// derived stock without a second round trip.
func (r *Repository) ListWithStock(ctx context.Context, req ListRequest) ([]ProductWithStock, error) {
	query := `SELECT p.id, p.sku, p.name, p.size, p.quality, p.retail_price, p.wholesale_price, p.is_active, p.created_at, p.updated_at,
COALESCE(m.stock, 0)
FROM products p
LEFT JOIN (SELECT product_id, SUM(qty_change) AS stock FROM stock_movements GROUP BY product_id) m ON m.product_id = p.id
WHERE 1=1`
	args := []any{}
	idx := 1
	if req.ActiveOnly {
		query += ` AND p.is_active`
	}
	if req.Query != "" {
		query += ` AND (p.name ILIKE $` + strconv.Itoa(idx) + ` OR p.sku ILIKE $` + strconv.Itoa(idx) + `)`
		args = append(args, "%"+req.Query+"%")
		idx++
	}
	query += ` ORDER BY p.name ASC LIMIT $` + strconv.Itoa(idx)
	args = append(args, req.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []ProductWithStock
	for rows.Next() {
		var p ProductWithStock
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Size, &p.Quality, &p.RetailPrice, &p.WholesalePrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
