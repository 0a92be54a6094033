package party

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

const partyColumns = `id, kind, name, phone, address, category, notes, wallet_balance, is_active, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.Phone, &p.Address, &p.Category, &p.Notes, &p.WalletBalance, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, shared.NotFoundf("party: not found")
	}
	return p, err
}

// Create inserts a new party.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO parties (kind, name, phone, address, category, notes, wallet_balance, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, TRUE, NOW(), NOW()) RETURNING `+partyColumns,
		input.Kind, input.Name, input.Phone, input.Address, input.Category, input.Notes)
	return scanParty(row)
}

// Get returns one party by id.
func (r *Repository) Get(ctx context.Context, id int64) (Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = $1`, id)
	return scanParty(row)
}

// GetByPhone returns the party with the given phone for the kind.
func (r *Repository) GetByPhone(ctx context.Context, kind Kind, phone string) (Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE kind = $1 AND phone = $2 LIMIT 1`, kind, phone)
	return scanParty(row)
}

// GetByName returns the party with the given name (case insensitive).
func (r *Repository) GetByName(ctx context.Context, kind Kind, name string) (Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE kind = $1 AND LOWER(name) = LOWER($2) LIMIT 1`, kind, name)
	return scanParty(row)
}

// List returns parties matching the request, newest first.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE 1=1`
	args := []any{}
	idx := 1
	if req.Kind != "" {
		query += ` AND kind = $` + strconv.Itoa(idx)
		args = append(args, req.Kind)
		idx++
	}
	if req.ActiveOnly {
		query += ` AND is_active`
	}
	if req.Query != "" {
		query += ` AND (name ILIKE $` + strconv.Itoa(idx) + ` OR phone ILIKE $` + strconv.Itoa(idx) + `)`
		args = append(args, "%"+req.Query+"%")
		idx++
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(idx)
	args = append(args, req.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.Phone, &p.Address, &p.Category, &p.Notes, &p.WalletBalance, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parties, nil
}

// Update edits party master data.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `UPDATE parties SET name = $2, phone = $3, address = $4, category = $5, notes = $6, updated_at = NOW()
WHERE id = $1 RETURNING `+partyColumns,
		id, input.Name, input.Phone, input.Address, input.Category, input.Notes)
	return scanParty(row)
}

// SetActive toggles the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE parties SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("party: not found")
	}
	return nil
}
