package invoice

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-erp/spindle-erp/internal/platform/db"
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

// IsUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// WithTx runs fn against a transactional repository view.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, kind, number, party_id, party_name, party_phone, sub_total, discount, grand_total, paid_amount, due_amount, payment_method, note, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var partyID *int64
	err := row.Scan(&inv.ID, &inv.Kind, &inv.Number, &partyID, &inv.PartySnapshot.Name, &inv.PartySnapshot.Phone,
		&inv.SubTotal, &inv.Discount, &inv.GrandTotal, &inv.PaidAmount, &inv.DueAmount, &inv.PaymentMethod, &inv.Note, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice: not found")
	}
	if partyID != nil {
		inv.PartyID = *partyID
	}
	return inv, err
}

// GetInvoice returns one invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, description, qty, unit, price, line_total, attributes
FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item LineItem
		var productID *int64
		if err := rows.Scan(&item.ID, &productID, &item.Description, &item.Qty, &item.Unit, &item.Price, &item.LineTotal, &item.Attributes); err != nil {
			return Invoice{}, err
		}
		if productID != nil {
			item.ProductID = *productID
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

// ListInvoices returns invoice headers matching the request, newest first.
func (r *Repository) ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(clause string, value any) {
		query += ` AND ` + clause + `$` + strconv.Itoa(idx)
		args = append(args, value)
		idx++
	}
	if req.Kind != "" {
		add(`kind = `, req.Kind)
	}
	if req.PartyID != 0 {
		add(`party_id = `, req.PartyID)
	}
	if !req.From.IsZero() {
		add(`created_at >= `, req.From)
	}
	if !req.To.IsZero() {
		add(`created_at < `, req.To.Add(24*time.Hour))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(idx)
	args = append(args, req.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NextDocumentNumber atomically draws the next sequence value for the kind.
// The seed row is created on first use so 10001 is always the first number.
func (r *txRepository) NextDocumentNumber(ctx context.Context, kind Kind) (int64, error) {
	var value int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (kind, next_value) VALUES ($1, $2)
ON CONFLICT (kind) DO UPDATE SET next_value = document_sequences.next_value + 1
RETURNING next_value - 1`, kind, firstDocumentNumber+1).Scan(&value)
	return value, err
}

func (r *txRepository) GetWalletForUpdate(ctx context.Context, partyID int64) (float64, error) {
	var balance float64
	err := r.tx.QueryRow(ctx, `SELECT wallet_balance FROM parties WHERE id = $1 FOR UPDATE`, partyID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NotFoundf("invoice: party %d not found", partyID)
	}
	return balance, err
}

func (r *txRepository) DebitWallet(ctx context.Context, partyID int64, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE parties SET wallet_balance = wallet_balance - $2, updated_at = NOW()
WHERE id = $1 AND wallet_balance >= $2`, partyID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Consistencyf("invoice: wallet debit of %.2f exceeds balance for party %d", amount, partyID)
	}
	return nil
}

func (r *txRepository) CreditWallet(ctx context.Context, partyID int64, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE parties SET wallet_balance = wallet_balance + $2, updated_at = NOW() WHERE id = $1`, partyID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice: party %d not found", partyID)
	}
	return nil
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var partyID *int64
	if inv.PartyID != 0 {
		partyID = &inv.PartyID
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (kind, number, party_id, party_name, party_phone, sub_total, discount, grand_total, paid_amount, due_amount, payment_method, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW()) RETURNING id`,
		inv.Kind, inv.Number, partyID, inv.PartySnapshot.Name, inv.PartySnapshot.Phone,
		inv.SubTotal, inv.Discount, inv.GrandTotal, inv.PaidAmount, inv.DueAmount, inv.PaymentMethod, inv.Note).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLines(ctx context.Context, invoiceID int64, items []LineItem) error {
	for _, item := range items {
		var productID *int64
		if item.ProductID != 0 {
			productID = &item.ProductID
		}
		attrs := item.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		_, err := r.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, product_id, description, qty, unit, price, line_total, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			invoiceID, productID, item.Description, item.Qty, item.Unit, item.Price, item.LineTotal, attrs)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertStockMovement(ctx context.Context, productID int64, qtyChange int64, note string, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (product_id, kind, qty_change, note, ref_type, ref_id, created_at)
VALUES ($1, 'sale_consumption', $2, $3, 'invoice', $4, NOW())`, productID, qtyChange, note, invoiceID)
	return err
}

// StockOnHand derives current stock from the movement ledger. Runs inside
// the creation transaction so the oversell check sees its own prior lines.
func (r *txRepository) StockOnHand(ctx context.Context, productID int64) (int64, error) {
	var stock int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty_change), 0) FROM stock_movements WHERE product_id = $1`, productID).Scan(&stock)
	return stock, err
}

func (r *txRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND is_active)`, productID).Scan(&exists)
	return exists, err
}
