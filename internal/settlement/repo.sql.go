package settlement

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-erp/spindle-erp/internal/invoice"
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

// WithTx runs fn against a transactional repository view.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const openInvoiceQuery = `SELECT id, number, grand_total, paid_amount, due_amount, created_at
FROM invoices WHERE party_id = $1 AND kind = $2 AND due_amount > 0
ORDER BY created_at ASC, id ASC`

func scanOpenInvoices(rows pgx.Rows) ([]OpenInvoice, error) {
	defer rows.Close()
	var open []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.InvoiceID, &inv.Number, &inv.GrandTotal, &inv.PaidAmount, &inv.DueAmount, &inv.CreatedAt); err != nil {
			return nil, err
		}
		open = append(open, inv)
	}
	return open, rows.Err()
}

// ListOpenInvoices returns the party's unpaid invoices oldest first.
func (r *Repository) ListOpenInvoices(ctx context.Context, partyID int64, kind invoice.Kind) ([]OpenInvoice, error) {
	rows, err := r.pool.Query(ctx, openInvoiceQuery, partyID, kind)
	if err != nil {
		return nil, err
	}
	return scanOpenInvoices(rows)
}

// ListPayments returns the party's payments newest first with allocations.
func (r *Repository) ListPayments(ctx context.Context, partyID int64, limit int) ([]PaymentRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, party_id, amount, paid_on, note, wallet_credit, created_at
FROM payments WHERE party_id = $1 ORDER BY paid_on DESC, id DESC LIMIT $2`, partyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []PaymentRecord
	byID := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var rec PaymentRecord
		if err := rows.Scan(&rec.ID, &rec.PartyID, &rec.Amount, &rec.Date, &rec.Note, &rec.WalletCredit, &rec.CreatedAt); err != nil {
			return nil, err
		}
		byID[rec.ID] = len(payments)
		ids = append(ids, rec.ID)
		payments = append(payments, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return payments, nil
	}

	allocRows, err := r.pool.Query(ctx, `SELECT id, payment_id, invoice_id, invoice_number, amount_applied
FROM payment_allocations WHERE payment_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a Allocation
		if err := allocRows.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.InvoiceNumber, &a.AmountApplied); err != nil {
			return nil, err
		}
		if idx, ok := byID[a.PaymentID]; ok {
			payments[idx].AppliedTo = append(payments[idx].AppliedTo, a)
		}
	}
	return payments, allocRows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// LockOpenInvoices takes row locks on the party's unpaid invoices so the
// FIFO pass sees a stable set.
func (r *txRepository) LockOpenInvoices(ctx context.Context, partyID int64, kind invoice.Kind) ([]OpenInvoice, error) {
	rows, err := r.tx.Query(ctx, openInvoiceQuery+` FOR UPDATE`, partyID, kind)
	if err != nil {
		return nil, err
	}
	return scanOpenInvoices(rows)
}

// ApplyToInvoice moves amount from due to paid, asserting the due amount the
// engine read is the one being written over. Zero rows affected means the
// row changed underneath the lock, which must not happen.
func (r *txRepository) ApplyToInvoice(ctx context.Context, invoiceID int64, expectedDue, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices
SET paid_amount = paid_amount + $2, due_amount = due_amount - $2
WHERE id = $1 AND due_amount = $3 AND due_amount >= $2`, invoiceID, amount, expectedDue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return shared.Consistencyf("settlement: invoice %d due amount moved during settlement", invoiceID)
	}
	return nil
}

func (r *txRepository) CreditWallet(ctx context.Context, partyID int64, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE parties SET wallet_balance = wallet_balance + $2, updated_at = NOW() WHERE id = $1`, partyID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("settlement: party %d not found", partyID)
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, rec PaymentRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (party_id, amount, paid_on, note, wallet_credit, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		rec.PartyID, rec.Amount, rec.Date, rec.Note, rec.WalletCredit).Scan(&id)
	return id, err
}

func (r *txRepository) InsertAllocations(ctx context.Context, paymentID int64, allocations []Allocation) error {
	for _, a := range allocations {
		_, err := r.tx.Exec(ctx, `INSERT INTO payment_allocations (payment_id, invoice_id, invoice_number, amount_applied)
VALUES ($1, $2, $3, $4)`, paymentID, a.InvoiceID, a.InvoiceNumber, a.AmountApplied)
		if err != nil {
			return err
		}
	}
	return nil
}
