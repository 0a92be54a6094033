package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-erp/spindle-erp/internal/observability"
)

// amountTolerance absorbs float accumulation noise in stored amounts.
const amountTolerance = 0.005

// IntegrityScanJob checks stored invoices, payments and wallets against the
// invariants the write paths are supposed to uphold. It only reports; it
// never mutates.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewIntegrityScanJob wires dependencies for the scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type integrityCheck struct {
	name  string
	query string
}

var integrityChecks = []integrityCheck{
	{
		name: "invoice_conservation",
		query: `SELECT number FROM invoices
WHERE ABS(paid_amount + due_amount - grand_total) > $1`,
	},
	{
		name: "invoice_negative_amount",
		query: `SELECT number FROM invoices
WHERE paid_amount < -$1 OR due_amount < -$1`,
	},
	{
		name: "payment_conservation",
		query: `SELECT p.id::text FROM payments p
LEFT JOIN (SELECT payment_id, SUM(amount_applied) AS applied FROM payment_allocations GROUP BY payment_id) a
ON a.payment_id = p.id
WHERE ABS(p.amount - p.wallet_credit - COALESCE(a.applied, 0)) > $1`,
	},
	{
		name: "negative_wallet",
		query: `SELECT id::text FROM parties
WHERE wallet_balance < -$1`,
	},
}

// Handle runs all checks and records one violation per offending row.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("jobs: integrity scan not configured")
	}
	start := time.Now()
	total := 0
	for _, check := range integrityChecks {
		rows, err := j.Pool.Query(ctx, check.query, amountTolerance)
		if err != nil {
			return err
		}
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return err
			}
			total++
			if j.Metrics != nil {
				j.Metrics.ObserveIntegrityViolation(check.name)
			}
			if j.Logger != nil {
				j.Logger.Error("integrity violation",
					slog.String("check", check.name),
					slog.String("ref", ref))
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	if j.Logger != nil {
		j.Logger.Info("integrity scan finished",
			slog.Int("violations", total),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}
