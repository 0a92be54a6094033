package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spindle-erp/spindle-erp/internal/invoice"
	"github.com/spindle-erp/spindle-erp/internal/party"
	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort defines data access for the settlement engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListOpenInvoices(ctx context.Context, partyID int64, kind invoice.Kind) ([]OpenInvoice, error)
	ListPayments(ctx context.Context, partyID int64, limit int) ([]PaymentRecord, error)
}

// TxRepository exposes the transactional operations of one settlement pass.
type TxRepository interface {
	LockOpenInvoices(ctx context.Context, partyID int64, kind invoice.Kind) ([]OpenInvoice, error)
	ApplyToInvoice(ctx context.Context, invoiceID int64, expectedDue, amount float64) error
	CreditWallet(ctx context.Context, partyID int64, amount float64) error
	InsertPayment(ctx context.Context, rec PaymentRecord) (int64, error)
	InsertAllocations(ctx context.Context, paymentID int64, allocations []Allocation) error
}

// PartyPort is the slice of the party service the engine needs.
type PartyPort interface {
	Get(ctx context.Context, id int64) (party.Party, error)
}

// LockPort serialises settlements per party across instances.
type LockPort interface {
	Acquire(ctx context.Context, partyID int64) (func(context.Context), error)
}

// IdempotencyPort guards against request replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort records settlement outcomes.
type MetricsPort interface {
	ObserveSettlement(kind, outcome string, allocated, walletCredit float64)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs FIFO settlements and serves the party ledger view.
type Service struct {
	repo    RepositoryPort
	parties PartyPort
	locks   LockPort
	idem    IdempotencyPort
	metrics MetricsPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewService builds Service. locks, idem, metrics and audit may be nil.
func NewService(repo RepositoryPort, parties PartyPort, locks LockPort, idem IdempotencyPort, metrics MetricsPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, parties: parties, locks: locks, idem: idem, metrics: metrics, audit: audit, logger: logger}
}

// invoiceKindFor maps the party side to the invoice kind it settles.
func invoiceKindFor(kind party.Kind) invoice.Kind {
	if kind == party.KindSupplier {
		return invoice.KindPurchase
	}
	return invoice.KindSale
}

// Settle applies a payment to the party's open invoices oldest first and
// credits any remainder to the wallet. The whole pass runs inside one
// transaction under a per-party advisory lock; per-invoice updates assert
// the due amount they read, so a concurrent writer surfaces as a
// consistency error instead of a silent double allocation.
func (s *Service) Settle(ctx context.Context, input SettleInput) (PaymentRecord, error) {
	if input.Amount <= 0 {
		return PaymentRecord{}, shared.Validationf("settlement: amount must be positive")
	}
	p, err := s.parties.Get(ctx, input.PartyID)
	if err != nil {
		return PaymentRecord{}, err
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}

	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "settlement"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PaymentRecord{}, shared.Conflictf("settlement: request already processed")
			}
			return PaymentRecord{}, err
		}
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, input.PartyID)
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				err = shared.Conflictf("settlement: another settlement for party %d is in progress", input.PartyID)
			}
			s.settleFailed(ctx, input, p, err)
			return PaymentRecord{}, err
		}
		defer release(ctx)
	}

	var record PaymentRecord
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		open, err := tx.LockOpenInvoices(ctx, input.PartyID, invoiceKindFor(p.Kind))
		if err != nil {
			return err
		}
		remaining := input.Amount
		var allocations []Allocation
		for _, inv := range open {
			if remaining <= 0 {
				break
			}
			apply := remaining
			if inv.DueAmount < apply {
				apply = inv.DueAmount
			}
			if err := tx.ApplyToInvoice(ctx, inv.InvoiceID, inv.DueAmount, apply); err != nil {
				return err
			}
			allocations = append(allocations, Allocation{
				InvoiceID:     inv.InvoiceID,
				InvoiceNumber: inv.Number,
				AmountApplied: apply,
			})
			remaining -= apply
		}

		note := input.Note
		if remaining > 0 {
			if err := tx.CreditWallet(ctx, input.PartyID, remaining); err != nil {
				return err
			}
			note = appendNote(note, fmt.Sprintf("Credited to wallet: %.2f", remaining))
		}

		record = PaymentRecord{
			PartyID:      input.PartyID,
			Amount:       input.Amount,
			Date:         input.Date,
			Note:         note,
			WalletCredit: remaining,
		}
		id, err := tx.InsertPayment(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id
		if err := tx.InsertAllocations(ctx, id, allocations); err != nil {
			return err
		}
		for i := range allocations {
			allocations[i].PaymentID = id
		}
		record.AppliedTo = allocations
		return nil
	})
	if err != nil {
		s.settleFailed(ctx, input, p, err)
		return PaymentRecord{}, err
	}

	allocated := record.Amount - record.WalletCredit
	if s.metrics != nil {
		s.metrics.ObserveSettlement(string(p.Kind), "ok", allocated, record.WalletCredit)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "settlement:settle",
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", record.ID),
			Meta: map[string]any{
				"party_id":      input.PartyID,
				"amount":        input.Amount,
				"allocated":     allocated,
				"wallet_credit": record.WalletCredit,
				"invoices":      len(record.AppliedTo),
			},
		})
	}
	if s.logger != nil {
		s.logger.Info("settlement applied",
			slog.Int64("party_id", input.PartyID),
			slog.Float64("amount", input.Amount),
			slog.Float64("allocated", allocated),
			slog.Float64("wallet_credit", record.WalletCredit))
	}
	return record, nil
}

// settleFailed records the failure outcome and releases the idempotency key
// so a legitimate retry can go through.
func (s *Service) settleFailed(ctx context.Context, input SettleInput, p party.Party, err error) {
	if s.metrics != nil {
		s.metrics.ObserveSettlement(string(p.Kind), "error", 0, 0)
	}
	if s.idem != nil && input.IdempotencyKey != "" {
		// Nothing committed, so the key must not block a legitimate retry.
		_ = s.idem.Delete(ctx, input.IdempotencyKey)
	}
	if s.logger != nil && errors.Is(err, shared.ErrConsistency) {
		s.logger.Error("settlement consistency violation",
			slog.Int64("party_id", input.PartyID),
			slog.Any("error", err))
	}
}

// PartyLedger assembles the read-side position of one party.
func (s *Service) PartyLedger(ctx context.Context, partyID int64) (PartyLedger, error) {
	p, err := s.parties.Get(ctx, partyID)
	if err != nil {
		return PartyLedger{}, err
	}
	open, err := s.repo.ListOpenInvoices(ctx, partyID, invoiceKindFor(p.Kind))
	if err != nil {
		return PartyLedger{}, err
	}
	payments, err := s.repo.ListPayments(ctx, partyID, recentPaymentsLimit)
	if err != nil {
		return PartyLedger{}, err
	}
	totalDue := 0.0
	for _, inv := range open {
		totalDue += inv.DueAmount
	}
	return PartyLedger{
		Party:          p,
		OpenInvoices:   open,
		RecentPayments: payments,
		TotalDue:       totalDue,
	}, nil
}

func appendNote(note, extra string) string {
	if note == "" {
		return extra
	}
	return note + ". " + extra
}
