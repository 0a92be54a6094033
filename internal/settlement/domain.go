package settlement

import (
	"time"

	"github.com/spindle-erp/spindle-erp/internal/party"
)

// Allocation records money from one payment applied to one invoice.
// Allocations are immutable once written.
type Allocation struct {
	ID            int64
	PaymentID     int64
	InvoiceID     int64
	InvoiceNumber string
	AmountApplied float64
}

// PaymentRecord is one received (customer) or issued (supplier) payment and
// where it went. Amount always equals the sum of allocations plus
// WalletCredit.
type PaymentRecord struct {
	ID           int64
	PartyID      int64
	Amount       float64
	Date         time.Time
	Note         string
	WalletCredit float64
	AppliedTo    []Allocation
	CreatedAt    time.Time
}

// SettleInput describes a settlement request.
type SettleInput struct {
	PartyID        int64
	Amount         float64
	Date           time.Time
	Note           string
	IdempotencyKey string
}

// OpenInvoice is the slice of an invoice the engine works with: identity and
// the outstanding balance.
type OpenInvoice struct {
	InvoiceID  int64
	Number     string
	GrandTotal float64
	PaidAmount float64
	DueAmount  float64
	CreatedAt  time.Time
}

// PartyLedger is the read-side view of one party's position: open invoices
// oldest first, the most recent payments, and the total outstanding.
type PartyLedger struct {
	Party          party.Party
	OpenInvoices   []OpenInvoice
	RecentPayments []PaymentRecord
	TotalDue       float64
}

// recentPaymentsLimit caps the payments shown on the party ledger view.
const recentPaymentsLimit = 20
