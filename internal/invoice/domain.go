package invoice

import (
	"time"
)

// Kind separates sales (receivables) from purchases (payables).
type Kind string

const (
	// KindSale is a customer-facing invoice that consumes finished goods.
	KindSale Kind = "SALE"
	// KindPurchase is a supplier invoice for raw materials. Purchases never
	// move finished-goods stock.
	KindPurchase Kind = "PURCHASE"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindSale || k == KindPurchase
}

// NumberPrefix returns the document number prefix for the kind.
func (k Kind) NumberPrefix() string {
	if k == KindSale {
		return "BD-"
	}
	return "PR-"
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodCredit PaymentMethod = "credit"
)

// Valid reports whether the method is accepted.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodCredit:
		return true
	}
	return false
}

// PartySnapshot freezes the counterparty identity at invoice time, so that
// later edits to the party record do not rewrite history.
type PartySnapshot struct {
	Name  string
	Phone string
}

// LineItem is one priced line on an invoice. Sales lines reference a
// product; purchase lines may carry only a description for loose materials.
type LineItem struct {
	ID          int64
	ProductID   int64
	Description string
	Qty         float64
	Unit        string
	Price       float64
	LineTotal   float64
	Attributes  map[string]string
}

// Invoice is a sale or purchase document. PaidAmount and DueAmount are
// mutated only by the settlement engine after creation, and always satisfy
// paid + due == grandTotal.
type Invoice struct {
	ID            int64
	Kind          Kind
	Number        string
	PartyID       int64
	PartySnapshot PartySnapshot
	Items         []LineItem
	SubTotal      float64
	Discount      float64
	GrandTotal    float64
	PaidAmount    float64
	DueAmount     float64
	PaymentMethod PaymentMethod
	Note          string
	CreatedAt     time.Time
}

// LineItemInput is one requested invoice line.
type LineItemInput struct {
	ProductID   int64
	Description string
	Qty         float64
	Unit        string
	Price       float64
	Attributes  map[string]string
}

// CreateInput describes an invoice to create.
type CreateInput struct {
	Kind          Kind
	PartyID       int64
	PartyName     string
	PartyPhone    string
	Items         []LineItemInput
	Discount      float64
	PaymentMethod PaymentMethod
	PaidUpfront   float64
	Note          string
}

// CreateResult carries the created invoice plus resolution metadata.
type CreateResult struct {
	Invoice        Invoice
	PartyCreated   bool
	WalletDrawdown float64
	WalletOverflow float64
}

// ListRequest filters invoice listings.
type ListRequest struct {
	Kind    Kind
	PartyID int64
	From    time.Time
	To      time.Time
	Limit   int
}

// Document number sequences start here for both kinds.
const firstDocumentNumber = 10001

// attributeSchema lists the allowed line attribute keys per kind. Anything
// outside the schema is rejected at the boundary instead of being stored
// blindly.
var attributeSchema = map[Kind]map[string]bool{
	KindSale: {},
	KindPurchase: {
		"shade":  true,
		"lot":    true,
		"origin": true,
		"grade":  true,
	},
}
