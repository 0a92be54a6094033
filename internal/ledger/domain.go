package ledger

import (
	"time"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// KindRestock represents finished goods entering stock.
	KindRestock MovementKind = "restock"
	// KindSaleConsumption represents stock leaving through a sale.
	KindSaleConsumption MovementKind = "sale_consumption"
	// KindAdjustment represents a manual correction, positive or negative.
	KindAdjustment MovementKind = "adjustment"
)

// Valid reports whether the kind is one of the supported movement kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case KindRestock, KindSaleConsumption, KindAdjustment:
		return true
	}
	return false
}

// Movement is one immutable signed quantity-change event. Current stock for
// a product is always the running sum of its movements; nothing else in the
// system stores stock as mutable truth.
type Movement struct {
	ID        int64
	ProductID int64
	Kind      MovementKind
	QtyChange int64
	Note      string
	RefType   string
	RefID     int64
	CreatedAt time.Time
}

// Reference links a movement to the document that caused it.
type Reference struct {
	Type string
	ID   int64
}

// AppendInput describes a movement to append.
type AppendInput struct {
	ProductID int64
	Kind      MovementKind
	QtyChange int64
	Note      string
	Reference Reference
}

// MovementFilter narrows movement listings for reporting collaborators.
type MovementFilter struct {
	ProductID int64
	Kind      MovementKind
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrZeroQuantity rejects movements that would not change stock.
var ErrZeroQuantity = shared.Validationf("ledger: quantity change must be non zero")

// ErrUnknownKind rejects unsupported movement kinds.
var ErrUnknownKind = shared.Validationf("ledger: unknown movement kind")

// ErrProductNotFound indicates the referenced product does not exist.
var ErrProductNotFound = shared.NotFoundf("ledger: product not found")
