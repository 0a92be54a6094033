package party

import (
	"time"
)

// Kind separates the receivables side from the payables side. The wallet and
// settlement semantics are identical for both.
type Kind string

const (
	// KindCustomer owes money to the business (receivables).
	KindCustomer Kind = "CUSTOMER"
	// KindSupplier is owed money by the business (payables).
	KindSupplier Kind = "SUPPLIER"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

// Party is a customer or supplier. WalletBalance is a non-negative credit
// absorbing payment overflow; only the settlement engine and invoice
// drawdown mutate it.
type Party struct {
	ID            int64
	Kind          Kind
	Name          string
	Phone         string
	Address       string
	Category      string
	Notes         string
	WalletBalance float64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateInput describes a party to register.
type CreateInput struct {
	Kind     Kind
	Name     string
	Phone    string
	Address  string
	Category string
	Notes    string
}

// UpdateInput carries editable party fields.
type UpdateInput struct {
	Name     string
	Phone    string
	Address  string
	Category string
	Notes    string
}

// ListRequest filters party listings.
type ListRequest struct {
	Kind       Kind
	Query      string
	ActiveOnly bool
	Limit      int
}

// Resolution is the outcome of walk-in phone resolution at sale time.
type Resolution struct {
	Party   Party
	Created bool
}
