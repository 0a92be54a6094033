package catalog

import "time"

// Product is a finished-goods SKU. Stock is never stored here; it is always
// derived from the movement ledger.
type Product struct {
	ID             int64
	SKU            string
	Name           string
	Size           string
	Quality        string
	RetailPrice    float64
	WholesalePrice float64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductWithStock pairs a product with its derived stock level.
type ProductWithStock struct {
	Product
	Stock int64
}

// CreateInput describes a product to register.
type CreateInput struct {
	SKU            string
	Name           string
	Size           string
	Quality        string
	RetailPrice    float64
	WholesalePrice float64
}

// ListRequest filters product listings.
type ListRequest struct {
	Query      string
	ActiveOnly bool
	Limit      int
}
