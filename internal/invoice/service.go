package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/spindle-erp/spindle-erp/internal/party"
	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error)
}

// TxRepository exposes the transactional operations used during creation.
// Everything an invoice touches (wallet, lines, stock movements, sequence)
// commits or rolls back as one unit.
type TxRepository interface {
	NextDocumentNumber(ctx context.Context, kind Kind) (int64, error)
	GetWalletForUpdate(ctx context.Context, partyID int64) (float64, error)
	DebitWallet(ctx context.Context, partyID int64, amount float64) error
	CreditWallet(ctx context.Context, partyID int64, amount float64) error
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertLines(ctx context.Context, invoiceID int64, items []LineItem) error
	InsertStockMovement(ctx context.Context, productID int64, qtyChange int64, note string, invoiceID int64) error
	ProductExists(ctx context.Context, productID int64) (bool, error)
	StockOnHand(ctx context.Context, productID int64) (int64, error)
}

// PartyPort is the slice of the party service the invoice module needs.
type PartyPort interface {
	Get(ctx context.Context, id int64) (party.Party, error)
	ResolveByPhone(ctx context.Context, kind party.Kind, phone, typedName string) (party.Resolution, error)
}

// IsUniqueViolation reports whether err is a duplicate-key error from the
// storage layer. Used for the one-shot document number retry.
type UniqueViolationChecker func(error) bool

// Policy carries business toggles for invoice creation.
type Policy struct {
	// AllowNegativeStock permits sale consumption to drive derived stock
	// below zero. When false, a sale line is rejected once it would
	// oversell the product.
	AllowNegativeStock bool
}

// Service creates and reads invoices.
type Service struct {
	repo     RepositoryPort
	parties  PartyPort
	logger   *slog.Logger
	isUnique UniqueViolationChecker
	policy   Policy
}

// NewService builds Service.
func NewService(repo RepositoryPort, parties PartyPort, logger *slog.Logger, isUnique UniqueViolationChecker, policy Policy) *Service {
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &Service{repo: repo, parties: parties, logger: logger, isUnique: isUnique, policy: policy}
}

// Create validates, prices and persists an invoice. Sales additionally
// append one negative stock movement per line; both kinds draw down the
// counterparty wallet against any due amount. A duplicate document number is
// retried once with a freshly drawn sequence value.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if !input.Kind.Valid() {
		return CreateResult{}, shared.Validationf("invoice: unknown kind %q", input.Kind)
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = MethodCash
	}
	if !input.PaymentMethod.Valid() {
		return CreateResult{}, shared.Validationf("invoice: unknown payment method %q", input.PaymentMethod)
	}
	if len(input.Items) == 0 {
		return CreateResult{}, shared.Validationf("invoice: items required")
	}
	if input.Discount < 0 {
		return CreateResult{}, shared.Validationf("invoice: discount must not be negative")
	}
	if input.Kind == KindPurchase && input.Discount != 0 {
		return CreateResult{}, shared.Validationf("invoice: purchases do not carry a discount")
	}
	if input.PaidUpfront < 0 {
		return CreateResult{}, shared.Validationf("invoice: paid amount must not be negative")
	}

	items, subTotal, err := normalizeItems(input.Kind, input.Items)
	if err != nil {
		return CreateResult{}, err
	}
	grandTotal := math.Max(0, subTotal-input.Discount)

	resolved, err := s.resolveParty(ctx, input)
	if err != nil {
		return CreateResult{}, err
	}

	paid := input.PaidUpfront
	overflow := 0.0
	if paid > grandTotal {
		overflow = paid - grandTotal
		paid = grandTotal
		if resolved.partyID == 0 {
			return CreateResult{}, shared.Validationf("invoice: overpayment requires a registered party")
		}
	}
	due := grandTotal - paid

	result := CreateResult{PartyCreated: resolved.created}
	attempt := func(ctx context.Context, tx TxRepository) error {
		note := strings.TrimSpace(input.Note)
		paid, due := paid, due

		if resolved.partyID != 0 {
			wallet, err := tx.GetWalletForUpdate(ctx, resolved.partyID)
			if err != nil {
				return err
			}
			if due > 0 && wallet > 0 {
				drawdown := math.Min(wallet, due)
				paid += drawdown
				due -= drawdown
				if err := tx.DebitWallet(ctx, resolved.partyID, drawdown); err != nil {
					return err
				}
				note = appendNote(note, fmt.Sprintf("Paid from wallet: %.2f", drawdown))
				result.WalletDrawdown = drawdown
			}
			if overflow > 0 {
				if err := tx.CreditWallet(ctx, resolved.partyID, overflow); err != nil {
					return err
				}
				note = appendNote(note, fmt.Sprintf("Advance credited to wallet: %.2f", overflow))
				result.WalletOverflow = overflow
			}
		}

		seq, err := tx.NextDocumentNumber(ctx, input.Kind)
		if err != nil {
			return err
		}
		inv := Invoice{
			Kind:          input.Kind,
			Number:        fmt.Sprintf("%s%d", input.Kind.NumberPrefix(), seq),
			PartyID:       resolved.partyID,
			PartySnapshot: resolved.snapshot,
			Items:         items,
			SubTotal:      subTotal,
			Discount:      input.Discount,
			GrandTotal:    grandTotal,
			PaidAmount:    paid,
			DueAmount:     due,
			PaymentMethod: input.PaymentMethod,
			Note:          note,
		}
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		if err := tx.InsertLines(ctx, id, items); err != nil {
			return err
		}

		if input.Kind == KindSale {
			for _, item := range items {
				exists, err := tx.ProductExists(ctx, item.ProductID)
				if err != nil {
					return err
				}
				if !exists {
					return shared.NotFoundf("invoice: product %d not found", item.ProductID)
				}
				if !s.policy.AllowNegativeStock {
					stock, err := tx.StockOnHand(ctx, item.ProductID)
					if err != nil {
						return err
					}
					if need := int64(item.Qty); stock < need {
						return shared.Conflictf("invoice: product %d has %d in stock, requested %d", item.ProductID, stock, need)
					}
				}
				qty := -int64(item.Qty)
				if err := tx.InsertStockMovement(ctx, item.ProductID, qty, fmt.Sprintf("Sale %s", inv.Number), id); err != nil {
					return err
				}
			}
		}
		result.Invoice = inv
		return nil
	}

	err = s.repo.WithTx(ctx, attempt)
	if err != nil && s.isUnique(err) {
		// Another writer took the same document number; draw a fresh one.
		if s.logger != nil {
			s.logger.Warn("document number conflict, retrying", slog.String("kind", string(input.Kind)))
		}
		err = s.repo.WithTx(ctx, attempt)
		if err != nil && s.isUnique(err) {
			return CreateResult{}, shared.Conflictf("invoice: document number conflict")
		}
	}
	if err != nil {
		return CreateResult{}, err
	}
	return result, nil
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns invoices matching the request, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Invoice, error) {
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, shared.Validationf("invoice: unknown kind %q", req.Kind)
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 200
	}
	return s.repo.ListInvoices(ctx, req)
}

type resolvedParty struct {
	partyID  int64
	snapshot PartySnapshot
	created  bool
}

func (s *Service) resolveParty(ctx context.Context, input CreateInput) (resolvedParty, error) {
	expected := party.KindCustomer
	if input.Kind == KindPurchase {
		expected = party.KindSupplier
	}
	if input.PartyID != 0 {
		p, err := s.parties.Get(ctx, input.PartyID)
		if err != nil {
			return resolvedParty{}, err
		}
		if p.Kind != expected {
			return resolvedParty{}, shared.Validationf("invoice: party %d is not a %s", input.PartyID, strings.ToLower(string(expected)))
		}
		return resolvedParty{partyID: p.ID, snapshot: PartySnapshot{Name: p.Name, Phone: p.Phone}}, nil
	}
	if input.Kind == KindSale && strings.TrimSpace(input.PartyPhone) != "" {
		res, err := s.parties.ResolveByPhone(ctx, expected, input.PartyPhone, input.PartyName)
		if err != nil {
			return resolvedParty{}, err
		}
		return resolvedParty{
			partyID:  res.Party.ID,
			snapshot: PartySnapshot{Name: res.Party.Name, Phone: res.Party.Phone},
			created:  res.Created,
		}, nil
	}
	name := strings.TrimSpace(input.PartyName)
	if name == "" {
		name = "Walk-in"
	}
	return resolvedParty{snapshot: PartySnapshot{Name: name, Phone: strings.TrimSpace(input.PartyPhone)}}, nil
}

func normalizeItems(kind Kind, inputs []LineItemInput) ([]LineItem, float64, error) {
	items := make([]LineItem, 0, len(inputs))
	subTotal := 0.0
	allowed := attributeSchema[kind]
	for i, in := range inputs {
		if in.Qty <= 0 {
			return nil, 0, shared.Validationf("invoice: item %d requires a positive quantity", i+1)
		}
		if in.Price < 0 {
			return nil, 0, shared.Validationf("invoice: item %d price must not be negative", i+1)
		}
		// Purchases may record zero-price lines (free sample material).
		if kind == KindSale && in.Price == 0 {
			return nil, 0, shared.Validationf("invoice: item %d requires a positive price", i+1)
		}
		if kind == KindSale {
			if in.ProductID == 0 {
				return nil, 0, shared.Validationf("invoice: item %d requires a product", i+1)
			}
			if in.Qty != math.Trunc(in.Qty) {
				return nil, 0, shared.Validationf("invoice: item %d quantity must be a whole number of units", i+1)
			}
		} else if in.ProductID == 0 && strings.TrimSpace(in.Description) == "" {
			return nil, 0, shared.Validationf("invoice: item %d requires a material or description", i+1)
		}
		for key := range in.Attributes {
			if !allowed[key] {
				return nil, 0, shared.Validationf("invoice: item %d attribute %q not allowed", i+1, key)
			}
		}
		unit := in.Unit
		if unit == "" && kind == KindPurchase {
			unit = "kg"
		}
		description := strings.TrimSpace(in.Description)
		if description == "" && kind == KindPurchase {
			description = "Unknown material"
		}
		lineTotal := in.Qty * in.Price
		subTotal += lineTotal
		items = append(items, LineItem{
			ProductID:   in.ProductID,
			Description: description,
			Qty:         in.Qty,
			Unit:        unit,
			Price:       in.Price,
			LineTotal:   lineTotal,
			Attributes:  in.Attributes,
		})
	}
	return items, subTotal, nil
}

func appendNote(note, extra string) string {
	if note == "" {
		return extra
	}
	return note + ". " + extra
}
