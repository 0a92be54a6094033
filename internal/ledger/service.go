package ledger

import (
	"context"
	"fmt"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	InsertMovement(ctx context.Context, input AppendInput) (Movement, error)
	SumByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the append-only stock ledger.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Append records one signed quantity-change event. There is no update or
// delete path; corrections are compensating adjustment appends.
func (s *Service) Append(ctx context.Context, input AppendInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, shared.Validationf("ledger: product required")
	}
	if !input.Kind.Valid() {
		return Movement{}, ErrUnknownKind
	}
	if input.QtyChange == 0 {
		return Movement{}, ErrZeroQuantity
	}
	switch input.Kind {
	case KindRestock:
		if input.QtyChange < 0 {
			return Movement{}, shared.Validationf("ledger: restock must be positive")
		}
	case KindSaleConsumption:
		if input.QtyChange > 0 {
			return Movement{}, shared.Validationf("ledger: sale consumption must be negative")
		}
	}
	exists, err := s.repo.ProductExists(ctx, input.ProductID)
	if err != nil {
		return Movement{}, err
	}
	if !exists {
		return Movement{}, ErrProductNotFound
	}

	movement, err := s.repo.InsertMovement(ctx, input)
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   fmt.Sprintf("ledger:%s", input.Kind),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"qty_change": input.QtyChange,
				"note":       input.Note,
			},
		})
	}
	return movement, nil
}

// CurrentStock derives stock for a batch of products in one pass. Products
// with no movements report zero.
func (s *Service) CurrentStock(ctx context.Context, productIDs []int64) (map[int64]int64, error) {
	if len(productIDs) == 0 {
		return map[int64]int64{}, nil
	}
	sums, err := s.repo.SumByProduct(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if _, ok := sums[id]; !ok {
			sums[id] = 0
		}
	}
	return sums, nil
}

// Movements returns an ordered read-only sequence for reporting collaborators.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, ErrUnknownKind
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.ListMovements(ctx, filter)
}
