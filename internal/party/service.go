package party

import (
	"context"
	"fmt"
	"strings"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort defines data access methods for parties.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput) (Party, error)
	Get(ctx context.Context, id int64) (Party, error)
	GetByPhone(ctx context.Context, kind Kind, phone string) (Party, error)
	GetByName(ctx context.Context, kind Kind, name string) (Party, error)
	List(ctx context.Context, req ListRequest) ([]Party, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Party, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service handles party business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a party. Supplier names are deduplicated: creating an
// existing supplier returns the existing row instead of a conflict.
func (s *Service) Create(ctx context.Context, input CreateInput) (Party, error) {
	if !input.Kind.Valid() {
		return Party{}, shared.Validationf("party: unknown kind %q", input.Kind)
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	if input.Name == "" {
		return Party{}, shared.Validationf("party: name required")
	}
	if input.Kind == KindSupplier {
		if strings.TrimSpace(input.Category) == "" {
			return Party{}, shared.Validationf("party: category required for suppliers")
		}
		existing, err := s.repo.GetByName(ctx, KindSupplier, input.Name)
		if err == nil {
			return existing, nil
		}
		if !isNotFound(err) {
			return Party{}, err
		}
	}
	return s.repo.Create(ctx, input)
}

// Get returns one party by id.
func (s *Service) Get(ctx context.Context, id int64) (Party, error) {
	return s.repo.Get(ctx, id)
}

// List returns parties matching the request.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Party, error) {
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, shared.Validationf("party: unknown kind %q", req.Kind)
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 200
	}
	return s.repo.List(ctx, req)
}

// Update edits party master data. Wallet balance is deliberately not
// editable here.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Party, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Party{}, shared.Validationf("party: name required")
	}
	return s.repo.Update(ctx, id, input)
}

// Deactivate soft-deletes a party. Invoices keep referencing it, so hard
// deletion is not offered.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, id, false)
}

// ResolveByPhone implements walk-in resolution for sale creation: reuse the
// registered party when the phone matches, otherwise create one. The stored
// name wins over whatever was typed at the counter.
func (s *Service) ResolveByPhone(ctx context.Context, kind Kind, phone, typedName string) (Resolution, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Resolution{}, shared.Validationf("party: phone required for resolution")
	}
	existing, err := s.repo.GetByPhone(ctx, kind, phone)
	if err == nil {
		return Resolution{Party: existing}, nil
	}
	if !isNotFound(err) {
		return Resolution{}, err
	}
	name := strings.TrimSpace(typedName)
	if name == "" || name == "Walk-in" {
		name = fmt.Sprintf("Customer %s", phone)
	}
	created, err := s.repo.Create(ctx, CreateInput{
		Kind:  kind,
		Name:  name,
		Phone: phone,
		Notes: "Created from walk-in sale",
	})
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Party: created, Created: true}, nil
}

func isNotFound(err error) bool {
	return err != nil && shared.IsNotFound(err)
}
