package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spindle-erp/spindle-erp/internal/party"
	"github.com/spindle-erp/spindle-erp/internal/shared"
)

var errDuplicateNumber = errors.New("duplicate document number")

type movementRecord struct {
	ProductID int64
	QtyChange int64
	Note      string
	InvoiceID int64
}

// memoryInvoiceStore backs both the repository and its transactional view.
// WithTx snapshots state up front and restores it when the callback fails,
// mirroring a rolled-back transaction.
type memoryInvoiceStore struct {
	invoices       []Invoice
	lines          map[int64][]LineItem
	wallets        map[int64]float64
	sequences      map[Kind]int64
	movements      []movementRecord
	products       map[int64]bool
	nextID         int64
	uniqueFailures int
}

func newMemoryInvoiceStore() *memoryInvoiceStore {
	return &memoryInvoiceStore{
		lines:     make(map[int64][]LineItem),
		wallets:   make(map[int64]float64),
		sequences: make(map[Kind]int64),
		products:  make(map[int64]bool),
	}
}

func (s *memoryInvoiceStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	backup := memoryInvoiceStore{
		invoices:  slices.Clone(s.invoices),
		lines:     maps.Clone(s.lines),
		wallets:   maps.Clone(s.wallets),
		sequences: maps.Clone(s.sequences),
		movements: slices.Clone(s.movements),
		products:  maps.Clone(s.products),
		nextID:    s.nextID,
	}
	if err := fn(ctx, s); err != nil {
		s.invoices = backup.invoices
		s.lines = backup.lines
		s.wallets = backup.wallets
		s.sequences = backup.sequences
		s.movements = backup.movements
		s.products = backup.products
		s.nextID = backup.nextID
		return err
	}
	return nil
}

func (s *memoryInvoiceStore) NextDocumentNumber(ctx context.Context, kind Kind) (int64, error) {
	value, ok := s.sequences[kind]
	if !ok {
		value = firstDocumentNumber
	} else {
		value++
	}
	s.sequences[kind] = value
	return value, nil
}

func (s *memoryInvoiceStore) GetWalletForUpdate(ctx context.Context, partyID int64) (float64, error) {
	balance, ok := s.wallets[partyID]
	if !ok {
		return 0, shared.NotFoundf("invoice: party %d not found", partyID)
	}
	return balance, nil
}

func (s *memoryInvoiceStore) DebitWallet(ctx context.Context, partyID int64, amount float64) error {
	if s.wallets[partyID] < amount {
		return shared.Consistencyf("invoice: wallet debit exceeds balance")
	}
	s.wallets[partyID] -= amount
	return nil
}

func (s *memoryInvoiceStore) CreditWallet(ctx context.Context, partyID int64, amount float64) error {
	if _, ok := s.wallets[partyID]; !ok {
		return shared.NotFoundf("invoice: party %d not found", partyID)
	}
	s.wallets[partyID] += amount
	return nil
}

func (s *memoryInvoiceStore) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	if s.uniqueFailures > 0 {
		s.uniqueFailures--
		return 0, errDuplicateNumber
	}
	for _, existing := range s.invoices {
		if existing.Number == inv.Number {
			return 0, errDuplicateNumber
		}
	}
	s.nextID++
	inv.ID = s.nextID
	s.invoices = append(s.invoices, inv)
	return inv.ID, nil
}

func (s *memoryInvoiceStore) InsertLines(ctx context.Context, invoiceID int64, items []LineItem) error {
	s.lines[invoiceID] = slices.Clone(items)
	return nil
}

func (s *memoryInvoiceStore) InsertStockMovement(ctx context.Context, productID, qtyChange int64, note string, invoiceID int64) error {
	s.movements = append(s.movements, movementRecord{ProductID: productID, QtyChange: qtyChange, Note: note, InvoiceID: invoiceID})
	return nil
}

func (s *memoryInvoiceStore) ProductExists(ctx context.Context, productID int64) (bool, error) {
	return s.products[productID], nil
}

func (s *memoryInvoiceStore) StockOnHand(ctx context.Context, productID int64) (int64, error) {
	var stock int64
	for _, m := range s.movements {
		if m.ProductID == productID {
			stock += m.QtyChange
		}
	}
	return stock, nil
}

func (s *memoryInvoiceStore) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	for _, inv := range s.invoices {
		if inv.ID == id {
			inv.Items = s.lines[id]
			return inv, nil
		}
	}
	return Invoice{}, shared.NotFoundf("invoice: not found")
}

func (s *memoryInvoiceStore) ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range s.invoices {
		if req.Kind != "" && inv.Kind != req.Kind {
			continue
		}
		if req.PartyID != 0 && inv.PartyID != req.PartyID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

type fakeParties struct {
	store  *memoryInvoiceStore
	byID   map[int64]party.Party
	nextID int64
}

func newFakeParties(store *memoryInvoiceStore) *fakeParties {
	return &fakeParties{store: store, byID: make(map[int64]party.Party)}
}

func (f *fakeParties) add(kind party.Kind, name, phone string) party.Party {
	f.nextID++
	p := party.Party{ID: f.nextID, Kind: kind, Name: name, Phone: phone, IsActive: true}
	f.byID[p.ID] = p
	if _, ok := f.store.wallets[p.ID]; !ok {
		f.store.wallets[p.ID] = 0
	}
	return p
}

func (f *fakeParties) Get(ctx context.Context, id int64) (party.Party, error) {
	p, ok := f.byID[id]
	if !ok {
		return party.Party{}, shared.NotFoundf("party: not found")
	}
	return p, nil
}

func (f *fakeParties) ResolveByPhone(ctx context.Context, kind party.Kind, phone, typedName string) (party.Resolution, error) {
	for _, p := range f.byID {
		if p.Kind == kind && p.Phone == phone {
			return party.Resolution{Party: p}, nil
		}
	}
	name := typedName
	if name == "" || name == "Walk-in" {
		name = fmt.Sprintf("Customer %s", phone)
	}
	p := f.add(kind, name, phone)
	return party.Resolution{Party: p, Created: true}, nil
}

func newPolicyTestService(store *memoryInvoiceStore, parties *fakeParties, policy Policy) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, parties, logger, func(err error) bool {
		return errors.Is(err, errDuplicateNumber)
	}, policy)
}

func newTestService(store *memoryInvoiceStore, parties *fakeParties) *Service {
	return newPolicyTestService(store, parties, Policy{AllowNegativeStock: true})
}

func TestCreateSaleComputesTotalsAndMovements(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	parties := newFakeParties(store)
	customer := parties.add(party.KindCustomer, "Rahim Textiles", "01711")
	store.wallets[customer.ID] = 0
	store.products[7] = true
	store.products[8] = true
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:    KindSale,
		PartyID: customer.ID,
		Items: []LineItemInput{
			{ProductID: 7, Qty: 10, Price: 12},
			{ProductID: 8, Qty: 5, Price: 20},
		},
		Discount:    20,
		PaidUpfront: 100,
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, "BD-10001", inv.Number)
	require.Equal(t, 220.0, inv.SubTotal)
	require.Equal(t, 200.0, inv.GrandTotal)
	require.Equal(t, 100.0, inv.PaidAmount)
	require.Equal(t, 100.0, inv.DueAmount)
	require.Equal(t, inv.GrandTotal, inv.PaidAmount+inv.DueAmount)
	require.Equal(t, "Rahim Textiles", inv.PartySnapshot.Name)

	require.Len(t, store.movements, 2)
	require.Equal(t, int64(-10), store.movements[0].QtyChange)
	require.Equal(t, int64(-5), store.movements[1].QtyChange)
	require.Equal(t, "Sale BD-10001", store.movements[0].Note)
	require.Equal(t, inv.ID, store.movements[0].InvoiceID)
}

func TestCreateSaleDrawsDownWallet(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	parties := newFakeParties(store)
	customer := parties.add(party.KindCustomer, "Karim", "01822")
	store.wallets[customer.ID] = 30
	store.products[7] = true
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:        KindSale,
		PartyID:     customer.ID,
		Items:       []LineItemInput{{ProductID: 7, Qty: 10, Price: 10}},
		PaidUpfront: 50,
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, 30.0, result.WalletDrawdown)
	require.Equal(t, 80.0, inv.PaidAmount)
	require.Equal(t, 20.0, inv.DueAmount)
	require.Equal(t, 0.0, store.wallets[customer.ID])
	require.Contains(t, inv.Note, "Paid from wallet: 30.00")
}

func TestCreateSaleOverpaymentCreditsWallet(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	parties := newFakeParties(store)
	customer := parties.add(party.KindCustomer, "Karim", "01822")
	store.wallets[customer.ID] = 0
	store.products[7] = true
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:        KindSale,
		PartyID:     customer.ID,
		Items:       []LineItemInput{{ProductID: 7, Qty: 10, Price: 10}},
		PaidUpfront: 150,
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, 100.0, inv.PaidAmount)
	require.Equal(t, 0.0, inv.DueAmount)
	require.Equal(t, 50.0, result.WalletOverflow)
	require.Equal(t, 50.0, store.wallets[customer.ID])
	require.Contains(t, inv.Note, "Advance credited to wallet: 50.00")
}

func TestCreateOverpaymentWithoutPartyRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:        KindSale,
		Items:       []LineItemInput{{ProductID: 7, Qty: 1, Price: 10}},
		PaidUpfront: 20,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePurchaseLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	parties := newFakeParties(store)
	supplier := parties.add(party.KindSupplier, "Yarn House", "")
	store.wallets[supplier.ID] = 0
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:    KindPurchase,
		PartyID: supplier.ID,
		Items: []LineItemInput{
			{Description: "Cotton yarn 30s", Qty: 120.5, Price: 3.2, Attributes: map[string]string{"shade": "ecru", "lot": "L-88"}},
		},
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, "PR-10001", inv.Number)
	require.Equal(t, "kg", inv.Items[0].Unit)
	require.Empty(t, store.movements)
}

func TestCreatePurchaseAllowsZeroPriceLine(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	parties := newFakeParties(store)
	supplier := parties.add(party.KindSupplier, "Yarn House", "")
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:    KindPurchase,
		PartyID: supplier.ID,
		Items: []LineItemInput{
			{Description: "Cotton yarn 30s", Qty: 100, Price: 3.2},
			{Description: "Free sample yarn", Qty: 5, Price: 0},
		},
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, 320.0, inv.SubTotal)
	require.Equal(t, 0.0, inv.Items[1].LineTotal)
}

func TestCreateSaleRejectsZeroPriceLine(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 1, Price: 0}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsNegativePriceLine(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindPurchase,
		Items: []LineItemInput{{Description: "Yarn", Qty: 1, Price: -2}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaleOversellRejectedWhenNegativeStockDisallowed(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	store.movements = append(store.movements, movementRecord{ProductID: 7, QtyChange: 5, Note: "Opening stock"})
	svc := newPolicyTestService(store, newFakeParties(store), Policy{})

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 8, Price: 10}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, store.invoices)
	require.Len(t, store.movements, 1)
}

func TestSaleWithinStockPassesGuard(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	store.movements = append(store.movements, movementRecord{ProductID: 7, QtyChange: 10, Note: "Opening stock"})
	svc := newPolicyTestService(store, newFakeParties(store), Policy{})

	result, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 8, Price: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, "BD-10001", result.Invoice.Number)
	require.Len(t, store.movements, 2)
	require.Equal(t, int64(-8), store.movements[1].QtyChange)
}

func TestSaleOversellAllowedByDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	svc := newTestService(store, newFakeParties(store))

	result, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 3, Price: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, 30.0, result.Invoice.GrandTotal)
	require.Equal(t, int64(-3), store.movements[0].QtyChange)
}

func TestCreateSaleRequiresWholeUnits(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 1.5, Price: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateSaleUnknownProductRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 99, Qty: 1, Price: 10}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.invoices)
	require.Empty(t, store.movements)
	require.Empty(t, store.sequences)
}

func TestCreateRetriesOnceOnNumberConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	store.uniqueFailures = 1
	svc := newTestService(store, newFakeParties(store))

	result, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 1, Price: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, "BD-10001", result.Invoice.Number)
	require.Len(t, store.invoices, 1)
}

func TestCreateSurfacesConflictAfterSecondFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	store.uniqueFailures = 2
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:  KindSale,
		Items: []LineItemInput{{ProductID: 7, Qty: 1, Price: 10}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, store.invoices)
}

func TestAttributeSchemaRejectsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind: KindPurchase,
		Items: []LineItemInput{
			{Description: "Cotton yarn", Qty: 10, Price: 3, Attributes: map[string]string{"color": "red"}},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPurchaseDiscountRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	svc := newTestService(store, newFakeParties(store))

	_, err := svc.Create(ctx, CreateInput{
		Kind:     KindPurchase,
		Items:    []LineItemInput{{Description: "Cotton yarn", Qty: 10, Price: 3}},
		Discount: 5,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDocumentNumbersAreSequentialPerKind(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	svc := newTestService(store, newFakeParties(store))

	sale := CreateInput{Kind: KindSale, Items: []LineItemInput{{ProductID: 7, Qty: 1, Price: 10}}}
	purchase := CreateInput{Kind: KindPurchase, Items: []LineItemInput{{Description: "Yarn", Qty: 1, Price: 10}}}

	first, err := svc.Create(ctx, sale)
	require.NoError(t, err)
	second, err := svc.Create(ctx, sale)
	require.NoError(t, err)
	third, err := svc.Create(ctx, purchase)
	require.NoError(t, err)

	require.Equal(t, "BD-10001", first.Invoice.Number)
	require.Equal(t, "BD-10002", second.Invoice.Number)
	require.Equal(t, "PR-10001", third.Invoice.Number)
}

func TestWalkInSaleResolvesPartyByPhone(t *testing.T) {
	ctx := context.Background()
	store := newMemoryInvoiceStore()
	store.products[7] = true
	parties := newFakeParties(store)
	svc := newTestService(store, parties)

	result, err := svc.Create(ctx, CreateInput{
		Kind:       KindSale,
		PartyPhone: "01933",
		Items:      []LineItemInput{{ProductID: 7, Qty: 1, Price: 10}},
	})
	require.NoError(t, err)
	require.True(t, result.PartyCreated)
	require.Equal(t, "Customer 01933", result.Invoice.PartySnapshot.Name)
	require.NotZero(t, result.Invoice.PartyID)
}
