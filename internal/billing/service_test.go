package billing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medilink-erp/medilink-erp/internal/credit"
	"github.com/medilink-erp/medilink-erp/internal/delivery"
	"github.com/medilink-erp/medilink-erp/internal/inventory"
	"github.com/medilink-erp/medilink-erp/internal/masterdata/products"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
)

// state is the in-memory database backing the fake repository. WithTx
// snapshots it before the callback and restores the snapshot on error,
// mirroring a rollback.
type state struct {
	customers map[int64]customers.Customer
	products  map[int64]products.Product
	lots      map[int64]inventory.StockLot
	movements []inventory.Movement
	orders    map[int64]Order
	invoices  map[int64]Invoice
	notes     map[int64]delivery.Note
	noteLines []delivery.NoteLine
	payments  []UpfrontPayment
	seqs      map[string]int64
	nextID    int64
}

func newState() *state {
	return &state{
		customers: map[int64]customers.Customer{},
		products:  map[int64]products.Product{},
		lots:      map[int64]inventory.StockLot{},
		orders:    map[int64]Order{},
		invoices:  map[int64]Invoice{},
		notes:     map[int64]delivery.Note{},
		seqs:      map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]OrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for k, v := range s.invoices {
		v.Lines = append([]InvoiceLine(nil), v.Lines...)
		c.invoices[k] = v
	}
	for k, v := range s.notes {
		c.notes[k] = v
	}
	for k, v := range s.seqs {
		c.seqs[k] = v
	}
	c.movements = append([]inventory.Movement(nil), s.movements...)
	c.noteLines = append([]delivery.NoteLine(nil), s.noteLines...)
	c.payments = append([]UpfrontPayment(nil), s.payments...)
	c.nextID = s.nextID
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type fakeRepo struct {
	mu sync.Mutex
	st *state
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{st: newState()}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	backup := r.st.clone()
	if err := fn(ctx, (*fakeTx)(r)); err != nil {
		r.st = backup
		return err
	}
	return nil
}

func (r *fakeRepo) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.st.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *fakeRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.st.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

type fakeTx fakeRepo

func (t *fakeTx) NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error) {
	key := string(kind) + date.Format("20060102")
	t.st.seqs[key]++
	return numbering.Format(kind, date, t.st.seqs[key]), nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	o.ID = t.st.id()
	for i := range o.Lines {
		o.Lines[i].ID = t.st.id()
		o.Lines[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = o
	return o.ID, nil
}

func (t *fakeTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *fakeTx) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	o, ok := t.st.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	t.st.orders[id] = o
	return nil
}

func (t *fakeTx) UpdateOrderTotals(ctx context.Context, id int64, subtotal, taxAmount, total float64) error {
	o, ok := t.st.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Subtotal, o.TaxAmount, o.TotalAmount = subtotal, taxAmount, total
	t.st.orders[id] = o
	return nil
}

func (t *fakeTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	inv.ID = t.st.id()
	for i := range inv.Lines {
		inv.Lines[i].ID = t.st.id()
		inv.Lines[i].InvoiceID = inv.ID
	}
	t.st.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *fakeTx) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := t.st.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *fakeTx) MarkInvoiceCancelled(ctx context.Context, id int64, reason string) error {
	inv, ok := t.st.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = InvoiceStatusCancelled
	t.st.invoices[id] = inv
	return nil
}

func (t *fakeTx) InsertPayment(ctx context.Context, p UpfrontPayment) (int64, error) {
	t.st.payments = append(t.st.payments, p)
	return int64(len(t.st.payments)), nil
}

func (t *fakeTx) AllocateStock(ctx context.Context, productID int64, qty float64) ([]inventory.Allocation, error) {
	var lots []inventory.StockLot
	for _, lot := range t.st.lots {
		if lot.ProductID == productID && lot.QtyAvailable > 0 {
			lots = append(lots, lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return inventory.Plan(productID, lots, qty)
}

func (t *fakeTx) ConsumeLot(ctx context.Context, lotID int64, qty float64) error {
	lot, ok := t.st.lots[lotID]
	if !ok || lot.QtyAvailable < qty {
		return inventory.ErrLotNotFound
	}
	lot.QtyAvailable -= qty
	lot.QtySold += qty
	t.st.lots[lotID] = lot
	return nil
}

func (t *fakeTx) RestoreLot(ctx context.Context, lotID int64, qty float64) error {
	lot, ok := t.st.lots[lotID]
	if !ok || lot.QtySold < qty {
		return inventory.ErrLotNotFound
	}
	lot.QtyAvailable += qty
	lot.QtySold -= qty
	t.st.lots[lotID] = lot
	return nil
}

func (t *fakeTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	t.st.movements = append(t.st.movements, m)
	return int64(len(t.st.movements)), nil
}

func (t *fakeTx) LockCustomer(ctx context.Context, id int64) (customers.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

func (t *fakeTx) AddOutstanding(ctx context.Context, customerID int64, delta float64) error {
	c, ok := t.st.customers[customerID]
	if !ok {
		return customers.ErrNotFound
	}
	c.Outstanding += delta
	t.st.customers[customerID] = c
	return nil
}

func (t *fakeTx) LockNotes(ctx context.Context, ids []int64) ([]delivery.Note, error) {
	out := make([]delivery.Note, 0, len(ids))
	for _, id := range ids {
		n, ok := t.st.notes[id]
		if !ok {
			return nil, delivery.ErrNotFound
		}
		if n.ConvertedToInvoice {
			return nil, delivery.ErrAlreadyConverted
		}
		out = append(out, n)
	}
	return out, nil
}

func (t *fakeTx) LoadNoteLines(ctx context.Context, ids []int64) ([]delivery.NoteLine, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []delivery.NoteLine
	for _, nl := range t.st.noteLines {
		if want[nl.NoteID] {
			out = append(out, nl)
		}
	}
	return out, nil
}

func (t *fakeTx) MarkNotesConverted(ctx context.Context, ids []int64, invoiceID int64) error {
	for _, id := range ids {
		n, ok := t.st.notes[id]
		if !ok {
			return delivery.ErrNotFound
		}
		if n.ConvertedToInvoice {
			return delivery.ErrAlreadyConverted
		}
		n.ConvertedToInvoice = true
		n.InvoiceID = &invoiceID
		t.st.notes[id] = n
	}
	return nil
}

type customerPort struct{ repo *fakeRepo }

func (p customerPort) Get(ctx context.Context, id int64) (customers.Customer, error) {
	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()
	c, ok := p.repo.st.customers[id]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

type productPort struct{ repo *fakeRepo }

func (p productPort) GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error) {
	out := make(map[int64]products.Product, len(ids))
	for _, id := range ids {
		prod, ok := p.repo.st.products[id]
		if !ok {
			return nil, products.ErrNotFound
		}
		out[id] = prod
	}
	return out, nil
}

type invalidations struct {
	mu  sync.Mutex
	ids []int64
}

func (s *invalidations) Invalidate(ctx context.Context, productIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, productIDs...)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newBillingFixture(t *testing.T) (*Service, *fakeRepo, *invalidations) {
	t.Helper()
	repo := newFakeRepo()
	repo.st.customers[1] = customers.Customer{
		ID: 1, Code: "CUST-1", Name: "Apex Pharmacy", Jurisdiction: "KA",
		Terms: credit.TermsCredit, CreditLimit: 10000, Active: true,
	}
	repo.st.products[10] = products.Product{
		ID: 10, Code: "PARA-500", Name: "Paracetamol 500mg", UOM: "strip",
		ListPrice: 100, TaxRate: 12, Active: true,
	}
	repo.st.lots[1] = inventory.StockLot{
		ID: 1, ProductID: 10, LotNumber: "L-EARLY", Expiry: date(2025, time.January, 1),
		QtyReceived: 5, QtyAvailable: 5,
	}
	repo.st.lots[2] = inventory.StockLot{
		ID: 2, ProductID: 10, LotNumber: "L-LATE", Expiry: date(2025, time.June, 1),
		QtyReceived: 20, QtyAvailable: 20,
	}
	repo.st.nextID = 100

	inval := &invalidations{}
	svc := NewService(repo, customerPort{repo}, productPort{repo}, inval, nil, nil, nil,
		Config{SellerJurisdiction: "KA"})
	return svc, repo, inval
}

func TestCreateOrderAllocatesFEFOAcrossLots(t *testing.T) {
	svc, repo, inval := newBillingFixture(t)

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	require.NoError(t, err)
	require.NotZero(t, res.InvoiceID)
	require.NotZero(t, res.OrderID)
	require.Contains(t, res.InvoiceNumber, "INV-")

	inv := repo.st.invoices[res.InvoiceID]
	require.Len(t, inv.Lines, 2, "12 units against lots of 5 and 20 must split into two lines")
	require.Equal(t, "L-EARLY", inv.Lines[0].LotNumber)
	require.Equal(t, 5.0, inv.Lines[0].Qty)
	require.Equal(t, "L-LATE", inv.Lines[1].LotNumber)
	require.Equal(t, 7.0, inv.Lines[1].Qty)

	// 12 * 100 = 1200 subtotal, 12% intra-state tax split evenly.
	require.Equal(t, 1200.0, inv.Subtotal)
	require.Equal(t, 72.0, inv.TaxCentral)
	require.Equal(t, 72.0, inv.TaxState)
	require.Zero(t, inv.TaxIntegrated)
	require.False(t, inv.Interstate)
	require.Equal(t, 1344.0, inv.TotalAmount)
	require.Equal(t, InvoiceStatusUnpaid, inv.Status)

	require.Equal(t, 0.0, repo.st.lots[1].QtyAvailable)
	require.Equal(t, 5.0, repo.st.lots[1].QtySold)
	require.Equal(t, 13.0, repo.st.lots[2].QtyAvailable)
	require.Equal(t, 7.0, repo.st.lots[2].QtySold)

	require.Len(t, repo.st.movements, 2)
	for _, m := range repo.st.movements {
		require.Equal(t, inventory.DirectionOut, m.Direction)
		require.Equal(t, "invoice", m.RefModule)
		require.Equal(t, res.InvoiceNumber, m.RefID)
	}

	require.Equal(t, 1344.0, repo.st.customers[1].Outstanding)
	require.Equal(t, OrderStatusInvoiced, repo.st.orders[res.OrderID].Status)
	require.Equal(t, []int64{10}, inval.ids)
}

func TestCreateOrderInsufficientStockLeavesNoResidue(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 30}},
	})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 30.0, stockErr.Requested)
	require.Equal(t, 25.0, stockErr.Available)

	require.Empty(t, repo.st.invoices)
	require.Empty(t, repo.st.orders)
	require.Empty(t, repo.st.movements)
	require.Equal(t, 5.0, repo.st.lots[1].QtyAvailable)
	require.Equal(t, 20.0, repo.st.lots[2].QtyAvailable)
	require.Zero(t, repo.st.customers[1].Outstanding)
}

func TestCreateOrderCreditLimitRollsBackStock(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	// Above the pre-tax estimate of 1200 so the advisory pre-check
	// passes, below the taxed total of 1344 so the authoritative
	// in-transaction check fails after stock was consumed.
	c := repo.st.customers[1]
	c.CreditLimit = 1250
	repo.st.customers[1] = c

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	var limitErr *credit.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, 1250.0, limitErr.Limit)

	// The limit check runs after stock consumption inside the
	// transaction; rollback must undo the consumption.
	require.Equal(t, 5.0, repo.st.lots[1].QtyAvailable)
	require.Equal(t, 20.0, repo.st.lots[2].QtyAvailable)
	require.Empty(t, repo.st.invoices)
	require.Empty(t, repo.st.movements)
	require.Zero(t, repo.st.customers[1].Outstanding)
}

func TestCreateOrderCashTermsBypassLimit(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	c := repo.st.customers[1]
	c.Terms = credit.TermsCash
	c.CreditLimit = 0
	repo.st.customers[1] = c

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	require.NoError(t, err)
	require.Equal(t, 1344.0, repo.st.invoices[res.InvoiceID].TotalAmount)
}

func TestCreateOrderUpfrontPayment(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
		Payment:    &PaymentIntent{Mode: "CASH", Amount: 344, Reference: "till-7"},
	})
	require.NoError(t, err)

	inv := repo.st.invoices[res.InvoiceID]
	require.Equal(t, 344.0, inv.PaidAmount)
	require.Equal(t, InvoiceStatusPartial, inv.Status)
	require.Equal(t, 1000.0, repo.st.customers[1].Outstanding)

	require.Len(t, repo.st.payments, 1)
	require.Equal(t, 344.0, repo.st.payments[0].Amount)
	require.Contains(t, repo.st.payments[0].Number, "PAY-")
}

func TestCreateOrderUpfrontAboveTotalRejected(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
		Payment:    &PaymentIntent{Mode: "CASH", Amount: 2000},
	})
	require.ErrorIs(t, err, ErrUpfrontExceedsTotal)
	require.Empty(t, repo.st.invoices)
	require.Equal(t, 5.0, repo.st.lots[1].QtyAvailable)
}

func TestCreateOrderInterstateLeviesIntegratedTax(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	c := repo.st.customers[1]
	c.Jurisdiction = "MH"
	repo.st.customers[1] = c

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	require.NoError(t, err)

	inv := repo.st.invoices[res.InvoiceID]
	require.True(t, inv.Interstate)
	require.Equal(t, 144.0, inv.TaxIntegrated)
	require.Zero(t, inv.TaxCentral)
	require.Zero(t, inv.TaxState)
	require.Equal(t, 1344.0, inv.TotalAmount)
}

func TestCreateOrderBlacklistedCustomerRejected(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	c := repo.st.customers[1]
	c.Blacklisted = true
	repo.st.customers[1] = c

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 1}},
	})
	require.ErrorIs(t, err, customers.ErrBlacklisted)
}

func TestCreateOrderFromConfirmedOrder(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	repo.st.orders[50] = Order{
		ID: 50, DocNumber: "ORD-20260810-0001", CustomerID: 1,
		OrderDate: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC),
		Status:    OrderStatusConfirmed,
		Lines:     []OrderLine{{ID: 51, OrderID: 50, ProductID: 10, Qty: 12, UnitPrice: 100}},
	}

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Source:     &SourceRequest{OrderID: ptr(int64(50))},
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), res.OrderID)

	inv := repo.st.invoices[res.InvoiceID]
	require.Equal(t, SourceOrder, inv.SourceKind)
	require.NotNil(t, inv.OrderID)
	require.Equal(t, int64(50), *inv.OrderID)
	require.Equal(t, OrderStatusInvoiced, repo.st.orders[50].Status)
	require.Equal(t, 1344.0, repo.st.orders[50].TotalAmount)

	// Invoicing the same order twice must fail.
	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Source:     &SourceRequest{OrderID: ptr(int64(50))},
	})
	require.ErrorIs(t, err, ErrOrderNotInvoiceable)
}

func TestCreateOrderFromChallansMergesAndConverts(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)
	repo.st.notes[70] = delivery.Note{ID: 70, DocNumber: "DN-20260810-0001", OrderID: 50, CustomerID: 1}
	repo.st.notes[71] = delivery.Note{ID: 71, DocNumber: "DN-20260810-0002", OrderID: 50, CustomerID: 1}
	repo.st.noteLines = []delivery.NoteLine{
		{ID: 1, NoteID: 70, ProductID: 10, Qty: 4, UnitPrice: 100},
		{ID: 2, NoteID: 71, ProductID: 10, Qty: 8, UnitPrice: 100},
	}

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Source:     &SourceRequest{NoteIDs: []int64{70, 71}},
	})
	require.NoError(t, err)

	inv := repo.st.invoices[res.InvoiceID]
	require.Equal(t, SourceDeliveryNotes, inv.SourceKind)
	require.Nil(t, inv.OrderID)
	// 4+8 merged into one 12-unit line, then split across lots FEFO.
	require.Len(t, inv.Lines, 2)
	require.Equal(t, 1344.0, inv.TotalAmount)

	require.True(t, repo.st.notes[70].ConvertedToInvoice)
	require.True(t, repo.st.notes[71].ConvertedToInvoice)
	require.Equal(t, res.InvoiceID, *repo.st.notes[70].InvoiceID)

	// A converted challan cannot be invoiced again.
	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Source:     &SourceRequest{NoteIDs: []int64{70}},
	})
	require.ErrorIs(t, err, delivery.ErrAlreadyConverted)
}

func TestCreateOrderItemsRejectedWithSource(t *testing.T) {
	svc, _, _ := newBillingFixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 1}},
		Source:     &SourceRequest{OrderID: ptr(int64(50))},
	})
	require.ErrorIs(t, err, ErrItemsFromSource)
}

func TestCreateOrderDirectWithoutItemsRejected(t *testing.T) {
	svc, _, _ := newBillingFixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: 1})
	require.ErrorIs(t, err, ErrNoItems)
}

func TestCancelInvoiceRestoresStockAndBalance(t *testing.T) {
	svc, repo, inval := newBillingFixture(t)

	res, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	require.NoError(t, err)

	err = svc.CancelInvoice(context.Background(), CancelInvoiceRequest{
		InvoiceID: res.InvoiceID,
		Reason:    "shipment damaged in transit",
	})
	require.NoError(t, err)

	require.Equal(t, 5.0, repo.st.lots[1].QtyAvailable)
	require.Zero(t, repo.st.lots[1].QtySold)
	require.Equal(t, 20.0, repo.st.lots[2].QtyAvailable)
	require.Zero(t, repo.st.lots[2].QtySold)
	require.Zero(t, repo.st.customers[1].Outstanding)
	require.Equal(t, InvoiceStatusCancelled, repo.st.invoices[res.InvoiceID].Status)

	var ins int
	for _, m := range repo.st.movements {
		if m.Direction == inventory.DirectionIn && m.RefModule == "invoice-cancel" {
			ins++
		}
	}
	require.Equal(t, 2, ins, "each consumed lot gets a compensating IN movement")
	require.GreaterOrEqual(t, len(inval.ids), 2)

	err = svc.CancelInvoice(context.Background(), CancelInvoiceRequest{
		InvoiceID: res.InvoiceID,
		Reason:    "double cancel",
	})
	require.ErrorIs(t, err, ErrInvoiceCancelled)
}

func TestPlaceAndConfirmOrderLifecycle(t *testing.T) {
	svc, repo, _ := newBillingFixture(t)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: 1,
		Items:      []ItemRequest{{ProductID: 10, Qty: 12}},
	})
	require.NoError(t, err)
	require.Equal(t, OrderStatusDraft, order.Status)
	require.Contains(t, order.DocNumber, "ORD-")
	require.Equal(t, 1344.0, order.TotalAmount)
	// Booking an order never touches stock.
	require.Equal(t, 5.0, repo.st.lots[1].QtyAvailable)
	require.Equal(t, 20.0, repo.st.lots[2].QtyAvailable)

	require.NoError(t, svc.ConfirmOrder(context.Background(), order.ID, 0))
	require.Equal(t, OrderStatusConfirmed, repo.st.orders[order.ID].Status)

	// Confirm is not idempotent past Draft.
	require.ErrorIs(t, svc.ConfirmOrder(context.Background(), order.ID, 0), ErrOrderNotConfirmable)
}

func TestInvoiceNumbersAreSequentialPerDay(t *testing.T) {
	svc, _, _ := newBillingFixture(t)
	day := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		OrderDate:  day,
		Items:      []ItemRequest{{ProductID: 10, Qty: 3}},
	})
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		OrderDate:  day,
		Items:      []ItemRequest{{ProductID: 10, Qty: 3}},
	})
	require.NoError(t, err)

	require.Equal(t, "INV-20260901-0001", first.InvoiceNumber)
	require.Equal(t, "INV-20260901-0002", second.InvoiceNumber)
}

func ptr[T any](v T) *T { return &v }
