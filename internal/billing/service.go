// Package billing runs the order-to-invoice workflow: one transaction
// that locks source documents, allocates stock first-expiry-first-out,
// splits taxes per jurisdiction, draws document numbers and exposes the
// customer balance. Either every effect commits or none does.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/credit"
	"github.com/medilink-erp/medilink-erp/internal/inventory"
	"github.com/medilink-erp/medilink-erp/internal/masterdata/products"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
	"github.com/medilink-erp/medilink-erp/internal/shared"
	"github.com/medilink-erp/medilink-erp/internal/tax"
)

// CustomerPort resolves customer master data.
type CustomerPort interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// ProductPort resolves product master data.
type ProductPort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// StockPort invalidates availability caches after committed mutations.
type StockPort interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics receives workflow counters. All methods must be safe for
// concurrent use.
type Metrics interface {
	InvoiceCreated()
	InvoiceCancelled()
	AllocationConflict()
}

// Config carries the workflow knobs.
type Config struct {
	// SellerJurisdiction is the supplier's jurisdiction code used by
	// the tax split.
	SellerJurisdiction string
	// Retry bounds the transaction retry loop. Zero value falls back
	// to shared.DefaultRetryPolicy.
	Retry shared.RetryPolicy
}

// Service is the order-to-invoice orchestrator.
type Service struct {
	repo      RepositoryPort
	customers CustomerPort
	products  ProductPort
	stock     StockPort
	audit     AuditPort
	metrics   Metrics
	validate  *validator.Validate
	logger    *slog.Logger
	cfg       Config
}

// NewService builds Service. stock, audit and metrics may be nil.
func NewService(repo RepositoryPort, cust CustomerPort, prod ProductPort, stock StockPort, audit AuditPort, metrics Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = shared.DefaultRetryPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		customers: cust,
		products:  prod,
		stock:     stock,
		audit:     audit,
		metrics:   metrics,
		validate:  validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// resolvedLine is a request line after source resolution and price
// lookup, ready for allocation.
type resolvedLine struct {
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// CreateOrder runs the full workflow: validate the customer, resolve
// the invoice source, allocate stock FEFO, split taxes, persist order
// and invoice with their lines, post stock movements, enforce the
// credit limit under the customer row lock and capture an optional
// upfront payment. The whole unit commits atomically.
//
// Lock order inside the transaction is fixed: source documents, then
// stock lots (product id ascending, lot id ascending), then the
// customer row. Every transaction in the system follows it, so lock
// waits cannot cycle.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return CreateOrderResult{}, fmt.Errorf("billing: invalid request: %w", err)
	}
	source := req.Source.Resolve()
	if err := source.Validate(); err != nil {
		return CreateOrderResult{}, err
	}
	if source.Kind() == SourceDirect && len(req.Items) == 0 {
		return CreateOrderResult{}, ErrNoItems
	}
	if source.Kind() != SourceDirect && len(req.Items) > 0 {
		return CreateOrderResult{}, ErrItemsFromSource
	}

	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if err := customer.Validate(); err != nil {
		return CreateOrderResult{}, err
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	// Advisory pre-check for direct sales: reject obviously over-limit
	// requests before doing any transactional work. The authoritative
	// check runs later, under the customer row lock, against the
	// post-allocation total.
	if source.Kind() == SourceDirect {
		if err := s.precheckCredit(ctx, customer, req); err != nil {
			return CreateOrderResult{}, err
		}
	}

	var (
		res     CreateOrderResult
		touched []int64
	)
	run := func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			res, touched, err = s.createOnce(ctx, tx, req, source, customer, orderDate)
			return err
		})
	}

	// Outer loop absorbs document-number collisions: the counter upsert
	// serializes most of the time, but a rival transaction that drew
	// the same number and committed first surfaces as a unique
	// violation on the invoice insert. A fresh attempt draws past it.
	for attempt := 0; ; attempt++ {
		err = shared.Retry(ctx, s.cfg.Retry, run)
		if err == nil || attempt >= 1 || !shared.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, shared.ErrTransientConflict) && s.metrics != nil {
			s.metrics.AllocationConflict()
		}
		return CreateOrderResult{}, err
	}

	if s.stock != nil {
		s.stock.Invalidate(ctx, touched...)
	}
	if s.metrics != nil {
		s.metrics.InvoiceCreated()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID,
			Action:   "billing:create-order",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", res.InvoiceID),
			Meta: map[string]any{
				"customer_id": customer.ID,
				"source":      string(source.Kind()),
				"number":      res.InvoiceNumber,
				"total":       res.TotalAmount,
			},
		})
	}
	s.logger.InfoContext(ctx, "invoice created",
		"invoice_id", res.InvoiceID,
		"number", res.InvoiceNumber,
		"customer_id", customer.ID,
		"source", string(source.Kind()),
		"total", res.TotalAmount,
	)
	return res, nil
}

// createOnce is one transactional attempt of the workflow. It returns
// the product ids whose stock it consumed so the caller can drop their
// cached availability after commit.
func (s *Service) createOnce(ctx context.Context, tx TxRepository, req CreateOrderRequest, source InvoiceSource, customer customers.Customer, orderDate time.Time) (CreateOrderResult, []int64, error) {
	fail := func(err error) (CreateOrderResult, []int64, error) {
		return CreateOrderResult{}, nil, err
	}

	lines, sourceOrder, noteIDs, err := s.resolveLines(ctx, tx, req, source, customer)
	if err != nil {
		return fail(err)
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	prods, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return fail(err)
	}
	for i := range lines {
		p := prods[lines[i].ProductID]
		if !p.Active {
			return fail(fmt.Errorf("%w: %s", ErrProductInactive, p.Code))
		}
		if err := p.ValidateTaxRate(); err != nil {
			return fail(err)
		}
		if lines[i].UnitPrice <= 0 {
			lines[i].UnitPrice = p.ListPrice
		}
	}

	// Products are allocated in ascending id order so concurrent
	// invoices lock lot ranges in the same sequence.
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var invLines []InvoiceLine
	var subtotal, taxC, taxS, taxI float64
	for _, line := range lines {
		allocs, err := tx.AllocateStock(ctx, line.ProductID, line.Qty)
		if err != nil {
			return fail(err)
		}
		p := prods[line.ProductID]
		for _, a := range allocs {
			taxable := tax.Round2(a.Qty * line.UnitPrice)
			split := tax.ForSupply(s.cfg.SellerJurisdiction, customer.Jurisdiction, taxable, p.TaxRate)
			invLines = append(invLines, InvoiceLine{
				ProductID:     line.ProductID,
				LotID:         a.LotID,
				LotNumber:     a.LotNumber,
				Qty:           a.Qty,
				UnitPrice:     line.UnitPrice,
				Taxable:       taxable,
				TaxRate:       p.TaxRate,
				TaxCentral:    split.Central,
				TaxState:      split.State,
				TaxIntegrated: split.Integrated,
				LineTotal:     tax.Round2(taxable + split.Total()),
			})
			subtotal += taxable
			taxC += split.Central
			taxS += split.State
			taxI += split.Integrated
		}
	}
	subtotal = tax.Round2(subtotal)
	taxC, taxS, taxI = tax.Round2(taxC), tax.Round2(taxS), tax.Round2(taxI)
	taxTotal := tax.Round2(taxC + taxS + taxI)
	total, roundOff := tax.RoundInvoice(subtotal + taxTotal)

	var upfront float64
	if req.Payment != nil {
		upfront = req.Payment.Amount
		if upfront > total {
			return fail(ErrUpfrontExceedsTotal)
		}
	}

	invNumber, err := tx.NextNumber(ctx, numbering.KindInvoice, orderDate)
	if err != nil {
		return fail(err)
	}

	var orderID *int64
	switch source.Kind() {
	case SourceDirect:
		ordNumber, err := tx.NextNumber(ctx, numbering.KindOrder, orderDate)
		if err != nil {
			return fail(err)
		}
		o := Order{
			DocNumber:   ordNumber,
			CustomerID:  customer.ID,
			OrderDate:   orderDate,
			Status:      OrderStatusInvoiced,
			Subtotal:    subtotal,
			TaxAmount:   taxTotal,
			TotalAmount: total,
		}
		for _, l := range lines {
			o.Lines = append(o.Lines, OrderLine{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: l.UnitPrice})
		}
		oid, err := tx.InsertOrder(ctx, o)
		if err != nil {
			return fail(err)
		}
		orderID = &oid
	case SourceOrder:
		if err := tx.UpdateOrderTotals(ctx, sourceOrder.ID, subtotal, taxTotal, total); err != nil {
			return fail(err)
		}
		if err := tx.UpdateOrderStatus(ctx, sourceOrder.ID, OrderStatusInvoiced); err != nil {
			return fail(err)
		}
		id := sourceOrder.ID
		orderID = &id
	}

	inv := Invoice{
		Number:        invNumber,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		Jurisdiction:  customer.Jurisdiction,
		Interstate:    taxI != 0,
		OrderID:       orderID,
		SourceKind:    source.Kind(),
		Subtotal:      subtotal,
		TaxCentral:    taxC,
		TaxState:      taxS,
		TaxIntegrated: taxI,
		RoundOff:      roundOff,
		TotalAmount:   total,
		PaidAmount:    upfront,
		Status:        DeriveStatus(upfront, total),
		InvoiceDate:   orderDate,
		Lines:         invLines,
	}
	invID, err := tx.InsertInvoice(ctx, inv)
	if err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	touched := append([]int64(nil), ids...)
	for _, l := range invLines {
		if err := tx.ConsumeLot(ctx, l.LotID, l.Qty); err != nil {
			return fail(err)
		}
		if _, err := tx.InsertMovement(ctx, inventory.Movement{
			ProductID: l.ProductID,
			LotID:     l.LotID,
			Direction: inventory.DirectionOut,
			Qty:       l.Qty,
			RefModule: "invoice",
			RefID:     invNumber,
			PostedAt:  now,
		}); err != nil {
			return fail(err)
		}
	}

	// Customer row last. The credit decision reads the balance under
	// lock, so no concurrent invoice can slip exposure past the limit.
	locked, err := tx.LockCustomer(ctx, customer.ID)
	if err != nil {
		return fail(err)
	}
	exposure := tax.Round2(total - upfront)
	if err := credit.Check(locked.CreditProfile(), exposure); err != nil {
		return fail(err)
	}
	if exposure != 0 {
		if err := tx.AddOutstanding(ctx, customer.ID, exposure); err != nil {
			return fail(err)
		}
	}

	if req.Payment != nil {
		payNumber, err := tx.NextNumber(ctx, numbering.KindPayment, orderDate)
		if err != nil {
			return fail(err)
		}
		if _, err := tx.InsertPayment(ctx, UpfrontPayment{
			Number:    payNumber,
			InvoiceID: invID,
			Amount:    upfront,
			Mode:      req.Payment.Mode,
			Reference: req.Payment.Reference,
			PaidAt:    now,
		}); err != nil {
			return fail(err)
		}
	}

	if len(noteIDs) > 0 {
		if err := tx.MarkNotesConverted(ctx, noteIDs, invID); err != nil {
			return fail(err)
		}
	}

	result := CreateOrderResult{
		InvoiceID:     invID,
		InvoiceNumber: invNumber,
		TotalAmount:   total,
	}
	if orderID != nil {
		result.OrderID = *orderID
	}
	return result, touched, nil
}

// resolveLines turns the invoice source into allocatable lines, locking
// the source documents it reads from.
func (s *Service) resolveLines(ctx context.Context, tx TxRepository, req CreateOrderRequest, source InvoiceSource, customer customers.Customer) ([]resolvedLine, Order, []int64, error) {
	switch source.Kind() {
	case SourceDirect:
		lines := make([]resolvedLine, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, resolvedLine{ProductID: it.ProductID, Qty: it.Qty, UnitPrice: it.UnitPrice})
		}
		return lines, Order{}, nil, nil

	case SourceOrder:
		o, err := tx.LockOrder(ctx, source.OrderID())
		if err != nil {
			return nil, Order{}, nil, err
		}
		if o.Status != OrderStatusConfirmed {
			return nil, Order{}, nil, ErrOrderNotInvoiceable
		}
		if o.CustomerID != customer.ID {
			return nil, Order{}, nil, fmt.Errorf("billing: order %d belongs to another customer", o.ID)
		}
		lines := make([]resolvedLine, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, resolvedLine{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: l.UnitPrice})
		}
		return lines, o, nil, nil

	case SourceDeliveryNotes:
		noteIDs := source.NoteIDs()
		notes, err := tx.LockNotes(ctx, noteIDs)
		if err != nil {
			return nil, Order{}, nil, err
		}
		for _, n := range notes {
			if n.CustomerID != customer.ID {
				return nil, Order{}, nil, fmt.Errorf("billing: challan %d belongs to another customer", n.ID)
			}
		}
		noteLines, err := tx.LoadNoteLines(ctx, noteIDs)
		if err != nil {
			return nil, Order{}, nil, err
		}
		// Same product at the same price across challans merges into one
		// billed line.
		type key struct {
			productID int64
			price     float64
		}
		idx := make(map[key]int)
		var lines []resolvedLine
		for _, nl := range noteLines {
			k := key{nl.ProductID, nl.UnitPrice}
			if i, ok := idx[k]; ok {
				lines[i].Qty += nl.Qty
				continue
			}
			idx[k] = len(lines)
			lines = append(lines, resolvedLine{ProductID: nl.ProductID, Qty: nl.Qty, UnitPrice: nl.UnitPrice})
		}
		return lines, Order{}, noteIDs, nil

	default:
		return nil, Order{}, nil, fmt.Errorf("billing: unknown invoice source %q", source.Kind())
	}
}

// precheckCredit runs an unlocked credit check against a pre-tax
// estimate from the request prices, cheap rejection before any row
// locks. The estimate excludes tax; the authoritative check runs under
// the customer row lock against the full post-allocation total.
func (s *Service) precheckCredit(ctx context.Context, customer customers.Customer, req CreateOrderRequest) error {
	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	prods, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	var estimate float64
	for _, it := range req.Items {
		price := it.UnitPrice
		if price <= 0 {
			price = prods[it.ProductID].ListPrice
		}
		estimate += it.Qty * price
	}
	var upfront float64
	if req.Payment != nil {
		upfront = req.Payment.Amount
	}
	exposure := tax.Round2(estimate - upfront)
	if exposure <= 0 {
		return nil
	}
	return credit.Check(customer.CreditProfile(), exposure)
}

// PlaceOrder books a draft order without touching stock. Totals are
// estimates from current prices; the invoice recomputes them.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, fmt.Errorf("billing: invalid request: %w", err)
	}
	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return Order{}, err
	}
	if err := customer.Validate(); err != nil {
		return Order{}, err
	}

	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	prods, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	o := Order{
		CustomerID: customer.ID,
		OrderDate:  orderDate,
		Status:     OrderStatusDraft,
	}
	var subtotal, taxTotal float64
	for _, it := range req.Items {
		p := prods[it.ProductID]
		if !p.Active {
			return Order{}, fmt.Errorf("%w: %s", ErrProductInactive, p.Code)
		}
		price := it.UnitPrice
		if price <= 0 {
			price = p.ListPrice
		}
		taxable := tax.Round2(it.Qty * price)
		subtotal += taxable
		taxTotal += tax.ForSupply(s.cfg.SellerJurisdiction, customer.Jurisdiction, taxable, p.TaxRate).Total()
		o.Lines = append(o.Lines, OrderLine{ProductID: it.ProductID, Qty: it.Qty, UnitPrice: price})
	}
	o.Subtotal = tax.Round2(subtotal)
	o.TaxAmount = tax.Round2(taxTotal)
	o.TotalAmount, _ = tax.RoundInvoice(o.Subtotal + o.TaxAmount)

	if err := credit.Check(customer.CreditProfile(), o.TotalAmount); err != nil {
		return Order{}, err
	}

	err = shared.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.NextNumber(ctx, numbering.KindOrder, orderDate)
			if err != nil {
				return err
			}
			o.DocNumber = number
			id, err := tx.InsertOrder(ctx, o)
			if err != nil {
				return err
			}
			o.ID = id
			return nil
		})
	})
	if err != nil {
		return Order{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID,
			Action:   "billing:place-order",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", o.ID),
			Meta:     map[string]any{"customer_id": customer.ID, "number": o.DocNumber, "total": o.TotalAmount},
		})
	}
	return o, nil
}

// ConfirmOrder moves a draft order to Confirmed, making it eligible for
// dispatch and invoicing.
func (s *Service) ConfirmOrder(ctx context.Context, orderID, actorID int64) error {
	err := shared.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			o, err := tx.LockOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if o.Status != OrderStatusDraft {
				return ErrOrderNotConfirmable
			}
			return tx.UpdateOrderStatus(ctx, orderID, OrderStatusConfirmed)
		})
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "billing:confirm-order",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", orderID),
		})
	}
	return nil
}

// CancelInvoice reverses a committed invoice: restores every consumed
// lot quantity, posts compensating IN movements, settles the unpaid
// remainder off the customer balance and marks the invoice Cancelled.
// Converted challans stay converted; the cancellation trail lives in
// the movements and the audit log.
func (s *Service) CancelInvoice(ctx context.Context, req CancelInvoiceRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("billing: invalid request: %w", err)
	}

	var (
		inv     Invoice
		touched []int64
	)
	err := shared.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			touched = touched[:0]
			cur, err := tx.LockInvoice(ctx, req.InvoiceID)
			if err != nil {
				return err
			}
			if cur.Status == InvoiceStatusCancelled {
				return ErrInvoiceCancelled
			}

			now := time.Now().UTC()
			for _, l := range cur.Lines {
				if err := tx.RestoreLot(ctx, l.LotID, l.Qty); err != nil {
					return err
				}
				if _, err := tx.InsertMovement(ctx, inventory.Movement{
					ProductID: l.ProductID,
					LotID:     l.LotID,
					Direction: inventory.DirectionIn,
					Qty:       l.Qty,
					RefModule: "invoice-cancel",
					RefID:     cur.Number,
					Note:      req.Reason,
					PostedAt:  now,
				}); err != nil {
					return err
				}
				touched = append(touched, l.ProductID)
			}

			if remainder := tax.Round2(cur.Outstanding()); remainder != 0 {
				if _, err := tx.LockCustomer(ctx, cur.CustomerID); err != nil {
					return err
				}
				if err := tx.AddOutstanding(ctx, cur.CustomerID, -remainder); err != nil {
					return err
				}
			}

			if err := tx.MarkInvoiceCancelled(ctx, cur.ID, req.Reason); err != nil {
				return err
			}
			inv = cur
			return nil
		})
	})
	if err != nil {
		return err
	}

	if s.stock != nil {
		s.stock.Invalidate(ctx, touched...)
	}
	if s.metrics != nil {
		s.metrics.InvoiceCancelled()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID,
			Action:   "billing:cancel-invoice",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", inv.ID),
			Meta:     map[string]any{"number": inv.Number, "reason": req.Reason},
		})
	}
	s.logger.InfoContext(ctx, "invoice cancelled", "invoice_id", inv.ID, "number", inv.Number)
	return nil
}

// GetInvoice loads an invoice with lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// GetOrder loads an order with lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}
