package billing

import (
	"errors"
	"time"
)

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusInvoiced  OrderStatus = "INVOICED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusInvoiced || s == OrderStatusCancelled
}

// Order is the sales order header. Immutable once invoiced.
type Order struct {
	ID          int64
	DocNumber   string
	CustomerID  int64
	OrderDate   time.Time
	Status      OrderStatus
	Subtotal    float64
	TaxAmount   float64
	TotalAmount float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []OrderLine
}

// OrderLine is one ordered product.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// InvoiceStatus enumerates payment states of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "UNPAID"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// DeriveStatus recomputes an invoice's payment status from its paid
// amount: Paid iff paid >= total, Partial iff anything in between.
func DeriveStatus(paid, total float64) InvoiceStatus {
	switch {
	case paid >= total && total > 0:
		return InvoiceStatusPaid
	case paid > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusUnpaid
	}
}

// Invoice is the tax invoice header with customer snapshot and computed
// totals. Created atomically with its lines and optional first payment.
type Invoice struct {
	ID            int64
	Number        string
	CustomerID    int64
	CustomerName  string
	Jurisdiction  string
	Interstate    bool
	OrderID       *int64
	SourceKind    SourceKind
	Subtotal      float64
	TaxCentral    float64
	TaxState      float64
	TaxIntegrated float64
	RoundOff      float64
	TotalAmount   float64
	PaidAmount    float64
	Status        InvoiceStatus
	InvoiceDate   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []InvoiceLine
}

// Outstanding is the portion of the invoice not yet covered by payments.
func (i Invoice) Outstanding() float64 {
	return i.TotalAmount - i.PaidAmount
}

// InvoiceLine carries one (product, lot) slice with its tax split. A
// request line served from two lots produces two invoice lines, keeping
// the lot traceability the audit trail needs.
type InvoiceLine struct {
	ID            int64
	InvoiceID     int64
	ProductID     int64
	LotID         int64
	LotNumber     string
	Qty           float64
	UnitPrice     float64
	Taxable       float64
	TaxRate       float64
	TaxCentral    float64
	TaxState      float64
	TaxIntegrated float64
	LineTotal     float64
}

var (
	// ErrOrderNotFound indicates an unknown order id.
	ErrOrderNotFound = errors.New("billing: order not found")
	// ErrInvoiceNotFound indicates an unknown invoice id.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrOrderNotInvoiceable indicates a source order outside the
	// Confirmed state (already invoiced, cancelled, or still draft).
	ErrOrderNotInvoiceable = errors.New("billing: order cannot be invoiced in its current status")
	// ErrInvoiceCancelled indicates the invoice was already cancelled.
	ErrInvoiceCancelled = errors.New("billing: invoice already cancelled")
	// ErrUpfrontExceedsTotal indicates an upfront payment above the
	// invoice total.
	ErrUpfrontExceedsTotal = errors.New("billing: upfront payment exceeds invoice total")
	// ErrOrderNotConfirmable indicates a confirm request against an
	// order outside the Draft state.
	ErrOrderNotConfirmable = errors.New("billing: only draft orders can be confirmed")
	// ErrNoItems indicates a direct sale without line items.
	ErrNoItems = errors.New("billing: order requires at least one item")
	// ErrItemsFromSource indicates line items on a sourced invoice; the
	// source document supplies the lines.
	ErrItemsFromSource = errors.New("billing: line items come from the source document")
	// ErrProductInactive indicates a line against a deactivated product.
	ErrProductInactive = errors.New("billing: product is inactive")
)
