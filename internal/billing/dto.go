package billing

import "time"

// CreateOrderRequest is the primary operation input: order items with
// an optional upfront payment and an optional source document.
type CreateOrderRequest struct {
	CustomerID int64          `json:"customer_id" validate:"required,gt=0"`
	OrderDate  time.Time      `json:"order_date"`
	Items      []ItemRequest  `json:"items" validate:"omitempty,dive"`
	Payment    *PaymentIntent `json:"payment,omitempty" validate:"omitempty"`
	Source     *SourceRequest `json:"source,omitempty" validate:"omitempty"`
	ActorID    int64          `json:"-"`
}

// ItemRequest is one requested product line. UnitPrice overrides the
// list price when positive.
type ItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// PaymentIntent is an optional upfront payment captured with the invoice.
type PaymentIntent struct {
	Mode      string  `json:"mode" validate:"required,oneof=CASH UPI CARD CHEQUE BANK"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference" validate:"max=100"`
}

// SourceRequest selects an existing source document. At most one field
// may be set; both empty means a direct sale.
type SourceRequest struct {
	OrderID *int64  `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	NoteIDs []int64 `json:"challan_ids,omitempty" validate:"omitempty,min=1,dive,gt=0"`
}

// Resolve maps the wire shape onto the InvoiceSource union.
func (r *SourceRequest) Resolve() InvoiceSource {
	if r == nil {
		return DirectSource()
	}
	if r.OrderID != nil {
		return FromOrder(*r.OrderID)
	}
	if len(r.NoteIDs) > 0 {
		return FromDeliveryNotes(r.NoteIDs)
	}
	return DirectSource()
}

// PlaceOrderRequest books a confirmed-later order without invoicing it.
// Stock moves only when the order is invoiced or dispatched.
type PlaceOrderRequest struct {
	CustomerID int64         `json:"customer_id" validate:"required,gt=0"`
	OrderDate  time.Time     `json:"order_date"`
	Items      []ItemRequest `json:"items" validate:"required,min=1,dive"`
	ActorID    int64         `json:"-"`
}

// CreateOrderResult is returned to the request layer.
type CreateOrderResult struct {
	OrderID       int64   `json:"order_id,omitempty"`
	InvoiceID     int64   `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	TotalAmount   float64 `json:"total_amount"`
}

// CancelInvoiceRequest reverses an invoice's stock and balance effects.
type CancelInvoiceRequest struct {
	InvoiceID int64  `json:"-" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,min=3,max=500"`
	ActorID   int64  `json:"-"`
}
