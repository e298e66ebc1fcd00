package delivery

import (
	"errors"
	"time"
)

// Note is a challan: goods dispatched against an order, prior to
// invoicing. ConvertedToInvoice is one-way: once an invoice references
// the note, it can never source a second one.
type Note struct {
	ID                 int64
	DocNumber          string
	OrderID            int64
	CustomerID         int64
	DispatchDate       time.Time
	ConvertedToInvoice bool
	InvoiceID          *int64
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Lines              []NoteLine
}

// NoteLine records one dispatched quantity.
type NoteLine struct {
	ID        int64
	NoteID    int64
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// CreateNoteRequest creates a challan against a confirmed order.
type CreateNoteRequest struct {
	OrderID      int64           `json:"order_id" validate:"required,gt=0"`
	DispatchDate time.Time       `json:"dispatch_date"`
	Notes        *string         `json:"notes,omitempty"`
	Lines        []CreateLineReq `json:"lines" validate:"required,min=1,dive"`
}

// CreateLineReq is one dispatched line.
type CreateLineReq struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

var (
	// ErrAlreadyConverted indicates the note already sourced an invoice.
	ErrAlreadyConverted = errors.New("delivery: note already converted to invoice")
	// ErrNotFound indicates an unknown delivery note id.
	ErrNotFound = errors.New("delivery: note not found")
	// ErrOrderNotFound indicates an unknown source order. Returned by
	// OrderLookup implementations.
	ErrOrderNotFound = errors.New("delivery: order not found")
	// ErrOrderNotConfirmed indicates a source order that is not
	// dispatchable. Returned by OrderLookup implementations.
	ErrOrderNotConfirmed = errors.New("delivery: order is not confirmed")
)
