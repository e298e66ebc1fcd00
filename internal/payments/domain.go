// Package payments records settlements against invoices and keeps the
// invoice payment status and the customer balance in step.
package payments

import (
	"fmt"
	"time"
)

// Payment is one settlement against an invoice. Append-only; a wrong
// payment is corrected by a compensating entry, never by editing.
type Payment struct {
	ID        int64
	Number    string
	InvoiceID int64
	Amount    float64
	Mode      string
	Reference string
	PaidAt    time.Time
	CreatedAt time.Time
}

// RecordRequest is the record-payment operation input.
type RecordRequest struct {
	InvoiceID int64     `json:"-" validate:"required,gt=0"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Mode      string    `json:"mode" validate:"required,oneof=CASH UPI CARD CHEQUE BANK"`
	Reference string    `json:"reference" validate:"max=100"`
	PaidAt    time.Time `json:"paid_at"`
	ActorID   int64     `json:"-"`
}

// ExceedsBalanceError reports a payment above the invoice's unpaid
// remainder. Overpayment is rejected, not credited.
type ExceedsBalanceError struct {
	InvoiceID   int64
	Outstanding float64
	Amount      float64
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("payments: invoice %d outstanding %.2f, payment %.2f exceeds it",
		e.InvoiceID, e.Outstanding, e.Amount)
}
