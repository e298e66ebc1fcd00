package billing

import "fmt"

// SourceKind tags the InvoiceSource union.
type SourceKind string

const (
	// SourceDirect invoices goods sold over the counter, creating a
	// fresh order alongside the invoice.
	SourceDirect SourceKind = "DIRECT"
	// SourceOrder invoices an existing confirmed order.
	SourceOrder SourceKind = "ORDER"
	// SourceDeliveryNotes invoices goods already dispatched on one or
	// more challans.
	SourceDeliveryNotes SourceKind = "DELIVERY_NOTES"
)

// InvoiceSource is a tagged union over the three ways an invoice comes
// into existence. Branching on Kind is exhaustive; each branch enforces
// its own document invariants, so cross-document references never
// degrade into ad hoc nil checks.
type InvoiceSource struct {
	kind    SourceKind
	orderID int64
	noteIDs []int64
}

// DirectSource builds the direct-sale variant.
func DirectSource() InvoiceSource {
	return InvoiceSource{kind: SourceDirect}
}

// FromOrder builds the order-sourced variant.
func FromOrder(orderID int64) InvoiceSource {
	return InvoiceSource{kind: SourceOrder, orderID: orderID}
}

// FromDeliveryNotes builds the challan-sourced variant.
func FromDeliveryNotes(noteIDs []int64) InvoiceSource {
	return InvoiceSource{kind: SourceDeliveryNotes, noteIDs: noteIDs}
}

// Kind returns the union tag.
func (s InvoiceSource) Kind() SourceKind {
	if s.kind == "" {
		return SourceDirect
	}
	return s.kind
}

// OrderID returns the source order for the Order variant.
func (s InvoiceSource) OrderID() int64 { return s.orderID }

// NoteIDs returns the source challans for the DeliveryNotes variant.
func (s InvoiceSource) NoteIDs() []int64 { return s.noteIDs }

// Validate rejects malformed variants before the workflow starts.
func (s InvoiceSource) Validate() error {
	switch s.Kind() {
	case SourceDirect:
		return nil
	case SourceOrder:
		if s.orderID <= 0 {
			return fmt.Errorf("billing: order source requires an order id")
		}
		return nil
	case SourceDeliveryNotes:
		if len(s.noteIDs) == 0 {
			return fmt.Errorf("billing: delivery-note source requires note ids")
		}
		return nil
	default:
		return fmt.Errorf("billing: unknown invoice source %q", s.kind)
	}
}
