package billing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/medilink-erp/medilink-erp/internal/delivery"
	"github.com/medilink-erp/medilink-erp/internal/inventory"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/platform/db"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
}

// UpfrontPayment is the optional payment captured in the same
// transaction as the invoice.
type UpfrontPayment struct {
	Number    string
	InvoiceID int64
	Amount    float64
	Mode      string
	Reference string
	PaidAt    time.Time
}

// TxRepository is the transactional surface of the invoice workflow. It
// spans the modules the workflow touches so every step shares one
// transaction and one commit point.
type TxRepository interface {
	NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error)

	InsertOrder(ctx context.Context, o Order) (int64, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error
	UpdateOrderTotals(ctx context.Context, id int64, subtotal, taxAmount, total float64) error

	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	LockInvoice(ctx context.Context, id int64) (Invoice, error)
	MarkInvoiceCancelled(ctx context.Context, id int64, reason string) error
	InsertPayment(ctx context.Context, p UpfrontPayment) (int64, error)

	AllocateStock(ctx context.Context, productID int64, qty float64) ([]inventory.Allocation, error)
	ConsumeLot(ctx context.Context, lotID int64, qty float64) error
	RestoreLot(ctx context.Context, lotID int64, qty float64) error
	InsertMovement(ctx context.Context, m inventory.Movement) (int64, error)

	LockCustomer(ctx context.Context, id int64) (customers.Customer, error)
	AddOutstanding(ctx context.Context, customerID int64, delta float64) error

	LockNotes(ctx context.Context, ids []int64) ([]delivery.Note, error)
	LoadNoteLines(ctx context.Context, ids []int64) ([]delivery.NoteLine, error)
	MarkNotesConverted(ctx context.Context, ids []int64, invoiceID int64) error
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error) {
	return numbering.Next(ctx, r.tx, kind, date)
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	return insertOrder(ctx, r.tx, o)
}

func (r *txRepo) LockOrder(ctx context.Context, id int64) (Order, error) {
	return lockOrder(ctx, r.tx, id)
}

func (r *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	return updateOrderStatus(ctx, r.tx, id, status)
}

func (r *txRepo) UpdateOrderTotals(ctx context.Context, id int64, subtotal, taxAmount, total float64) error {
	return updateOrderTotals(ctx, r.tx, id, subtotal, taxAmount, total)
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	return insertInvoice(ctx, r.tx, inv)
}

func (r *txRepo) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return lockInvoice(ctx, r.tx, id)
}

func (r *txRepo) MarkInvoiceCancelled(ctx context.Context, id int64, reason string) error {
	return markInvoiceCancelled(ctx, r.tx, id, reason)
}

func (r *txRepo) InsertPayment(ctx context.Context, p UpfrontPayment) (int64, error) {
	return insertPayment(ctx, r.tx, p.InvoiceID, p.Number, p.Mode, p.Reference, p.Amount, p.PaidAt)
}

func (r *txRepo) AllocateStock(ctx context.Context, productID int64, qty float64) ([]inventory.Allocation, error) {
	return inventory.Allocate(ctx, inventory.Tx(r.tx), productID, qty)
}

func (r *txRepo) ConsumeLot(ctx context.Context, lotID int64, qty float64) error {
	return inventory.Tx(r.tx).ConsumeLot(ctx, lotID, qty)
}

func (r *txRepo) RestoreLot(ctx context.Context, lotID int64, qty float64) error {
	return inventory.Tx(r.tx).RestoreLot(ctx, lotID, qty)
}

func (r *txRepo) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	return inventory.Tx(r.tx).InsertMovement(ctx, m)
}

func (r *txRepo) LockCustomer(ctx context.Context, id int64) (customers.Customer, error) {
	return customers.GetForUpdate(ctx, r.tx, id)
}

func (r *txRepo) AddOutstanding(ctx context.Context, customerID int64, delta float64) error {
	return customers.AddOutstanding(ctx, r.tx, customerID, delta)
}

func (r *txRepo) LockNotes(ctx context.Context, ids []int64) ([]delivery.Note, error) {
	return delivery.LockForConversion(ctx, r.tx, ids)
}

func (r *txRepo) LoadNoteLines(ctx context.Context, ids []int64) ([]delivery.NoteLine, error) {
	return delivery.LoadLines(ctx, r.tx, ids)
}

func (r *txRepo) MarkNotesConverted(ctx context.Context, ids []int64, invoiceID int64) error {
	return delivery.MarkConverted(ctx, r.tx, ids, invoiceID)
}
