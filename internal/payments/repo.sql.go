package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink-erp/medilink-erp/internal/billing"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/platform/db"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
)

// InvoiceBalance is the slice of an invoice the ledger needs, read
// under a row lock.
type InvoiceBalance struct {
	ID          int64
	Number      string
	CustomerID  int64
	TotalAmount float64
	PaidAmount  float64
	Status      billing.InvoiceStatus
}

// Outstanding is the unpaid remainder.
func (b InvoiceBalance) Outstanding() float64 {
	return b.TotalAmount - b.PaidAmount
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error)
}

// TxRepository is the transactional surface of the record-payment
// workflow.
type TxRepository interface {
	NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error)
	LockInvoiceBalance(ctx context.Context, invoiceID int64) (InvoiceBalance, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	UpdateInvoicePayment(ctx context.Context, invoiceID int64, paid float64, status billing.InvoiceStatus) error
	AddOutstanding(ctx context.Context, customerID int64, delta float64) error
}

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListForInvoice returns the payments of an invoice, oldest first.
func (r *Repository) ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, invoice_id, amount, mode, reference, paid_at, created_at
FROM payments WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Number, &p.InvoiceID, &p.Amount, &p.Mode, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error) {
	return numbering.Next(ctx, r.tx, kind, date)
}

func (r *txRepo) LockInvoiceBalance(ctx context.Context, invoiceID int64) (InvoiceBalance, error) {
	var b InvoiceBalance
	err := r.tx.QueryRow(ctx, `SELECT id, number, customer_id, total_amount, paid_amount, status
FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID).
		Scan(&b.ID, &b.Number, &b.CustomerID, &b.TotalAmount, &b.PaidAmount, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceBalance{}, billing.ErrInvoiceNotFound
		}
		return InvoiceBalance{}, err
	}
	return b, nil
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (number, invoice_id, amount, mode, reference, paid_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		p.Number, p.InvoiceID, p.Amount, p.Mode, p.Reference, p.PaidAt).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateInvoicePayment(ctx context.Context, invoiceID int64, paid float64, status billing.InvoiceStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		invoiceID, paid, string(status))
	return err
}

func (r *txRepo) AddOutstanding(ctx context.Context, customerID int64, delta float64) error {
	return customers.AddOutstanding(ctx, r.tx, customerID, delta)
}
