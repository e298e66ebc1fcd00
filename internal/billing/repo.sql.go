package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink-erp/medilink-erp/internal/delivery"
)

// Repository reads billing documents; writes happen through the
// tx-scoped functions below so the whole workflow shares one
// transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, number, customer_id, customer_name, jurisdiction, interstate, order_id, source_kind,
subtotal, tax_central, tax_state, tax_integrated, round_off, total_amount, paid_amount, status,
invoice_date, created_at, updated_at`

// GetInvoice loads an invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, product_id, lot_id, lot_number, qty, unit_price, taxable, tax_rate, tax_central, tax_state, tax_integrated, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.LotID, &line.LotNumber,
			&line.Qty, &line.UnitPrice, &line.Taxable, &line.TaxRate,
			&line.TaxCentral, &line.TaxState, &line.TaxIntegrated, &line.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

// GetOrder loads an order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, doc_number, customer_id, order_date, status, subtotal, tax_amount, total_amount, created_at, updated_at
FROM orders WHERE id=$1`, id).Scan(&o.ID, &o.DocNumber, &o.CustomerID, &o.OrderDate, &o.Status,
		&o.Subtotal, &o.TaxAmount, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, qty, unit_price FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Qty, &line.UnitPrice); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, line)
	}
	return o, rows.Err()
}

// GetConfirmedOrder satisfies the delivery module's order lookup: it
// returns the customer of an order that is ready to dispatch against.
// Errors are translated to the delivery package's contract sentinels.
func (r *Repository) GetConfirmedOrder(ctx context.Context, orderID int64) (int64, error) {
	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return 0, delivery.ErrOrderNotFound
		}
		return 0, err
	}
	if order.Status != OrderStatusConfirmed {
		return 0, delivery.ErrOrderNotConfirmed
	}
	return order.CustomerID, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o Order) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO orders (doc_number, customer_id, order_date, status, subtotal, tax_amount, total_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		o.DocNumber, o.CustomerID, o.OrderDate, string(o.Status), o.Subtotal, o.TaxAmount, o.TotalAmount).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range o.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, qty, unit_price)
VALUES ($1,$2,$3,$4)`, id, line.ProductID, line.Qty, line.UnitPrice); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// lockOrder row-locks an order header and loads its lines. Status
// checks belong to the workflow, not the lock.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID int64) (Order, error) {
	var o Order
	err := tx.QueryRow(ctx, `SELECT id, doc_number, customer_id, order_date, status, subtotal, tax_amount, total_amount, created_at, updated_at
FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&o.ID, &o.DocNumber, &o.CustomerID, &o.OrderDate, &o.Status,
		&o.Subtotal, &o.TaxAmount, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	rows, err := tx.Query(ctx, `SELECT id, order_id, product_id, qty, unit_price FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Qty, &line.UnitPrice); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func updateOrderStatus(ctx context.Context, tx pgx.Tx, orderID int64, status OrderStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func updateOrderTotals(ctx context.Context, tx pgx.Tx, orderID int64, subtotal, taxAmount, total float64) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET subtotal=$2, tax_amount=$3, total_amount=$4, updated_at=NOW() WHERE id=$1`,
		orderID, subtotal, taxAmount, total)
	return err
}

func insertInvoice(ctx context.Context, tx pgx.Tx, inv Invoice) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, customer_name, jurisdiction, interstate, order_id, source_kind,
subtotal, tax_central, tax_state, tax_integrated, round_off, total_amount, paid_amount, status, invoice_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW()) RETURNING id`,
		inv.Number, inv.CustomerID, inv.CustomerName, inv.Jurisdiction, inv.Interstate, inv.OrderID, string(inv.SourceKind),
		inv.Subtotal, inv.TaxCentral, inv.TaxState, inv.TaxIntegrated, inv.RoundOff, inv.TotalAmount, inv.PaidAmount,
		string(inv.Status), inv.InvoiceDate).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range inv.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, product_id, lot_id, lot_number, qty, unit_price, taxable, tax_rate, tax_central, tax_state, tax_integrated, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			id, line.ProductID, line.LotID, line.LotNumber, line.Qty, line.UnitPrice, line.Taxable,
			line.TaxRate, line.TaxCentral, line.TaxState, line.TaxIntegrated, line.LineTotal); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func insertPayment(ctx context.Context, tx pgx.Tx, invoiceID int64, number, mode, reference string, amount float64, paidAt time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO payments (number, invoice_id, amount, mode, reference, paid_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`, number, invoiceID, amount, mode, reference, paidAt).Scan(&id)
	return id, err
}

// lockInvoice row-locks an invoice header for cancellation.
func lockInvoice(ctx context.Context, tx pgx.Tx, id int64) (Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := tx.Query(ctx, `SELECT id, invoice_id, product_id, lot_id, lot_number, qty, unit_price, taxable, tax_rate, tax_central, tax_state, tax_integrated, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY lot_id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.LotID, &line.LotNumber,
			&line.Qty, &line.UnitPrice, &line.Taxable, &line.TaxRate,
			&line.TaxCentral, &line.TaxState, &line.TaxIntegrated, &line.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func markInvoiceCancelled(ctx context.Context, tx pgx.Tx, id int64, reason string) error {
	_, err := tx.Exec(ctx, `UPDATE invoices SET status=$2, cancellation_reason=$3, cancelled_at=NOW(), updated_at=NOW() WHERE id=$1`,
		id, string(InvoiceStatusCancelled), reason)
	return err
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.Jurisdiction, &inv.Interstate,
		&inv.OrderID, &inv.SourceKind, &inv.Subtotal, &inv.TaxCentral, &inv.TaxState, &inv.TaxIntegrated,
		&inv.RoundOff, &inv.TotalAmount, &inv.PaidAmount, &inv.Status, &inv.InvoiceDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}
