package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists lots and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the allocator and
// the billing workflow run against locked lot rows.
type TxRepository interface {
	LockLots(ctx context.Context, productID int64) ([]StockLot, error)
	LockLot(ctx context.Context, lotID int64) (StockLot, error)
	ConsumeLot(ctx context.Context, lotID int64, qty float64) error
	RestoreLot(ctx context.Context, lotID int64, qty float64) error
	WriteOffLot(ctx context.Context, lotID int64, qty float64) error
	InsertLot(ctx context.Context, lot StockLot) (int64, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Tx wraps an existing pgx transaction, letting the billing workflow
// share one transaction across modules.
func Tx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const lotColumns = `id, product_id, lot_number, expiry_date, qty_received, qty_available, qty_sold, qty_written_off, unit_cost, received_at`

// LockLots row-locks every lot of the product with available stock,
// in ascending id order (the fixed lock order for the whole system).
func (r *txRepository) LockLots(ctx context.Context, productID int64) ([]StockLot, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lotColumns+`
FROM stock_lots
WHERE product_id=$1 AND qty_available > 0
ORDER BY id
FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []StockLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *txRepository) LockLot(ctx context.Context, lotID int64) (StockLot, error) {
	lot, err := scanLot(r.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM stock_lots WHERE id=$1 FOR UPDATE`, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLot{}, ErrLotNotFound
		}
		return StockLot{}, err
	}
	return lot, nil
}

// ConsumeLot moves quantity from available to sold. The guard clause
// keeps available non-negative even if the caller's arithmetic is wrong.
func (r *txRepository) ConsumeLot(ctx context.Context, lotID int64, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_lots
SET qty_available = qty_available - $2, qty_sold = qty_sold + $2
WHERE id=$1 AND qty_available >= $2`, lotID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

// RestoreLot reverses a consumption during invoice cancellation.
func (r *txRepository) RestoreLot(ctx context.Context, lotID int64, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_lots
SET qty_available = qty_available + $2, qty_sold = qty_sold - $2
WHERE id=$1 AND qty_sold >= $2`, lotID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

// WriteOffLot moves quantity from available to written-off.
func (r *txRepository) WriteOffLot(ctx context.Context, lotID int64, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_lots
SET qty_available = qty_available - $2, qty_written_off = qty_written_off + $2
WHERE id=$1 AND qty_available >= $2`, lotID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWriteOffExceedsAvailable
	}
	return nil
}

func (r *txRepository) InsertLot(ctx context.Context, lot StockLot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_lots (product_id, lot_number, expiry_date, qty_received, qty_available, qty_sold, qty_written_off, unit_cost, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		lot.ProductID, lot.LotNumber, lot.Expiry, lot.QtyReceived, lot.QtyAvailable, lot.QtySold, lot.QtyWrittenOff, lot.UnitCost, lot.ReceivedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_movements (product_id, lot_id, direction, qty, ref_module, ref_id, note, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		m.ProductID, m.LotID, string(m.Direction), m.Qty, m.RefModule, m.RefID, m.Note, m.PostedAt).Scan(&id)
	return id, err
}

// Availability sums available quantity across the product's lots.
func (r *Repository) Availability(ctx context.Context, productID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty_available), 0) FROM stock_lots WHERE product_id=$1`, productID).Scan(&total)
	return total, err
}

// ListExpiring returns lots with remaining stock expiring before the cutoff.
func (r *Repository) ListExpiring(ctx context.Context, cutoff time.Time) ([]ExpiringLot, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.product_id, p.code, l.lot_number, l.expiry_date, l.qty_available
FROM stock_lots l
JOIN products p ON p.id = l.product_id
WHERE l.qty_available > 0 AND l.expiry_date IS NOT NULL AND l.expiry_date <= $1
ORDER BY l.expiry_date, l.id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiringLot
	for rows.Next() {
		var e ExpiringLot
		if err := rows.Scan(&e.LotID, &e.ProductID, &e.ProductCode, &e.LotNumber, &e.Expiry, &e.QtyAvailable); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanLot(row pgx.Row) (StockLot, error) {
	var lot StockLot
	err := row.Scan(&lot.ID, &lot.ProductID, &lot.LotNumber, &lot.Expiry, &lot.QtyReceived,
		&lot.QtyAvailable, &lot.QtySold, &lot.QtyWrittenOff, &lot.UnitCost, &lot.ReceivedAt)
	return lot, err
}
