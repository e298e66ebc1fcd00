package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and mutates customer rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, code, name, jurisdiction, terms, credit_limit, outstanding, active, blacklisted, created_at, updated_at`

// Get loads one customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
}

// GetForUpdate loads and row-locks a customer inside the caller's
// transaction. The lock order is lots first, customer last; see the
// billing workflow.
func GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Customer, error) {
	return scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1 FOR UPDATE`, id))
}

// AddOutstanding shifts the running outstanding balance by delta within
// the caller's transaction. Negative deltas settle, positive expose.
func AddOutstanding(ctx context.Context, tx pgx.Tx, id int64, delta float64) error {
	tag, err := tx.Exec(ctx, `UPDATE customers SET outstanding = outstanding + $2, updated_at = NOW() WHERE id=$1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Jurisdiction, &c.Terms, &c.CreditLimit,
		&c.Outstanding, &c.Active, &c.Blacklisted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}
