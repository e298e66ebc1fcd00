package delivery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists delivery notes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const noteColumns = `id, doc_number, order_id, customer_id, dispatch_date, converted_to_invoice, invoice_id, notes, created_at, updated_at`

// Get loads a note with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Note, error) {
	note, err := scanNote(r.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM delivery_notes WHERE id=$1`, id))
	if err != nil {
		return Note{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, note_id, product_id, qty, unit_price FROM delivery_note_lines WHERE note_id=$1 ORDER BY id`, id)
	if err != nil {
		return Note{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line NoteLine
		if err := rows.Scan(&line.ID, &line.NoteID, &line.ProductID, &line.Qty, &line.UnitPrice); err != nil {
			return Note{}, err
		}
		note.Lines = append(note.Lines, line)
	}
	return note, rows.Err()
}

// Insert writes a note header and its lines inside the caller's transaction.
func Insert(ctx context.Context, tx pgx.Tx, note Note) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO delivery_notes (doc_number, order_id, customer_id, dispatch_date, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
		note.DocNumber, note.OrderID, note.CustomerID, note.DispatchDate, note.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range note.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO delivery_note_lines (note_id, product_id, qty, unit_price)
VALUES ($1,$2,$3,$4)`, id, line.ProductID, line.Qty, line.UnitPrice); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// LockForConversion loads and row-locks the notes inside the caller's
// transaction, failing fast with ErrAlreadyConverted before any
// allocation work happens.
func LockForConversion(ctx context.Context, tx pgx.Tx, ids []int64) ([]Note, error) {
	rows, err := tx.Query(ctx, `SELECT `+noteColumns+` FROM delivery_notes WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]Note, len(ids))
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		byID[note.ID] = note
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Note, 0, len(ids))
	for _, id := range ids {
		note, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		if note.ConvertedToInvoice {
			return nil, ErrAlreadyConverted
		}
		out = append(out, note)
	}
	return out, nil
}

// MarkConverted flips the one-way conversion flag and links the invoice.
// The guard predicate re-checks the flag so a lost race still aborts the
// transaction instead of double-invoicing the dispatch.
func MarkConverted(ctx context.Context, tx pgx.Tx, ids []int64, invoiceID int64) error {
	tag, err := tx.Exec(ctx, `UPDATE delivery_notes
SET converted_to_invoice = TRUE, invoice_id = $2, updated_at = NOW()
WHERE id = ANY($1) AND NOT converted_to_invoice`, ids, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return ErrAlreadyConverted
	}
	return nil
}

// LoadLines fetches the dispatched lines of the notes, in note then line
// order, inside the caller's transaction.
func LoadLines(ctx context.Context, tx pgx.Tx, ids []int64) ([]NoteLine, error) {
	rows, err := tx.Query(ctx, `SELECT id, note_id, product_id, qty, unit_price FROM delivery_note_lines WHERE note_id = ANY($1) ORDER BY note_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NoteLine
	for rows.Next() {
		var line NoteLine
		if err := rows.Scan(&line.ID, &line.NoteID, &line.ProductID, &line.Qty, &line.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanNote(row pgx.Row) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.DocNumber, &n.OrderID, &n.CustomerID, &n.DispatchDate,
		&n.ConvertedToInvoice, &n.InvoiceID, &n.Notes, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}
