// Package numbering issues unique, date-scoped document numbers from an
// atomic per-(kind, date) counter table. Counters live in the database,
// never in process memory, so numbers stay unique across workers.
// Sequences may leave gaps after aborted transactions; they never repeat.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Kind identifies the document series a number belongs to.
type Kind string

const (
	KindOrder        Kind = "ORD"
	KindInvoice      Kind = "INV"
	KindDeliveryNote Kind = "DN"
	KindPayment      Kind = "PAY"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool, so numbers can be
// drawn inside the caller's transaction or standalone.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next reserves and formats the next number for the kind/date, e.g.
// INV-20260901-0007. The upsert bumps the counter row atomically;
// concurrent callers serialize on the row and each observe a distinct
// sequence value.
func Next(ctx context.Context, q Querier, kind Kind, date time.Time) (string, error) {
	var seq int64
	err := q.QueryRow(ctx, `INSERT INTO doc_sequences (kind, seq_date, last_seq)
VALUES ($1, $2, 1)
ON CONFLICT (kind, seq_date) DO UPDATE SET last_seq = doc_sequences.last_seq + 1
RETURNING last_seq`, string(kind), date.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s: %w", kind, err)
	}
	return Format(kind, date, seq), nil
}

// Format renders a document number without touching the counter.
func Format(kind Kind, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", kind, date.Format("20060102"), seq)
}
