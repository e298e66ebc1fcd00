package numbering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// fakeCounter mimics the doc_sequences upsert: one atomic counter per
// (kind, date) pair.
type fakeCounter struct {
	mu   sync.Mutex
	seqs map[string]int64
}

type fakeRow struct {
	seq int64
}

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.seq
	return nil
}

func (c *fakeCounter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := args[0].(string) + ":" + args[1].(string)
	c.seqs[key]++
	return fakeRow{seq: c.seqs[key]}
}

func TestNextFormatsDateScopedNumbers(t *testing.T) {
	counter := &fakeCounter{seqs: map[string]int64{}}
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	n1, err := Next(context.Background(), counter, KindInvoice, date)
	require.NoError(t, err)
	require.Equal(t, "INV-20260901-0001", n1)

	n2, err := Next(context.Background(), counter, KindInvoice, date)
	require.NoError(t, err)
	require.Equal(t, "INV-20260901-0002", n2)

	// Independent series per kind and per date.
	n3, err := Next(context.Background(), counter, KindOrder, date)
	require.NoError(t, err)
	require.Equal(t, "ORD-20260901-0001", n3)

	n4, err := Next(context.Background(), counter, KindInvoice, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, "INV-20260902-0001", n4)
}

func TestNextConcurrentCallersNeverCollide(t *testing.T) {
	counter := &fakeCounter{seqs: map[string]int64{}}
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	const n = 64
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := Next(context.Background(), counter, KindDeliveryNote, date)
			require.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for num := range results {
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
}
