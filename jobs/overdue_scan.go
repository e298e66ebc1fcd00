package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/medilink-erp/medilink-erp/internal/jobs"
)

// NewOverdueScanHandler builds the handler for TaskOverdueScan. It
// flags invoices still carrying a balance past the grace period so
// collections can chase them.
func NewOverdueScanHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("overdue-scan")
		var payload OverdueScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		grace := payload.Grace
		if grace <= 0 {
			grace = 30 * 24 * time.Hour
		}
		cutoff := time.Now().UTC().Add(-grace)

		rows, err := pool.Query(ctx, `SELECT id, number, customer_id, total_amount - paid_amount, invoice_date
FROM invoices
WHERE status IN ('UNPAID', 'PARTIAL') AND invoice_date <= $1
ORDER BY invoice_date`, cutoff)
		if err != nil {
			return tracker.End(err)
		}
		defer rows.Close()

		flagged := 0
		for rows.Next() {
			var (
				id, customerID int64
				number         string
				balance        float64
				invoiceDate    time.Time
			)
			if err := rows.Scan(&id, &number, &customerID, &balance, &invoiceDate); err != nil {
				return tracker.End(err)
			}
			flagged++
			logger.WarnContext(ctx, "invoice overdue",
				"invoice_id", id,
				"number", number,
				"customer_id", customerID,
				"balance", balance,
				"invoice_date", invoiceDate.Format("2006-01-02"),
			)
		}
		if err := rows.Err(); err != nil {
			return tracker.End(err)
		}
		metrics.SetOverdueInvoices(flagged)
		logger.InfoContext(ctx, "overdue scan complete", "grace", grace.String(), "flagged", flagged)
		return tracker.End(nil)
	}
}
