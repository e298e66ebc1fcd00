package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medilink-erp/medilink-erp/internal/billing"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/shared"
	"github.com/medilink-erp/medilink-erp/internal/tax"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics receives ledger counters.
type Metrics interface {
	PaymentRecorded()
}

// Service records payments and keeps the derived state consistent.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	metrics  Metrics
	validate *validator.Validate
	logger   *slog.Logger
	retry    shared.RetryPolicy
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics Metrics, logger *slog.Logger, retry shared.RetryPolicy) *Service {
	if retry.Attempts == 0 {
		retry = shared.DefaultRetryPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
		retry:    retry,
	}
}

// Record applies a payment to an invoice: under the invoice row lock it
// rejects cancelled invoices and overpayment, appends the ledger entry,
// recomputes paid amount and status, and settles the amount off the
// customer balance. One transaction, one commit.
func (s *Service) Record(ctx context.Context, req RecordRequest) (Payment, error) {
	if err := s.validate.Struct(req); err != nil {
		return Payment{}, fmt.Errorf("payments: invalid request: %w", err)
	}

	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	var payment Payment
	err := shared.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			balance, err := tx.LockInvoiceBalance(ctx, req.InvoiceID)
			if err != nil {
				return err
			}
			if balance.Status == billing.InvoiceStatusCancelled {
				return billing.ErrInvoiceCancelled
			}
			outstanding := tax.Round2(balance.Outstanding())
			if req.Amount > outstanding {
				return &ExceedsBalanceError{
					InvoiceID:   balance.ID,
					Outstanding: outstanding,
					Amount:      req.Amount,
				}
			}

			number, err := tx.NextNumber(ctx, numbering.KindPayment, paidAt)
			if err != nil {
				return err
			}
			payment = Payment{
				Number:    number,
				InvoiceID: balance.ID,
				Amount:    req.Amount,
				Mode:      req.Mode,
				Reference: req.Reference,
				PaidAt:    paidAt,
			}
			id, err := tx.InsertPayment(ctx, payment)
			if err != nil {
				return err
			}
			payment.ID = id

			paid := tax.Round2(balance.PaidAmount + req.Amount)
			status := billing.DeriveStatus(paid, balance.TotalAmount)
			if err := tx.UpdateInvoicePayment(ctx, balance.ID, paid, status); err != nil {
				return err
			}
			return tx.AddOutstanding(ctx, balance.CustomerID, -req.Amount)
		})
	})
	if err != nil {
		return Payment{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID,
			Action:   "payments:record",
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", payment.ID),
			Meta: map[string]any{
				"invoice_id": payment.InvoiceID,
				"number":     payment.Number,
				"amount":     payment.Amount,
				"mode":       payment.Mode,
			},
		})
	}
	s.logger.InfoContext(ctx, "payment recorded",
		"payment_id", payment.ID,
		"invoice_id", payment.InvoiceID,
		"amount", payment.Amount,
	)
	return payment, nil
}

// ListForInvoice returns an invoice's payments, oldest first.
func (s *Service) ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListForInvoice(ctx, invoiceID)
}
