package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medilink-erp/medilink-erp/internal/billing"
	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/shared"
)

type fakeRepo struct {
	mu          sync.Mutex
	invoice     InvoiceBalance
	outstanding float64
	ledger      []Payment
	seqs        map[string]int64
}

func newFakeRepo(total, paid float64, status billing.InvoiceStatus) *fakeRepo {
	return &fakeRepo{
		invoice: InvoiceBalance{
			ID: 1, Number: "INV-20260901-0001", CustomerID: 7,
			TotalAmount: total, PaidAmount: paid, Status: status,
		},
		outstanding: total - paid,
		seqs:        map[string]int64{},
	}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	backupInvoice := r.invoice
	backupOutstanding := r.outstanding
	backupLedger := append([]Payment(nil), r.ledger...)
	if err := fn(ctx, (*fakeTx)(r)); err != nil {
		r.invoice = backupInvoice
		r.outstanding = backupOutstanding
		r.ledger = backupLedger
		return err
	}
	return nil
}

func (r *fakeRepo) ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.ledger {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTx fakeRepo

func (t *fakeTx) NextNumber(ctx context.Context, kind numbering.Kind, date time.Time) (string, error) {
	key := string(kind) + date.Format("20060102")
	t.seqs[key]++
	return numbering.Format(kind, date, t.seqs[key]), nil
}

func (t *fakeTx) LockInvoiceBalance(ctx context.Context, invoiceID int64) (InvoiceBalance, error) {
	if invoiceID != t.invoice.ID {
		return InvoiceBalance{}, billing.ErrInvoiceNotFound
	}
	return t.invoice, nil
}

func (t *fakeTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	p.ID = int64(len(t.ledger) + 1)
	t.ledger = append(t.ledger, p)
	return p.ID, nil
}

func (t *fakeTx) UpdateInvoicePayment(ctx context.Context, invoiceID int64, paid float64, status billing.InvoiceStatus) error {
	t.invoice.PaidAmount = paid
	t.invoice.Status = status
	return nil
}

func (t *fakeTx) AddOutstanding(ctx context.Context, customerID int64, delta float64) error {
	t.outstanding += delta
	return nil
}

func newPaymentService(repo *fakeRepo) *Service {
	return NewService(repo, nil, nil, nil, shared.RetryPolicy{})
}

func TestRecordPartialThenFull(t *testing.T) {
	repo := newFakeRepo(1344, 0, billing.InvoiceStatusUnpaid)
	svc := newPaymentService(repo)

	p, err := svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: 344, Mode: "UPI"})
	require.NoError(t, err)
	require.Contains(t, p.Number, "PAY-")
	require.Equal(t, billing.InvoiceStatusPartial, repo.invoice.Status)
	require.Equal(t, 344.0, repo.invoice.PaidAmount)
	require.Equal(t, 1000.0, repo.outstanding)

	_, err = svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: 1000, Mode: "BANK"})
	require.NoError(t, err)
	require.Equal(t, billing.InvoiceStatusPaid, repo.invoice.Status)
	require.Equal(t, 1344.0, repo.invoice.PaidAmount)
	require.Zero(t, repo.outstanding)
	require.Len(t, repo.ledger, 2)
}

func TestRecordOverpaymentRejected(t *testing.T) {
	repo := newFakeRepo(1344, 1000, billing.InvoiceStatusPartial)
	svc := newPaymentService(repo)

	_, err := svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: 500, Mode: "CASH"})
	var balanceErr *ExceedsBalanceError
	require.ErrorAs(t, err, &balanceErr)
	require.Equal(t, 344.0, balanceErr.Outstanding)
	require.Equal(t, 500.0, balanceErr.Amount)

	require.Empty(t, repo.ledger)
	require.Equal(t, 1000.0, repo.invoice.PaidAmount)
}

func TestRecordAgainstCancelledInvoiceRejected(t *testing.T) {
	repo := newFakeRepo(1344, 0, billing.InvoiceStatusCancelled)
	svc := newPaymentService(repo)

	_, err := svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: 100, Mode: "CASH"})
	require.ErrorIs(t, err, billing.ErrInvoiceCancelled)
	require.Empty(t, repo.ledger)
}

func TestRecordUnknownInvoice(t *testing.T) {
	repo := newFakeRepo(100, 0, billing.InvoiceStatusUnpaid)
	svc := newPaymentService(repo)

	_, err := svc.Record(context.Background(), RecordRequest{InvoiceID: 99, Amount: 100, Mode: "CASH"})
	require.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	repo := newFakeRepo(100, 0, billing.InvoiceStatusUnpaid)
	svc := newPaymentService(repo)

	_, err := svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: 0, Mode: "CASH"})
	require.Error(t, err)
	_, err = svc.Record(context.Background(), RecordRequest{InvoiceID: 1, Amount: -5, Mode: "CASH"})
	require.Error(t, err)
	require.Empty(t, repo.ledger)
}
