package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink-erp/medilink-erp/internal/numbering"
	"github.com/medilink-erp/medilink-erp/internal/platform/db"
)

// OrderLookup resolves the order a challan dispatches against.
type OrderLookup interface {
	GetConfirmedOrder(ctx context.Context, orderID int64) (customerID int64, err error)
}

// Service creates delivery notes against confirmed orders.
type Service struct {
	pool     *pgxpool.Pool
	repo     *Repository
	orders   OrderLookup
	validate *validator.Validate
}

// NewService builds Service.
func NewService(pool *pgxpool.Pool, repo *Repository, orders OrderLookup) *Service {
	return &Service{pool: pool, repo: repo, orders: orders, validate: validator.New()}
}

// Create issues a challan for dispatched quantities against a confirmed
// order. The note starts unconverted; invoicing it later is the billing
// workflow's job.
func (s *Service) Create(ctx context.Context, req CreateNoteRequest) (Note, error) {
	if err := s.validate.Struct(req); err != nil {
		return Note{}, fmt.Errorf("delivery: invalid request: %w", err)
	}

	customerID, err := s.orders.GetConfirmedOrder(ctx, req.OrderID)
	if err != nil {
		return Note{}, err
	}

	dispatchDate := req.DispatchDate
	if dispatchDate.IsZero() {
		dispatchDate = time.Now().UTC()
	}

	note := Note{
		OrderID:      req.OrderID,
		CustomerID:   customerID,
		DispatchDate: dispatchDate,
		Notes:        req.Notes,
	}
	for _, line := range req.Lines {
		note.Lines = append(note.Lines, NoteLine{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		number, err := numbering.Next(ctx, tx, numbering.KindDeliveryNote, dispatchDate)
		if err != nil {
			return err
		}
		note.DocNumber = number
		id, err := Insert(ctx, tx, note)
		if err != nil {
			return err
		}
		note.ID = id
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	return s.repo.Get(ctx, note.ID)
}

// Get loads a note with lines.
func (s *Service) Get(ctx context.Context, id int64) (Note, error) {
	return s.repo.Get(ctx, id)
}
