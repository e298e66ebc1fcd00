package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medilink-erp/medilink-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Availability(ctx context.Context, productID int64) (float64, error)
	ListExpiring(ctx context.Context, cutoff time.Time) ([]ExpiringLot, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates lot lifecycle outside the invoice workflow:
// goods receipts create lots, write-offs retire stock, and read-side
// queries feed availability checks and the expiry scan job.
//
// Invoice-time consumption is deliberately NOT here: the billing
// orchestrator is the sole writer of sale-driven stock mutations, once
// per line at invoice time.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *AvailabilityCache
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache *AvailabilityCache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// PostReceipt records a goods receipt, creating a new lot with its IN
// movement in one transaction.
func (s *Service) PostReceipt(ctx context.Context, input ReceiptInput) (StockLot, error) {
	if input.ProductID == 0 || input.LotNumber == "" {
		return StockLot{}, fmt.Errorf("inventory: product and lot number required")
	}
	if input.Qty <= 0 {
		return StockLot{}, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	refID := input.RefID
	if refID == "" {
		refID = uuid.NewString()
	}
	lot := StockLot{
		ProductID:    input.ProductID,
		LotNumber:    input.LotNumber,
		Expiry:       input.Expiry,
		QtyReceived:  input.Qty,
		QtyAvailable: input.Qty,
		UnitCost:     input.UnitCost,
		ReceivedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertLot(ctx, lot)
		if err != nil {
			return err
		}
		lot.ID = id
		_, err = tx.InsertMovement(ctx, Movement{
			ProductID: input.ProductID,
			LotID:     id,
			Direction: DirectionIn,
			Qty:       input.Qty,
			RefModule: "goods-receipt",
			RefID:     refID,
			PostedAt:  now,
		})
		return err
	})
	if err != nil {
		return StockLot{}, err
	}

	s.invalidate(ctx, input.ProductID)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory:receipt",
			Entity:   "stock_lot",
			EntityID: fmt.Sprintf("%d", lot.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"lot_number": input.LotNumber,
				"qty":        input.Qty,
			},
		})
	}
	return lot, nil
}

// PostWriteOff retires expired or damaged stock from a lot. The lot row
// keeps its full history; only quantities shift from available to
// written-off, with an OUT movement for the audit trail.
func (s *Service) PostWriteOff(ctx context.Context, input WriteOffInput) error {
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}

	now := time.Now().UTC()
	var productID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.LockLot(ctx, input.LotID)
		if err != nil {
			return err
		}
		productID = lot.ProductID
		if lot.QtyAvailable < input.Qty {
			return ErrWriteOffExceedsAvailable
		}
		if err := tx.WriteOffLot(ctx, input.LotID, input.Qty); err != nil {
			return err
		}
		_, err = tx.InsertMovement(ctx, Movement{
			ProductID: lot.ProductID,
			LotID:     lot.ID,
			Direction: DirectionOut,
			Qty:       input.Qty,
			RefModule: "write-off",
			RefID:     uuid.NewString(),
			Note:      input.Note,
			PostedAt:  now,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productID)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory:write-off",
			Entity:   "stock_lot",
			EntityID: fmt.Sprintf("%d", input.LotID),
			Meta:     map[string]any{"qty": input.Qty, "note": input.Note},
		})
	}
	return nil
}

// Availability returns the total available quantity for a product,
// served from the cache when warm.
func (s *Service) Availability(ctx context.Context, productID int64) (float64, error) {
	if s.cache != nil {
		return s.cache.Get(ctx, productID, func(ctx context.Context) (float64, error) {
			return s.repo.Availability(ctx, productID)
		})
	}
	return s.repo.Availability(ctx, productID)
}

// ListExpiring returns lots with stock expiring within the window.
func (s *Service) ListExpiring(ctx context.Context, within time.Duration) ([]ExpiringLot, error) {
	return s.repo.ListExpiring(ctx, time.Now().UTC().Add(within))
}

// Invalidate drops the cached availability for a product. The billing
// workflow calls this after committing stock mutations.
func (s *Service) Invalidate(ctx context.Context, productIDs ...int64) {
	for _, id := range productIDs {
		s.invalidate(ctx, id)
	}
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
}
