package inventory

import (
	"context"
	"sort"
)

// Plan selects lots for the requested quantity in first-expiry-first-out
// order: expiry ascending, lots without expiry last, lot id as the
// tie-break. The input lots must already be row-locked by the caller so
// the quantities read here cannot be consumed concurrently.
//
// A zero request returns an empty plan. A shortfall fails the whole
// request with *InsufficientStockError; no partial plan is returned.
func Plan(productID int64, lots []StockLot, qty float64) ([]Allocation, error) {
	if qty == 0 {
		return nil, nil
	}
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}

	candidates := make([]StockLot, 0, len(lots))
	total := 0.0
	for _, lot := range lots {
		if lot.QtyAvailable <= 0 {
			continue
		}
		candidates = append(candidates, lot)
		total += lot.QtyAvailable
	}
	if total < qty {
		return nil, &InsufficientStockError{ProductID: productID, Requested: qty, Available: total}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.Expiry == nil && b.Expiry == nil:
			return a.ID < b.ID
		case a.Expiry == nil:
			return false
		case b.Expiry == nil:
			return true
		case a.Expiry.Equal(*b.Expiry):
			return a.ID < b.ID
		default:
			return a.Expiry.Before(*b.Expiry)
		}
	})

	var plan []Allocation
	remaining := qty
	for _, lot := range candidates {
		take := lot.QtyAvailable
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			Expiry:    lot.Expiry,
			Qty:       take,
			UnitCost:  lot.UnitCost,
		})
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	return plan, nil
}

// Allocate locks every candidate lot of the product and plans against
// the quantities observed under lock. Locks are acquired in ascending
// lot-id order regardless of expiry, so two transactions allocating the
// same product always request rows in the same order and cannot
// deadlock; FEFO ordering is applied in memory afterwards.
func Allocate(ctx context.Context, tx TxRepository, productID int64, qty float64) ([]Allocation, error) {
	if qty == 0 {
		return nil, nil
	}
	lots, err := tx.LockLots(ctx, productID)
	if err != nil {
		return nil, err
	}
	return Plan(productID, lots, qty)
}
