package inventory

import (
	"errors"
	"fmt"
	"time"
)

// StockLot is one received batch of a product, tracked for traceability.
// Lots are never deleted, even at zero quantity; the identity
// qty_received = qty_available + qty_sold + qty_written_off holds at all
// times.
type StockLot struct {
	ID            int64
	ProductID     int64
	LotNumber     string
	Expiry        *time.Time
	QtyReceived   float64
	QtyAvailable  float64
	QtySold       float64
	QtyWrittenOff float64
	UnitCost      float64
	ReceivedAt    time.Time
}

// Expired reports whether the lot is past expiry at the given time.
func (l StockLot) Expired(at time.Time) bool {
	return l.Expiry != nil && l.Expiry.Before(at)
}

// MovementDirection enumerates inventory movement directions.
type MovementDirection string

const (
	// DirectionIn records stock entering the pool.
	DirectionIn MovementDirection = "IN"
	// DirectionOut records stock leaving the pool.
	DirectionOut MovementDirection = "OUT"
)

// Movement is an immutable audit row. The sum of movements for a lot
// always equals received − available for that lot.
type Movement struct {
	ID        int64
	ProductID int64
	LotID     int64
	Direction MovementDirection
	Qty       float64
	RefModule string
	RefID     string
	Note      string
	PostedAt  time.Time
}

// Allocation is one (lot, quantity) slice of a fulfilled request.
type Allocation struct {
	LotID     int64
	LotNumber string
	Expiry    *time.Time
	Qty       float64
	UnitCost  float64
}

// InsufficientStockError reports a request that cannot be fully served.
// Partial allocation is never committed.
type InsufficientStockError struct {
	ProductID int64
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %.2f, available %.2f",
		e.ProductID, e.Requested, e.Available)
}

// Shortfall is the quantity that could not be covered.
func (e *InsufficientStockError) Shortfall() float64 {
	return e.Requested - e.Available
}

// ReceiptInput describes a goods receipt creating a new lot.
type ReceiptInput struct {
	ProductID int64      `validate:"required,gt=0"`
	LotNumber string     `validate:"required,max=64"`
	Qty       float64    `validate:"required,gt=0"`
	UnitCost  float64    `validate:"gte=0"`
	Expiry    *time.Time `validate:"omitempty"`
	RefID     string
	ActorID   int64
}

// WriteOffInput describes an expiry/damage write-off against a lot.
type WriteOffInput struct {
	LotID   int64   `validate:"required,gt=0"`
	Qty     float64 `validate:"required,gt=0"`
	Note    string  `validate:"max=500"`
	ActorID int64
}

// ExpiringLot is the near-expiry projection consumed by the scan job.
type ExpiringLot struct {
	LotID        int64
	ProductID    int64
	ProductCode  string
	LotNumber    string
	Expiry       time.Time
	QtyAvailable float64
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrLotNotFound indicates an unknown lot id.
var ErrLotNotFound = errors.New("inventory: lot not found")

// ErrWriteOffExceedsAvailable indicates a write-off larger than the
// lot's available quantity.
var ErrWriteOffExceedsAvailable = errors.New("inventory: write-off exceeds available quantity")
