package products

import (
	"errors"
	"time"
)

// Product is the immutable (within one order) pricing and tax master.
type Product struct {
	ID        int64
	Code      string
	Name      string
	UOM       string
	ListPrice float64
	TaxRate   float64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound indicates an unknown product id.
var ErrNotFound = errors.New("products: not found")

// ErrInvalidTaxRate indicates a tax rate outside [0, 100].
var ErrInvalidTaxRate = errors.New("products: tax rate out of range")

// ValidateTaxRate gates out-of-range rates before they reach the tax
// engine, which is total over well-typed input.
func (p Product) ValidateTaxRate() error {
	if p.TaxRate < 0 || p.TaxRate > 100 {
		return ErrInvalidTaxRate
	}
	return nil
}
