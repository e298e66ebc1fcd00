package customers

import (
	"errors"
	"time"

	"github.com/medilink-erp/medilink-erp/internal/credit"
)

// Customer is the buyer master record consumed by the order workflow.
type Customer struct {
	ID           int64
	Code         string
	Name         string
	Jurisdiction string
	Terms        credit.Terms
	CreditLimit  float64
	Outstanding  float64
	Active       bool
	Blacklisted  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreditProfile projects the customer onto the credit guard input.
func (c Customer) CreditProfile() credit.Profile {
	return credit.Profile{
		CustomerID:  c.ID,
		Terms:       c.Terms,
		CreditLimit: c.CreditLimit,
		Outstanding: c.Outstanding,
	}
}

var (
	// ErrNotFound indicates an unknown customer id.
	ErrNotFound = errors.New("customers: not found")
	// ErrInactive indicates a deactivated customer.
	ErrInactive = errors.New("customers: inactive")
	// ErrBlacklisted indicates a blocked customer.
	ErrBlacklisted = errors.New("customers: blacklisted")
)

// Validate applies the order-acceptance gate: the customer must exist,
// be active and not blacklisted before anything else runs.
func (c Customer) Validate() error {
	if !c.Active {
		return ErrInactive
	}
	if c.Blacklisted {
		return ErrBlacklisted
	}
	return nil
}
