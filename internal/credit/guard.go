// Package credit enforces customer credit limits at order acceptance.
package credit

import "fmt"

// Terms describes how a customer settles invoices.
type Terms string

const (
	// TermsCash settles at delivery; the credit limit does not apply.
	TermsCash Terms = "CASH"
	// TermsCredit settles later against the customer's limit.
	TermsCredit Terms = "CREDIT"
)

// Profile is the slice of a customer the guard needs.
type Profile struct {
	CustomerID  int64
	Terms       Terms
	CreditLimit float64
	Outstanding float64
}

// LimitExceededError reports a rejected order with the figures that
// produced the decision.
type LimitExceededError struct {
	CustomerID  int64
	Limit       float64
	Outstanding float64
	Requested   float64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("credit: customer %d limit %.2f exceeded: outstanding %.2f + requested %.2f",
		e.CustomerID, e.Limit, e.Outstanding, e.Requested)
}

// Check approves the prospective total or returns *LimitExceededError.
// Cash terms bypass the limit entirely. A zero or unset limit means
// cash-only: any credit exposure is rejected.
//
// The check is advisory. It is not re-validated against other in-flight
// orders from the same customer; the accepted race is documented in the
// design notes.
func Check(p Profile, requested float64) error {
	if p.Terms == TermsCash {
		return nil
	}
	if p.Outstanding+requested <= p.CreditLimit {
		return nil
	}
	return &LimitExceededError{
		CustomerID:  p.CustomerID,
		Limit:       p.CreditLimit,
		Outstanding: p.Outstanding,
		Requested:   requested,
	}
}
