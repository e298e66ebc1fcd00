// Package tax splits taxable amounts into jurisdiction-appropriate
// components. Equal (or unknown) buyer/seller jurisdictions split the
// rate evenly into a central and a state component; differing
// jurisdictions levy a single integrated component.
package tax

import "math"

// Split carries the per-line tax components. Exactly one of the two
// groups is populated: Central+State for intra-jurisdiction supplies,
// Integrated for inter-jurisdiction supplies.
type Split struct {
	Central    float64
	State      float64
	Integrated float64
}

// Total returns the sum of all components.
func (s Split) Total() float64 {
	return Round2(s.Central + s.State + s.Integrated)
}

// Interstate reports whether the split was levied as a single
// integrated component.
func (s Split) Interstate() bool {
	return s.Integrated != 0
}

// ForSupply computes the tax split for a taxable amount. Jurisdiction
// codes are opaque strings; an empty buyer code defaults to the
// seller's jurisdiction. Rate range validation is the caller's concern,
// this function is total over its inputs.
func ForSupply(sellerJurisdiction, buyerJurisdiction string, taxable, rate float64) Split {
	if buyerJurisdiction == "" || buyerJurisdiction == sellerJurisdiction {
		// Half the levy on each local component. The full amount is
		// rounded first so the pair always reconciles with the line
		// total; an odd remainder lands on the central half.
		full := Round2(taxable * rate / 100)
		state := Round2(full / 2)
		return Split{Central: Round2(full - state), State: state}
	}
	return Split{Integrated: Round2(taxable * rate / 100)}
}

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// RoundInvoice rounds an invoice grand total to the nearest whole
// currency unit, returning the rounded total and the round-off delta
// (total − raw) that keeps debits and credits reconciled.
func RoundInvoice(raw float64) (total, roundOff float64) {
	total = math.Floor(raw + 0.5)
	roundOff = Round2(total - raw)
	return total, roundOff
}
