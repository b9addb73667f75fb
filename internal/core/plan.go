package core

import "time"

// Plan is the output of one Glide Guard run. It is recomputed on every run
// and is never the source of truth for anything.
type Plan struct {
	AsOf            time.Time
	SetAsides       SetAsides
	AvailableBudget Money
	Slices          []PaymentSlice
}

// Empty reports that no payment is recommended. This is a valid outcome,
// not a failure.
func (p Plan) Empty() bool {
	return len(p.Slices) == 0
}

// Allocated sums every slice amount.
func (p Plan) Allocated() Money {
	var total Money
	for _, s := range p.Slices {
		total = total.Add(s.Amount)
	}
	return total
}

// SliceFor returns the slice for a card, if the plan pays it.
func (p Plan) SliceFor(cardID string) (PaymentSlice, bool) {
	for _, s := range p.Slices {
		if s.CardID == cardID {
			return s, true
		}
	}
	return PaymentSlice{}, false
}
