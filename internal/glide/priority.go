package glide

import (
	"cmp"
	"math"
	"slices"
	"time"

	"glidemoney/internal/core"
)

// ActionQueueSize caps how many follow-up cards are surfaced after the top action.
const ActionQueueSize = 3

type Status string

const (
	StatusOK     Status = "OK"
	StatusPay    Status = "PAY"
	StatusUrgent Status = "URGENT"
)

// CardState is a card as the ranking sees it: the profile, the target it is
// steered toward, the payment recommended this period, and whether the user
// pinned it as the top action.
type CardState struct {
	core.CardProfile
	Target    float64
	Pay       core.Money
	TopAction bool
}

// States pairs each card with its slice from plan. Cards without a slice get
// a zero payment. target applies to cards without their own.
func States(cards []core.CardProfile, target float64, plan core.Plan) []CardState {
	out := make([]CardState, 0, len(cards))
	for _, c := range cards {
		s := CardState{CardProfile: c, Target: c.TargetFor(target)}
		if slice, ok := plan.SliceFor(c.ID); ok {
			s.Pay = slice.Amount
		}
		out = append(out, s)
	}
	return out
}

// UtilizationPercent is posted/limit as a whole percent, never negative.
func UtilizationPercent(c CardState) int {
	if c.Limit.Cents <= 0 {
		return 0
	}
	return max(0, int(math.Round(float64(c.PostedBalance.Cents)/float64(c.Limit.Cents)*100)))
}

func TargetPercent(c CardState) int {
	return int(math.Round(c.Target * 100))
}

// OverTargetPercent is how many points utilization sits above target, floored at zero.
func OverTargetPercent(c CardState) int {
	return max(0, UtilizationPercent(c)-TargetPercent(c))
}

// GapToTarget is the balance above the target threshold.
func GapToTarget(c CardState) core.Money {
	return Gap(c.CardProfile, c.Target)
}

// NeedsPayment is true when a payment is recommended and the card is over target.
func NeedsPayment(c CardState) bool {
	return c.Pay.Cents > 0 && UtilizationPercent(c) > TargetPercent(c)
}

func IsHealthy(c CardState) bool {
	return c.Pay.IsZero() || UtilizationPercent(c) <= TargetPercent(c)
}

// DaysToClose returns whole days until the statement closes, rounded up.
// ok is false when the close date is unknown.
func DaysToClose(c CardState, now time.Time) (days int, ok bool) {
	if c.NextCloseDate.IsZero() {
		return 0, false
	}
	d := c.NextCloseDate.Sub(now).Hours() / 24
	return int(math.Ceil(d)), true
}

func CardStatus(c CardState, now time.Time) Status {
	if !NeedsPayment(c) {
		return StatusOK
	}
	if days, ok := DaysToClose(c, now); ok && days <= 1 {
		return StatusUrgent
	}
	return StatusPay
}

// CompareCards orders cards by urgency: soonest close first (unknown last),
// then most over target, then highest APR, then smallest limit.
func CompareCards(a, b CardState, now time.Time) int {
	da, okA := DaysToClose(a, now)
	db, okB := DaysToClose(b, now)
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && da != db:
		return cmp.Compare(da, db)
	}

	overA := UtilizationPercent(a) - TargetPercent(a)
	overB := UtilizationPercent(b) - TargetPercent(b)
	if overA != overB {
		return cmp.Compare(overB, overA)
	}
	if a.APR != b.APR {
		return cmp.Compare(b.APR, a.APR)
	}
	return cmp.Compare(a.Limit.Cents, b.Limit.Cents)
}

// SortCards returns a ranked copy of cards. Equal cards keep their input order.
func SortCards(cards []CardState, now time.Time) []CardState {
	out := slices.Clone(cards)
	slices.SortStableFunc(out, func(a, b CardState) int { return CompareCards(a, b, now) })
	return out
}

// TopAction picks the card to act on first. A pinned card wins, otherwise
// the highest ranked card that needs payment. ok is false when nothing
// needs doing.
func TopAction(cards []CardState, now time.Time) (CardState, bool) {
	ranked := SortCards(cards, now)
	for _, c := range ranked {
		if c.TopAction {
			return c, true
		}
	}
	for _, c := range ranked {
		if NeedsPayment(c) {
			return c, true
		}
	}
	return CardState{}, false
}

// ActionQueue lists the next cards needing payment after the top action.
func ActionQueue(cards []CardState, now time.Time) []CardState {
	top, hasTop := TopAction(cards, now)
	queue := make([]CardState, 0, ActionQueueSize)
	for _, c := range SortCards(cards, now) {
		if len(queue) == ActionQueueSize {
			break
		}
		if c.TopAction || (hasTop && c.ID == top.ID) || !NeedsPayment(c) {
			continue
		}
		queue = append(queue, c)
	}
	return queue
}
