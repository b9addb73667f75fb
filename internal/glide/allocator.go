// Package glide plans credit card payments that keep each card's
// utilization under a target before its statement closes.
package glide

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"glidemoney/internal/core"
	"glidemoney/internal/tax"
)

// DefaultPostingBufferDays is how many business days a payment needs to post
// when the card's close date is unknown.
const DefaultPostingBufferDays = 2

type Options struct {
	PostingBufferDays int
}

func (o Options) bufferDays() int {
	if o.PostingBufferDays <= 0 {
		return DefaultPostingBufferDays
	}
	return o.PostingBufferDays
}

// PlanInput is one consistent snapshot of everything a run reads.
type PlanInput struct {
	Cards        []core.CardProfile
	Config       core.UserMoneyConfig
	Bills        []core.Bill
	PeriodIncome core.Money
}

// Gap is how far a card's posted balance sits above target*limit, in cents.
func Gap(c core.CardProfile, target float64) core.Money {
	threshold := decimal.NewFromFloat(target).Mul(decimal.NewFromInt(c.Limit.Cents)).Round(0).IntPart()
	return core.Money{Cents: c.PostedBalance.Cents - threshold}.NonNegative()
}

// AvailableBudget is what is left for card payments after set-asides, bills
// and the cushion. Never negative.
func AvailableBudget(income core.Money, setAsides core.SetAsides, bills []core.Bill, cushion core.Money) core.Money {
	return income.Sub(setAsides.Total).Sub(core.TotalBills(bills)).Sub(cushion).NonNegative()
}

type gapEntry struct {
	state CardState
	gap   core.Money
}

// ComputePlan splits the period's spare money across cards in proportion to
// how far each is above target. An empty plan is a valid result.
//
// Amounts are whole cents. Each one is at most its card's gap, their sum is
// at most the available budget, and each differs from its exact proportional
// share by less than a cent.
func ComputePlan(in PlanInput, rates *tax.RateTable, now time.Time, opts Options) (core.Plan, error) {
	if err := in.Config.Validate(); err != nil {
		return core.Plan{}, err
	}
	for _, c := range in.Cards {
		if err := c.Validate(); err != nil {
			return core.Plan{}, err
		}
	}
	for _, b := range in.Bills {
		if err := b.Validate(); err != nil {
			return core.Plan{}, err
		}
	}

	if rates != nil && rates.Jurisdiction != in.Config.Jurisdiction {
		return core.Plan{}, fmt.Errorf("%w: rate table is for %q, profile is in %q",
			core.ErrUnsupportedJurisdiction, rates.Jurisdiction, in.Config.Jurisdiction)
	}

	setAsides, err := tax.PeriodSetAside(in.PeriodIncome, in.Config, rates)
	if err != nil {
		return core.Plan{}, fmt.Errorf("period set-aside: %w", err)
	}

	plan := core.Plan{
		AsOf:            now,
		SetAsides:       setAsides,
		AvailableBudget: AvailableBudget(in.PeriodIncome, setAsides, in.Bills, in.Config.Cushion),
	}
	if plan.AvailableBudget.Cents <= 0 {
		return plan, nil
	}

	var entries []gapEntry
	for _, c := range in.Cards {
		target := c.TargetFor(in.Config.TargetUtilization)
		g := Gap(c, target)
		if g.Cents == 0 {
			continue
		}
		entries = append(entries, gapEntry{state: CardState{CardProfile: c, Target: target, Pay: g}, gap: g})
	}
	if len(entries) == 0 {
		return plan, nil
	}
	slices.SortStableFunc(entries, func(a, b gapEntry) int { return CompareCards(a.state, b.state, now) })

	gaps := make([]int64, len(entries))
	for i, e := range entries {
		gaps[i] = e.gap.Cents
	}
	amounts := apportion(gaps, plan.AvailableBudget.Cents)

	for i, e := range entries {
		if amounts[i] <= 0 {
			continue
		}
		plan.Slices = append(plan.Slices, core.PaymentSlice{
			CardID:    e.state.ID,
			CardName:  displayName(e.state.CardProfile),
			Amount:    core.Money{Cents: amounts[i]},
			SafeBy:    SafeBy(e.state.CardProfile, now, opts),
			Rationale: rationale(e.state, e.gap),
		})
	}
	return plan, nil
}

// apportion splits budget across gaps with the largest remainder method.
// Earlier entries win ties for the leftover cents.
func apportion(gaps []int64, budget int64) []int64 {
	out := make([]int64, len(gaps))
	var total int64
	for _, g := range gaps {
		total += g
	}
	if total <= budget {
		copy(out, gaps)
		return out
	}

	type rem struct {
		idx int
		r   decimal.Decimal
	}
	rems := make([]rem, len(gaps))
	b := decimal.NewFromInt(budget)
	t := decimal.NewFromInt(total)
	var assigned int64
	for i, g := range gaps {
		q, r := decimal.NewFromInt(g).Mul(b).QuoRem(t, 0)
		out[i] = q.IntPart()
		assigned += out[i]
		rems[i] = rem{idx: i, r: r}
	}

	// The leftover is smaller than the number of non-zero remainders.
	slices.SortStableFunc(rems, func(x, y rem) int { return y.r.Cmp(x.r) })
	for i := int64(0); i < budget-assigned; i++ {
		out[rems[i].idx]++
	}
	return out
}

// SafeBy is the latest moment a payment can start and still post before the
// statement closes. With a known close date that is the close date less the
// card's posting delay, otherwise now plus the posting buffer. Both count
// business days and never fall before now.
func SafeBy(c core.CardProfile, now time.Time, opts Options) time.Time {
	if c.NextCloseDate.IsZero() {
		return addBusinessDays(now, opts.bufferDays())
	}
	safe := addBusinessDays(c.NextCloseDate, -c.PostingDelayDays)
	if safe.Before(now) {
		return now
	}
	return safe
}

func addBusinessDays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

func displayName(c core.CardProfile) string {
	return cmp.Or(c.Name, c.Institution, "Card")
}

func rationale(c CardState, gap core.Money) string {
	return fmt.Sprintf("Limit %s • Target %d%% • Gap %s", c.Limit, TargetPercent(c), gap)
}
