// Package tax turns gig income into the amounts a self-employed Canadian
// should set aside for CPP, income tax and HST remittance.
//
// All functions are pure. Arithmetic is done in decimal and every returned
// amount is rounded to the cent.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"glidemoney/internal/core"
)

var hundred = decimal.NewFromInt(100)

func dec(m core.Money) decimal.Decimal { return decimal.New(m.Cents, -2) }

func money(d decimal.Decimal) core.Money {
	return core.Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ProgressiveTax taxes each slice of income at its own bracket rate.
func ProgressiveTax(taxable decimal.Decimal, brackets []Bracket) decimal.Decimal {
	tax := decimal.Zero
	last := decimal.Zero
	for _, b := range brackets {
		if b.UpTo == nil {
			tax = tax.Add(maxZero(taxable.Sub(last)).Mul(decimal.NewFromFloat(b.Rate)))
			break
		}
		limit := decimal.NewFromFloat(*b.UpTo)
		slice := maxZero(decimal.Min(taxable, limit).Sub(last))
		tax = tax.Add(slice.Mul(decimal.NewFromFloat(b.Rate)))
		last = limit
		if taxable.LessThanOrEqual(limit) {
			break
		}
	}
	return tax
}

// CPP returns the contribution owed on gross, floored at zero below the
// basic exemption.
func CPP(gross core.Money, t *RateTable) core.Money {
	ympe := decimal.NewFromFloat(t.CPP.YMPE)
	exemption := decimal.NewFromFloat(t.CPP.BasicExemption)
	pensionable := maxZero(decimal.Min(dec(gross), ympe).Sub(exemption))
	return money(pensionable.Mul(decimal.NewFromFloat(t.CPP.Rate)))
}

// IncomeTax applies the federal and provincial schedules after their basic
// credits, less a CPP credit capped at CPPCreditCap. Never negative.
func IncomeTax(gross, cpp core.Money, t *RateTable) core.Money {
	g := dec(gross)
	fed := ProgressiveTax(maxZero(g.Sub(decimal.NewFromFloat(t.FederalBasicCredit))), t.FederalBrackets)
	prov := ProgressiveTax(maxZero(g.Sub(decimal.NewFromFloat(t.ProvincialBasicCredit))), t.ProvincialBrackets)
	credit := decimal.Min(dec(cpp), decimal.NewFromFloat(t.CPPCreditCap))
	return money(maxZero(fed.Add(prov).Sub(credit)))
}

// HSTRemit charges the flat rate on registered items only.
func HSTRemit(items []core.IncomeItem, t *RateTable) core.Money {
	var registered core.Money
	for _, it := range items {
		if it.HSTRegistered {
			registered = registered.Add(it.Gross)
		}
	}
	return money(dec(registered).Mul(decimal.NewFromFloat(t.HSTRate)))
}

// ComputeSetAsides sums the income of a period and derives every set-aside.
// Negative gross amounts are rejected, not clamped.
func ComputeSetAsides(items []core.IncomeItem, t *RateTable) (core.SetAsides, error) {
	if err := t.Validate(); err != nil {
		return core.SetAsides{}, err
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return core.SetAsides{}, fmt.Errorf("income item %d: %w", i, err)
		}
	}

	gross := core.TotalIncome(items)
	cpp := CPP(gross, t)
	s := core.SetAsides{
		CPP:       cpp,
		IncomeTax: IncomeTax(gross, cpp, t),
		HSTRemit:  HSTRemit(items, t),
	}
	s.Total = s.CPP.Add(s.IncomeTax).Add(s.HSTRemit)
	return s, nil
}
