package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"glidemoney/internal/core"
)

// PeriodSetAside estimates what to hold back from one pay period of income.
//
// Income tax uses the caller's effective rate instead of the brackets, which
// only make sense on annual figures. CPP is annualized with the cadence's
// periods per year and spread back over a single period.
func PeriodSetAside(income core.Money, profile core.UserMoneyConfig, t *RateTable) (core.SetAsides, error) {
	if income.IsNegative() {
		return core.SetAsides{}, fmt.Errorf("%w: negative period income %s", core.ErrInvalidAmount, income)
	}
	if err := profile.Cadence.Validate(); err != nil {
		return core.SetAsides{}, err
	}
	if profile.EffectiveTaxRate < 0 || profile.EffectiveTaxRate >= 1 {
		return core.SetAsides{}, fmt.Errorf("%w: effective tax rate %.4f", core.ErrInvalidMoneyConfig, profile.EffectiveTaxRate)
	}
	if err := t.Validate(); err != nil {
		return core.SetAsides{}, err
	}

	periods := decimal.NewFromInt(int64(profile.Cadence.PeriodsPerYear()))
	in := dec(income)

	ympe := decimal.NewFromFloat(t.CPP.YMPE)
	exemption := decimal.NewFromFloat(t.CPP.BasicExemption)
	pensionable := maxZero(decimal.Min(in.Mul(periods), ympe).Sub(exemption))

	s := core.SetAsides{
		CPP:       money(pensionable.Mul(decimal.NewFromFloat(t.CPP.Rate)).Div(periods)),
		IncomeTax: money(in.Mul(decimal.NewFromFloat(profile.EffectiveTaxRate))),
	}
	if profile.HSTRegistered {
		s.HSTRemit = money(in.Mul(decimal.NewFromFloat(t.HSTRate)))
	}
	s.Total = s.CPP.Add(s.IncomeTax).Add(s.HSTRemit)
	return s, nil
}

// Percent is the share of income a set-aside represents, rounded to a whole
// percent. Zero income yields zero.
func Percent(total, income core.Money) int {
	if income.Cents <= 0 {
		return 0
	}
	return int(dec(total).Div(dec(income)).Mul(hundred).Round(0).IntPart())
}

// Pace tracks year-to-date taxable sales against the small-supplier threshold.
type Pace struct {
	YTDTaxable   core.Money
	Threshold    core.Money
	Percent      int
	MustRegister bool
}

// HSTPace reports how close a non-registrant is to mandatory HST registration.
func HSTPace(ytdTaxable core.Money, t *RateTable) (Pace, error) {
	if ytdTaxable.IsNegative() {
		return Pace{}, fmt.Errorf("%w: negative year-to-date income", core.ErrInvalidAmount)
	}
	threshold := money(decimal.NewFromFloat(t.HSTThreshold))
	p := Pace{
		YTDTaxable:   ytdTaxable,
		Threshold:    threshold,
		MustRegister: threshold.Cents > 0 && ytdTaxable.Cents >= threshold.Cents,
	}
	if threshold.Cents > 0 {
		p.Percent = min(100, Percent(ytdTaxable, threshold))
	}
	return p, nil
}
