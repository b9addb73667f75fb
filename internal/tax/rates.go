package tax

import (
	"fmt"
	"slices"

	"glidemoney/internal/core"
)

// Bracket is one step of a progressive schedule. A nil UpTo marks the
// unbounded top bracket.
type Bracket struct {
	UpTo *float64 `yaml:"up_to"`
	Rate float64  `yaml:"rate"`
}

type CPPRates struct {
	Rate           float64 `yaml:"rate"`
	YMPE           float64 `yaml:"ympe"`
	BasicExemption float64 `yaml:"basic_exemption"`
}

// RateTable is the resolved federal plus provincial configuration for one
// jurisdiction and tax year. It is read-only once handed out.
type RateTable struct {
	Year                  int
	Jurisdiction          core.Jurisdiction
	CPP                   CPPRates
	CPPCreditCap          float64
	HSTThreshold          float64
	HSTRate               float64
	FederalBasicCredit    float64
	ProvincialBasicCredit float64
	FederalBrackets       []Bracket
	ProvincialBrackets    []Bracket
}

// Capped returns a bounded bracket.
func Capped(upTo, rate float64) Bracket {
	return Bracket{UpTo: &upTo, Rate: rate}
}

// Top returns the unbounded bracket.
func Top(rate float64) Bracket {
	return Bracket{Rate: rate}
}

// yearFile is the on-disk layout of rates/<year>.yaml.
type yearFile struct {
	Year         int                              `yaml:"year"`
	CPP          CPPRates                         `yaml:"cpp"`
	CPPCreditCap float64                          `yaml:"cpp_credit_cap"`
	HSTThreshold float64                          `yaml:"hst_threshold"`
	Federal      schedule                         `yaml:"federal"`
	Provinces    map[core.Jurisdiction]provincial `yaml:"provinces"`
}

type schedule struct {
	BasicCredit float64   `yaml:"basic_credit"`
	Brackets    []Bracket `yaml:"brackets"`
}

type provincial struct {
	BasicCredit float64   `yaml:"basic_credit"`
	HSTRate     float64   `yaml:"hst_rate"`
	Brackets    []Bracket `yaml:"brackets"`
}

func (f *yearFile) table(j core.Jurisdiction) (*RateTable, error) {
	p, ok := f.Provinces[j]
	if !ok {
		return nil, fmt.Errorf("%w: no %d rates for %s", core.ErrUnsupportedJurisdiction, f.Year, j)
	}
	t := &RateTable{
		Year:                  f.Year,
		Jurisdiction:          j,
		CPP:                   f.CPP,
		CPPCreditCap:          f.CPPCreditCap,
		HSTThreshold:          f.HSTThreshold,
		HSTRate:               p.HSTRate,
		FederalBasicCredit:    f.Federal.BasicCredit,
		ProvincialBasicCredit: p.BasicCredit,
		FederalBrackets:       cloneBrackets(f.Federal.Brackets),
		ProvincialBrackets:    cloneBrackets(p.Brackets),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// cloneBrackets copies bs including each UpTo, so tables never share
// memory with the cached year file.
func cloneBrackets(bs []Bracket) []Bracket {
	out := slices.Clone(bs)
	for i, b := range out {
		if b.UpTo != nil {
			v := *b.UpTo
			out[i].UpTo = &v
		}
	}
	return out
}

// Validate checks the structural invariants the engine relies on.
func (t *RateTable) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", core.ErrInvalidRateTable)
	}
	if err := validateBrackets("federal", t.FederalBrackets); err != nil {
		return err
	}
	if err := validateBrackets("provincial", t.ProvincialBrackets); err != nil {
		return err
	}
	if !isRate(t.CPP.Rate) || t.CPP.BasicExemption < 0 || t.CPP.YMPE <= t.CPP.BasicExemption {
		return fmt.Errorf("%w: cpp rate %.4f, ympe %.2f, exemption %.2f", core.ErrInvalidRateTable, t.CPP.Rate, t.CPP.YMPE, t.CPP.BasicExemption)
	}
	if !isRate(t.HSTRate) {
		return fmt.Errorf("%w: hst rate %.4f", core.ErrInvalidRateTable, t.HSTRate)
	}
	if t.FederalBasicCredit < 0 || t.ProvincialBasicCredit < 0 || t.CPPCreditCap < 0 || t.HSTThreshold < 0 {
		return fmt.Errorf("%w: negative credit, cap or threshold", core.ErrInvalidRateTable)
	}
	return nil
}

func validateBrackets(name string, bs []Bracket) error {
	if len(bs) == 0 {
		return fmt.Errorf("%w: %s brackets are empty", core.ErrInvalidRateTable, name)
	}
	last := 0.0
	for i, b := range bs {
		if !isRate(b.Rate) {
			return fmt.Errorf("%w: %s bracket %d has rate %.4f", core.ErrInvalidRateTable, name, i, b.Rate)
		}
		if b.UpTo == nil {
			if i != len(bs)-1 {
				return fmt.Errorf("%w: %s bracket %d is unbounded but not last", core.ErrInvalidRateTable, name, i)
			}
			return nil
		}
		if *b.UpTo <= last {
			return fmt.Errorf("%w: %s brackets not ascending at %d", core.ErrInvalidRateTable, name, i)
		}
		last = *b.UpTo
	}
	return fmt.Errorf("%w: %s top bracket must be unbounded", core.ErrInvalidRateTable, name)
}

func isRate(r float64) bool { return r >= 0 && r < 1 }
