package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly   Cadence = "weekly"
	BiWeekly Cadence = "bi-weekly"
	Monthly  Cadence = "monthly"
)

type (
	Cadence string

	// Jurisdiction is a two-letter Canadian province or territory code.
	Jurisdiction string

	Money struct {
		Cents int64
	}

	IncomeItem struct {
		Gross         Money
		HSTRegistered bool
		ReceivedAt    time.Time // optional, used only for period views
		Source        string    // platform or payer, descriptive
	}

	CardProfile struct {
		ID            string
		Name          string
		Institution   string
		Limit         Money
		PostedBalance Money
		APR           float64 // percent, e.g. 19.99

		// TargetUtilization overrides the user's target for this card when set.
		TargetUtilization float64

		// Optional machine fields supplied by the card-profile store when known.
		NextCloseDate    time.Time
		PostingDelayDays int
	}

	Bill struct {
		ID      string
		Name    string
		Amount  Money
		DueDate time.Time
	}

	UserMoneyConfig struct {
		TargetUtilization float64 // fraction in (0,1]
		Cushion           Money
		Cadence           Cadence
		Jurisdiction      Jurisdiction
		EffectiveTaxRate  float64 // fraction in [0,1)
		HSTRegistered     bool
	}

	SetAsides struct {
		CPP       Money
		IncomeTax Money
		HSTRemit  Money
		Total     Money
	}

	PaymentSlice struct {
		CardID    string
		CardName  string
		Amount    Money
		SafeBy    time.Time
		Rationale string
	}

	// Snapshot is one consistent read of every collaborator for a single run.
	Snapshot struct {
		UserID       string
		Profile      UserMoneyConfig
		Cards        []CardProfile
		Bills        []Bill
		Income       []IncomeItem
		PeriodIncome Money
	}
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidAmount           = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrInvalidCardProfile      = fmt.Errorf("%w: invalid card profile", ErrInvalidInput)
	ErrInvalidRateTable        = fmt.Errorf("%w: invalid rate table", ErrInvalidInput)
	ErrInvalidMoneyConfig      = fmt.Errorf("%w: invalid money config", ErrInvalidInput)
	ErrUnsupportedJurisdiction = errors.New("unsupported jurisdiction")
	ErrMissingJurisdiction     = fmt.Errorf("%w: jurisdiction is required", ErrUnsupportedJurisdiction)
)

var jurisdictions = map[Jurisdiction]string{
	"AB": "Alberta",
	"BC": "British Columbia",
	"MB": "Manitoba",
	"NB": "New Brunswick",
	"NL": "Newfoundland and Labrador",
	"NS": "Nova Scotia",
	"NT": "Northwest Territories",
	"NU": "Nunavut",
	"ON": "Ontario",
	"PE": "Prince Edward Island",
	"QC": "Quebec",
	"SK": "Saskatchewan",
	"YT": "Yukon",
}

// ParseJurisdiction normalizes a province code. An empty code is an error,
// there is no default province.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", ErrMissingJurisdiction
	}
	j := Jurisdiction(s)
	if _, ok := jurisdictions[j]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedJurisdiction, s)
	}
	return j, nil
}

// Name returns the province or territory name, or the raw code when unknown.
func (j Jurisdiction) Name() string {
	if n, ok := jurisdictions[j]; ok {
		return n
	}
	return string(j)
}

// PeriodsPerYear returns how many income periods of this cadence fit in a year.
func (c Cadence) PeriodsPerYear() int {
	switch c {
	case BiWeekly:
		return 26
	case Monthly:
		return 12
	default:
		return 52
	}
}

func (c Cadence) Validate() error {
	switch c {
	case Weekly, BiWeekly, Monthly:
		return nil
	default:
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidMoneyConfig, c)
	}
}

func (i IncomeItem) Validate() error {
	if i.Gross.IsNegative() {
		return fmt.Errorf("%w: negative gross %s", ErrInvalidAmount, i.Gross)
	}
	return nil
}

func (c CardProfile) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCardProfile)
	}
	if c.Limit.Cents <= 0 {
		return fmt.Errorf("%w: card %s has non-positive limit %s", ErrInvalidCardProfile, c.ID, c.Limit)
	}
	if c.PostedBalance.IsNegative() {
		return fmt.Errorf("%w: card %s has negative posted balance", ErrInvalidCardProfile, c.ID)
	}
	if c.APR < 0 {
		return fmt.Errorf("%w: card %s has negative APR", ErrInvalidCardProfile, c.ID)
	}
	if c.TargetUtilization < 0 || c.TargetUtilization > 1 {
		return fmt.Errorf("%w: card %s has target %.4f outside [0,1]", ErrInvalidCardProfile, c.ID, c.TargetUtilization)
	}
	if c.PostingDelayDays < 0 {
		return fmt.Errorf("%w: card %s has negative posting delay", ErrInvalidCardProfile, c.ID)
	}
	return nil
}

// TargetFor returns the card's own target, or fallback when it has none.
func (c CardProfile) TargetFor(fallback float64) float64 {
	if c.TargetUtilization > 0 {
		return c.TargetUtilization
	}
	return fallback
}

func (b Bill) Validate() error {
	if b.Amount.IsNegative() {
		return fmt.Errorf("%w: bill %q has negative amount", ErrInvalidAmount, b.Name)
	}
	return nil
}

// Validate applies the range checks for user-supplied money settings.
func (u UserMoneyConfig) Validate() error {
	if u.TargetUtilization <= 0 || u.TargetUtilization > 1 {
		return fmt.Errorf("%w: target utilization %.4f must be in (0,1]", ErrInvalidMoneyConfig, u.TargetUtilization)
	}
	if u.Cushion.IsNegative() {
		return fmt.Errorf("%w: negative cushion", ErrInvalidMoneyConfig)
	}
	if u.EffectiveTaxRate < 0 || u.EffectiveTaxRate >= 1 {
		return fmt.Errorf("%w: effective tax rate %.4f must be in [0,1)", ErrInvalidMoneyConfig, u.EffectiveTaxRate)
	}
	if err := u.Cadence.Validate(); err != nil {
		return err
	}
	if u.Jurisdiction == "" {
		return ErrMissingJurisdiction
	}
	return nil
}

// IsZero reports whether nothing needs to be set aside.
func (s SetAsides) IsZero() bool {
	return s.CPP.IsZero() && s.IncomeTax.IsZero() && s.HSTRemit.IsZero() && s.Total.IsZero()
}

// TotalIncome sums the gross of every item without validating it.
func TotalIncome(items []IncomeItem) Money {
	var total Money
	for _, it := range items {
		total = total.Add(it.Gross)
	}
	return total
}

// TotalBills sums the amount of every bill.
func TotalBills(bills []Bill) Money {
	var total Money
	for _, b := range bills {
		total = total.Add(b.Amount)
	}
	return total
}
