// Package report renders planning results as JSON-friendly views shared by
// the command line and the plan API. Amounts are dollars, dates are
// calendar days.
package report

import (
	"time"

	"glidemoney/internal/core"
	"glidemoney/internal/glide"
	"glidemoney/internal/period"
	"glidemoney/internal/services"
	"glidemoney/internal/tax"
)

const DateLayout = "2006-01-02"

type (
	SetAside struct {
		CPP       float64 `json:"cpp"`
		IncomeTax float64 `json:"income_tax"`
		HSTRemit  float64 `json:"hst_remit"`
		Total     float64 `json:"total"`
		Percent   int     `json:"percent,omitempty"`
	}

	Pace struct {
		YTDTaxable   float64 `json:"ytd_taxable"`
		Threshold    float64 `json:"threshold"`
		Percent      int     `json:"percent"`
		MustRegister bool    `json:"must_register"`
	}

	Slice struct {
		CardID    string  `json:"card_id"`
		CardName  string  `json:"card_name,omitempty"`
		Amount    float64 `json:"amount"`
		SafeBy    string  `json:"safe_by"`
		Rationale string  `json:"rationale"`
	}

	// Plan is one run's output. A plan read back from the cache carries no
	// snapshot, so the income, bill, year-to-date and pace fields are absent.
	Plan struct {
		User            string    `json:"user"`
		AsOf            string    `json:"as_of"`
		TaxYear         int       `json:"tax_year,omitempty"`
		PeriodIncome    float64   `json:"period_income,omitempty"`
		SetAside        SetAside  `json:"set_aside"`
		Bills           float64   `json:"bills,omitempty"`
		AvailableBudget float64   `json:"available_budget"`
		Slices          []Slice   `json:"slices"`
		YearToDate      *SetAside `json:"year_to_date,omitempty"`
		HSTPace         *Pace     `json:"hst_pace,omitempty"`
		TopAction       string    `json:"top_action,omitempty"`
	}

	Card struct {
		ID          string  `json:"id"`
		Name        string  `json:"name,omitempty"`
		Status      string  `json:"status"`
		Utilization int     `json:"utilization_percent"`
		Target      int     `json:"target_percent"`
		OverTarget  int     `json:"over_target_percent"`
		Gap         float64 `json:"gap"`
		Pay         float64 `json:"pay"`
		DaysToClose *int    `json:"days_to_close,omitempty"`
		Top         bool    `json:"top"`
		Queued      bool    `json:"queued"`
	}

	Bucket struct {
		Key   string  `json:"key"`
		Total float64 `json:"total"`
	}
)

// SetAsides renders s, with its share of income when income is positive.
func SetAsides(s core.SetAsides, income core.Money) SetAside {
	v := SetAside{
		CPP:       s.CPP.Float(),
		IncomeTax: s.IncomeTax.Float(),
		HSTRemit:  s.HSTRemit.Float(),
		Total:     s.Total.Float(),
	}
	if income.Cents > 0 {
		v.Percent = tax.Percent(s.Total, income)
	}
	return v
}

func PaceOf(p tax.Pace) Pace {
	return Pace{YTDTaxable: p.YTDTaxable.Float(), Threshold: p.Threshold.Float(), Percent: p.Percent, MustRegister: p.MustRegister}
}

func slices(in []core.PaymentSlice) []Slice {
	out := make([]Slice, 0, len(in))
	for _, s := range in {
		out = append(out, Slice{
			CardID:    s.CardID,
			CardName:  s.CardName,
			Amount:    s.Amount.Float(),
			SafeBy:    s.SafeBy.Format(DateLayout),
			Rationale: s.Rationale,
		})
	}
	return out
}

// PlanOf renders a full run computed against the year's rate table.
func PlanOf(r *services.PlanResult, year int) Plan {
	ytd := SetAsides(r.YearToDate, core.Money{})
	pace := PaceOf(r.HSTPace)
	v := Plan{
		User:            r.UserID,
		AsOf:            r.Plan.AsOf.Format(DateLayout),
		TaxYear:         year,
		PeriodIncome:    r.Snapshot.PeriodIncome.Float(),
		SetAside:        SetAsides(r.Plan.SetAsides, r.Snapshot.PeriodIncome),
		Bills:           core.TotalBills(r.Snapshot.Bills).Float(),
		AvailableBudget: r.Plan.AvailableBudget.Float(),
		Slices:          slices(r.Plan.Slices),
		YearToDate:      &ytd,
		HSTPace:         &pace,
	}
	if r.HasTop {
		v.TopAction = r.Top.ID
	}
	return v
}

// CachedPlan renders a plan read back without its snapshot.
func CachedPlan(userID string, p core.Plan) Plan {
	return Plan{
		User:            userID,
		AsOf:            p.AsOf.Format(DateLayout),
		SetAside:        SetAsides(p.SetAsides, core.Money{}),
		AvailableBudget: p.AvailableBudget.Float(),
		Slices:          slices(p.Slices),
	}
}

// Cards renders the ranked cards, flagging the top action and queued cards.
func Cards(r *services.PlanResult, now time.Time) []Card {
	queued := make(map[string]bool, len(r.Queue))
	for _, c := range r.Queue {
		queued[c.ID] = true
	}
	out := make([]Card, 0, len(r.Ranked))
	for _, c := range r.Ranked {
		v := Card{
			ID:          c.ID,
			Name:        c.Name,
			Status:      string(glide.CardStatus(c, now)),
			Utilization: glide.UtilizationPercent(c),
			Target:      glide.TargetPercent(c),
			OverTarget:  glide.OverTargetPercent(c),
			Gap:         glide.GapToTarget(c).Float(),
			Pay:         c.Pay.Float(),
			Top:         r.HasTop && r.Top.ID == c.ID,
			Queued:      queued[c.ID],
		}
		if days, ok := glide.DaysToClose(c, now); ok {
			v.DaysToClose = &days
		}
		out = append(out, v)
	}
	return out
}

func Buckets(buckets []period.Bucket) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, Bucket{Key: b.Key, Total: b.Total.Float()})
	}
	return out
}
