package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glidemoney/internal/core"
	"glidemoney/internal/glide"
	"glidemoney/internal/period"
	"glidemoney/internal/services"
	"glidemoney/internal/tax"
)

var asOf = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)

func samplePlan() core.Plan {
	return core.Plan{
		AsOf:            asOf,
		SetAsides:       core.SetAsides{CPP: core.Money{Cents: 5000}, IncomeTax: core.Money{Cents: 10886}, Total: core.Money{Cents: 15886}},
		AvailableBudget: core.Money{Cents: 42114},
		Slices: []core.PaymentSlice{{
			CardID: "A", CardName: "TD Visa", Amount: core.Money{Cents: 42114},
			SafeBy: time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC), Rationale: "closes first",
		}},
	}
}

func sampleResult() *services.PlanResult {
	card := glide.CardState{
		CardProfile: core.CardProfile{ID: "A", Name: "TD Visa", Limit: core.Money{Cents: 100000}, PostedBalance: core.Money{Cents: 60000}},
		Target:      0.3,
		Pay:         core.Money{Cents: 42114},
	}
	other := glide.CardState{
		CardProfile: core.CardProfile{ID: "B", Limit: core.Money{Cents: 100000}, PostedBalance: core.Money{Cents: 10000}},
		Target:      0.3,
	}
	return &services.PlanResult{
		UserID: "alex",
		Snapshot: core.Snapshot{
			UserID:       "alex",
			PeriodIncome: core.Money{Cents: 68000},
			Bills:        []core.Bill{{Name: "rent", Amount: core.Money{Cents: 0}}},
		},
		Plan:       samplePlan(),
		YearToDate: core.SetAsides{Total: core.Money{Cents: 39245}},
		HSTPace:    tax.Pace{YTDTaxable: core.Money{Cents: 168000}, Threshold: core.Money{Cents: 3000000}, Percent: 6},
		Ranked:     []glide.CardState{card, other},
		Top:        card,
		HasTop:     true,
		Queue:      []glide.CardState{card},
	}
}

func TestPlanOf(t *testing.T) {
	v := PlanOf(sampleResult(), 2024)

	assert.Equal(t, "alex", v.User)
	assert.Equal(t, "2024-05-15", v.AsOf)
	assert.Equal(t, 2024, v.TaxYear)
	assert.Equal(t, 680.0, v.PeriodIncome)
	assert.Equal(t, 158.86, v.SetAside.Total)
	assert.Equal(t, 23, v.SetAside.Percent)
	assert.Equal(t, 421.14, v.AvailableBudget)
	require.Len(t, v.Slices, 1)
	assert.Equal(t, Slice{CardID: "A", CardName: "TD Visa", Amount: 421.14, SafeBy: "2024-05-17", Rationale: "closes first"}, v.Slices[0])
	require.NotNil(t, v.YearToDate)
	assert.Equal(t, 392.45, v.YearToDate.Total)
	assert.Zero(t, v.YearToDate.Percent)
	require.NotNil(t, v.HSTPace)
	assert.Equal(t, 30000.0, v.HSTPace.Threshold)
	assert.Equal(t, "A", v.TopAction)
}

func TestCachedPlanOmitsSnapshotFields(t *testing.T) {
	v := CachedPlan("alex", samplePlan())
	assert.Equal(t, 421.14, v.AvailableBudget)
	assert.Zero(t, v.SetAside.Percent)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"tax_year", "period_income", "bills", "year_to_date", "hst_pace", "top_action"} {
		assert.NotContains(t, raw, key)
	}
	assert.Contains(t, raw, "slices")
}

func TestCachedPlanEmptySlicesEncodeAsArray(t *testing.T) {
	data, err := json.Marshal(CachedPlan("alex", core.Plan{AsOf: asOf}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"slices":[]`)
}

func TestCards(t *testing.T) {
	cards := Cards(sampleResult(), asOf)
	require.Len(t, cards, 2)

	assert.Equal(t, "A", cards[0].ID)
	assert.True(t, cards[0].Top)
	assert.True(t, cards[0].Queued)
	assert.Equal(t, 60, cards[0].Utilization)
	assert.Equal(t, 30, cards[0].Target)
	assert.Equal(t, 421.14, cards[0].Pay)
	assert.Nil(t, cards[0].DaysToClose)

	assert.False(t, cards[1].Top)
	assert.False(t, cards[1].Queued)
	assert.Equal(t, 10, cards[1].Utilization)
}

func TestBuckets(t *testing.T) {
	got := Buckets([]period.Bucket{{Key: "2024-W20", Total: core.Money{Cents: 68000}}})
	assert.Equal(t, []Bucket{{Key: "2024-W20", Total: 680}}, got)
}
