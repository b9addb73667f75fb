package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"glidemoney/internal/core"
)

func TestRateTableValidate(t *testing.T) {
	assert.NoError(t, testTable().Validate())

	tests := []struct {
		name   string
		mutate func(*RateTable)
	}{
		{"empty federal brackets", func(r *RateTable) { r.FederalBrackets = nil }},
		{"descending brackets", func(r *RateTable) {
			r.ProvincialBrackets = []Bracket{Capped(100, 0.1), Capped(50, 0.2), Top(0.3)}
		}},
		{"unbounded bracket not last", func(r *RateTable) {
			r.ProvincialBrackets = []Bracket{Top(0.1), Capped(50, 0.2)}
		}},
		{"missing unbounded top", func(r *RateTable) {
			r.FederalBrackets = []Bracket{Capped(100, 0.1), Capped(200, 0.2)}
		}},
		{"rate of one", func(r *RateTable) { r.HSTRate = 1 }},
		{"negative bracket rate", func(r *RateTable) { r.FederalBrackets = []Bracket{Top(-0.1)} }},
		{"ympe below exemption", func(r *RateTable) { r.CPP.YMPE = 1000 }},
		{"negative credit", func(r *RateTable) { r.ProvincialBasicCredit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testTable()
			tt.mutate(table)
			assert.ErrorIs(t, table.Validate(), core.ErrInvalidRateTable)
		})
	}

	var nilTable *RateTable
	assert.ErrorIs(t, nilTable.Validate(), core.ErrInvalidRateTable)
}
