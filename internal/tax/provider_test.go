package tax

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glidemoney/internal/core"
)

func TestFileProviderEmbeddedTables(t *testing.T) {
	p := NewFileProvider("")

	for _, code := range []core.Jurisdiction{"AB", "BC", "MB", "NB", "NL", "NS", "NT", "NU", "ON", "PE", "QC", "SK", "YT"} {
		table, err := p.RateTable(2024, code)
		require.NoError(t, err, code)
		assert.Equal(t, 2024, table.Year)
		assert.Equal(t, code, table.Jurisdiction)
	}

	on, err := p.RateTable(2025, "ON")
	require.NoError(t, err)
	assert.Equal(t, 71300.0, on.CPP.YMPE)
	assert.Equal(t, 0.13, on.HSTRate)
	assert.Equal(t, 12747.0, on.ProvincialBasicCredit)
}

func TestFileProviderMatchesHandBuiltTable(t *testing.T) {
	table, err := NewFileProvider("").RateTable(2024, "ON")
	require.NoError(t, err)

	items := []core.IncomeItem{
		{Gross: core.Dollars(52000), HSTRegistered: true},
		{Gross: core.Dollars(8000)},
	}
	fromFile, err := ComputeSetAsides(items, table)
	require.NoError(t, err)
	fromLiteral, err := ComputeSetAsides(items, testTable())
	require.NoError(t, err)
	assert.Equal(t, fromLiteral, fromFile)
}

func TestFileProviderFailsFast(t *testing.T) {
	p := NewFileProvider("")

	_, err := p.RateTable(2024, "")
	assert.ErrorIs(t, err, core.ErrMissingJurisdiction)

	_, err = p.RateTable(1999, "ON")
	assert.ErrorIs(t, err, core.ErrUnsupportedJurisdiction)

	_, err = p.RateTable(2025, "MB")
	assert.ErrorIs(t, err, core.ErrUnsupportedJurisdiction)
}

func TestFileProviderReturnsCopies(t *testing.T) {
	p := NewFileProvider("")
	a, err := p.RateTable(2024, "BC")
	require.NoError(t, err)
	a.ProvincialBrackets[0].Rate = 0.99

	b, err := p.RateTable(2024, "BC")
	require.NoError(t, err)
	assert.Equal(t, 0.0506, b.ProvincialBrackets[0].Rate)
}

func TestFileProviderCopiesBracketBounds(t *testing.T) {
	p := NewFileProvider("")
	a, err := p.RateTable(2024, "BC")
	require.NoError(t, err)
	want := *a.FederalBrackets[0].UpTo
	*a.FederalBrackets[0].UpTo = 1
	*a.ProvincialBrackets[0].UpTo = 1

	b, err := p.RateTable(2024, "BC")
	require.NoError(t, err)
	assert.Equal(t, want, *b.FederalBrackets[0].UpTo)
	assert.NotEqual(t, 1.0, *b.ProvincialBrackets[0].UpTo)
	assert.NotSame(t, a.FederalBrackets[0].UpTo, b.FederalBrackets[0].UpTo)
}

const overrideYAML = `year: 2030
cpp: { rate: 0.06, ympe: 80000, basic_exemption: 3500 }
cpp_credit_cap: 1000
hst_threshold: 30000
federal:
  basic_credit: 17000
  brackets:
    - { up_to: 60000, rate: 0.15 }
    - { rate: 0.33 }
provinces:
  ON:
    basic_credit: 13000
    hst_rate: 0.13
    brackets:
      - { rate: 0.05 }
`

func TestFileProviderOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2030.yaml"), []byte(overrideYAML), 0o644))

	p := NewFileProvider(dir)

	table, err := p.RateTable(2030, "ON")
	require.NoError(t, err)
	assert.Equal(t, 0.06, table.CPP.Rate)
	assert.Len(t, table.ProvincialBrackets, 1)

	// Years missing from the directory fall back to the embedded tables.
	_, err = p.RateTable(2024, "QC")
	assert.NoError(t, err)
}

func TestFileProviderYears(t *testing.T) {
	years, err := NewFileProvider("").Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, years)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2030.yaml"), []byte(overrideYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("x: 1\n"), 0o644))

	p := NewFileProvider(dir)
	years, err = p.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025, 2030}, years)

	latest, err := p.LatestYear()
	require.NoError(t, err)
	assert.Equal(t, 2030, latest)
}

func TestFileProviderRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	unsorted := `year: 2031
cpp: { rate: 0.06, ympe: 80000, basic_exemption: 3500 }
federal:
  brackets:
    - { up_to: 60000, rate: 0.15 }
    - { up_to: 10000, rate: 0.20 }
    - { rate: 0.33 }
provinces:
  ON:
    hst_rate: 0.13
    brackets:
      - { rate: 0.05 }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2031.yaml"), []byte(unsorted), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2032.yaml"), []byte("year: 2033\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2034.yaml"), []byte("year: [\n"), 0o644))

	p := NewFileProvider(dir)
	for _, year := range []int{2031, 2032, 2034} {
		_, err := p.RateTable(year, "ON")
		assert.ErrorIs(t, err, core.ErrInvalidRateTable, "year %d", year)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(testTable())

	got, err := p.RateTable(2024, "ON")
	require.NoError(t, err)
	assert.Equal(t, 0.13, got.HSTRate)

	_, err = p.RateTable(2024, "BC")
	assert.ErrorIs(t, err, core.ErrUnsupportedJurisdiction)

	_, err = p.RateTable(2024, "")
	assert.ErrorIs(t, err, core.ErrMissingJurisdiction)
}
