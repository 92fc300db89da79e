package quality

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s0_data"
)

func table(code string, dates []string, prices []float64) *contracts.PriceTable {
	t := contracts.NewPriceTable(code)
	t.Dates = dates
	t.Columns[contracts.ColumnAdjClose] = prices
	return t
}

func TestQualityGate_Check(t *testing.T) {
	src := s0_data.NewMemorySource(
		table("GOOD", []string{"2024-01-03", "2024-01-02"}, []float64{11, 10}),
		table("GAPS", []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, []float64{10, math.NaN(), 0, 12}),
		table("DUPE", []string{"2024-01-02", "2024-01-02"}, []float64{10, 10}),
		table("BADDATE", []string{"2024-13-45"}, []float64{10}),
	)
	noColumn := contracts.NewPriceTable("NOCOL")
	noColumn.Dates = []string{"2024-01-02"}
	noColumn.Columns["Close"] = []float64{1}
	src.Put(noColumn)

	gate := NewQualityGate(src, Config{MinCoverage: 0.5})
	report, err := gate.Check(context.Background())
	require.NoError(t, err)

	byCode := make(map[string]InstrumentReport)
	for _, ir := range report.Instruments {
		byCode[ir.Code] = ir
	}

	good := byCode["GOOD"]
	assert.Equal(t, 2, good.Rows)
	assert.Equal(t, 1.0, good.Coverage)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), good.First)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), good.Last)

	gaps := byCode["GAPS"]
	assert.Equal(t, 2, gaps.ValidPrices)
	assert.Equal(t, 1, gaps.NonPositive)
	assert.Equal(t, 0.5, gaps.Coverage)
	assert.True(t, gaps.Passed(0.5))

	assert.Equal(t, 1, byCode["DUPE"].Duplicates)
	assert.Equal(t, 1, byCode["BADDATE"].BadDates)
	assert.Contains(t, byCode["NOCOL"].Error, "missing column")

	assert.ElementsMatch(t, []string{"DUPE", "BADDATE", "NOCOL"}, report.Failed)
	assert.False(t, report.Passed)
	assert.Greater(t, report.QualityScore, 0.0)
}

func TestQualityGate_NoInstruments(t *testing.T) {
	_, err := NewQualityGate(s0_data.NewMemorySource(), Config{}).Check(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoInstruments)
}
