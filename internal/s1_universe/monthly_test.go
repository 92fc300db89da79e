package s1_universe

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func priceTable(code string, dates []string, prices []float64) *contracts.PriceTable {
	t := contracts.NewPriceTable(code)
	t.Dates = dates
	t.Columns[contracts.ColumnAdjClose] = prices
	return t
}

func TestBuildMonthly(t *testing.T) {
	table := priceTable("AAA",
		[]string{"2020-02-03", "2019-12-31", "2020-01-02", "2020-01-31", "2020-01-15"},
		[]float64{9, 8, 10, 12, 11},
	)

	rows, buckets, err := BuildMonthly(table, d(2020, 1, 1), contracts.ColumnAdjClose)
	require.NoError(t, err)

	assert.Equal(t, []string{"2020-01", "2020-02"}, buckets)
	require.Len(t, rows, 4)

	wantDates := []time.Time{d(2020, 1, 2), d(2020, 1, 15), d(2020, 1, 31), d(2020, 2, 3)}
	wantPrices := []float64{10, 11, 12, 9}
	for i, row := range rows {
		assert.Equal(t, wantDates[i], row.Date)
		assert.Equal(t, wantPrices[i], row.Price)
		assert.Equal(t, "AAA", row.Code)
		assert.Zero(t, row.MonthlyReturn)
	}
	assert.Equal(t, "2020-02", rows[3].YearMonth)
}

func TestBuildMonthly_DropsMissingPrices(t *testing.T) {
	table := priceTable("AAA",
		[]string{"2020-01-02", "2020-01-03", "2020-01-06"},
		[]float64{10, math.NaN(), 11},
	)

	rows, _, err := BuildMonthly(table, d(2010, 1, 1), contracts.ColumnAdjClose)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, d(2020, 1, 6), rows[1].Date)
}

func TestBuildMonthly_Errors(t *testing.T) {
	tests := []struct {
		name   string
		table  *contracts.PriceTable
		column string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unparseable date",
			table:  priceTable("AAA", []string{"2020-01-02", "Jan 3rd"}, []float64{1, 2}),
			column: contracts.ColumnAdjClose,
			check: func(t *testing.T, err error) {
				var formatErr *contracts.FormatError
				require.True(t, errors.As(err, &formatErr))
				assert.Equal(t, "Jan 3rd", formatErr.Value)
			},
		},
		{
			name:   "duplicate date",
			table:  priceTable("AAA", []string{"2020-01-02", "2020/01/02"}, []float64{1, 2}),
			column: contracts.ColumnAdjClose,
			check: func(t *testing.T, err error) {
				var formatErr *contracts.FormatError
				require.True(t, errors.As(err, &formatErr))
				assert.Equal(t, "duplicate date", formatErr.Reason)
			},
		},
		{
			name:   "missing column",
			table:  priceTable("AAA", []string{"2020-01-02"}, []float64{1}),
			column: "Close",
			check: func(t *testing.T, err error) {
				var missing *contracts.MissingColumnError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "Close", missing.Column)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildMonthly(tt.table, d(2010, 1, 1), tt.column)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestApplyMonthlyReturns(t *testing.T) {
	// 월초 10, 월말 12 → 10/12
	table := priceTable("AAA",
		[]string{"2020-01-02", "2020-01-15", "2020-01-31", "2020-02-03", "2020-02-28"},
		[]float64{10, 11, 12, 9, 9},
	)
	rows, _, err := BuildMonthly(table, d(2010, 1, 1), contracts.ColumnAdjClose)
	require.NoError(t, err)

	monthEnds := ApplyMonthlyReturns(rows)

	for _, row := range rows[:3] {
		assert.InDelta(t, 0.8333, row.MonthlyReturn, 1e-4)
	}
	assert.Equal(t, 1.0, rows[3].MonthlyReturn)
	assert.Equal(t, 1.0, rows[4].MonthlyReturn)

	require.Len(t, monthEnds, 2)
	assert.Equal(t, MonthEndRow{Date: d(2020, 1, 31), Code: "AAA", MonthlyReturn: 10.0 / 12.0}, monthEnds[0])
	assert.Equal(t, d(2020, 2, 28), monthEnds[1].Date)
}

func TestApplyMonthlyReturns_SingleDayMonth(t *testing.T) {
	rows := []MonthlyRow{{Date: d(2020, 3, 31), Price: 7, YearMonth: "2020-03", Code: "X"}}
	monthEnds := ApplyMonthlyReturns(rows)

	require.Len(t, monthEnds, 1)
	assert.Equal(t, 1.0, monthEnds[0].MonthlyReturn)
	assert.Empty(t, ApplyMonthlyReturns(nil))
}
