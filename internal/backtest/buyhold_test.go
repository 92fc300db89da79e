package backtest

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

func TestBuyAndHold(t *testing.T) {
	table := priceTable("A",
		[]string{"2019-12-31", "2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07", "2020-02-03"},
		[]float64{5, 10, 12, math.NaN(), 15, 30},
	)

	result, err := BuyAndHold(table, "2020-01-01", "2020-01-31", contracts.ColumnAdjClose, logger.NewNop())
	require.NoError(t, err)

	require.Len(t, result.Curve, 4)
	assert.Equal(t, d(2020, 1, 2), result.Curve[0].Date)
	assert.Equal(t, 1.0, result.Curve[0].DailyReturn)
	assert.InDelta(t, 1.2, result.Curve[1].AccReturn, 1e-12)
	// 결측일은 1, 다음 날은 마지막 유효가격 대비
	assert.Equal(t, 1.0, result.Curve[2].DailyReturn)
	assert.InDelta(t, 1.25, result.Curve[3].DailyReturn, 1e-12)
	assert.InDelta(t, 1.5, result.FinalReturn, 1e-12)
}

func TestBuyAndHold_DefaultEnd(t *testing.T) {
	table := priceTable("A", []string{"2020-01-02", "2020-01-03"}, []float64{10, 11})

	result, err := BuyAndHold(table, "2020-01-01", "", contracts.ColumnAdjClose, logger.NewNop())
	require.NoError(t, err)
	assert.InDelta(t, 1.1, result.FinalReturn, 1e-12)
	assert.False(t, result.End.IsZero())
}

func TestBuyAndHold_BadDates(t *testing.T) {
	table := priceTable("A", []string{"2020-01-02"}, []float64{10})

	tests := []struct {
		name  string
		start string
		end   string
		value string
	}{
		{"bad start", "2020/01/01", "2020-12-31", "2020/01/01"},
		{"bad end", "2020-01-01", "31-12-2020", "31-12-2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := BuyAndHold(table, tt.start, tt.end, contracts.ColumnAdjClose, logger.NewNop())

			var formatErr *contracts.FormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Equal(t, tt.value, formatErr.Value)
			require.NotNil(t, result)
			assert.Empty(t, result.Curve)
			assert.Zero(t, result.FinalReturn)
		})
	}
}

func TestBuyAndHold_EmptyRangeAndMissingColumn(t *testing.T) {
	table := priceTable("A", []string{"2020-01-02"}, []float64{10})

	_, err := BuyAndHold(table, "2021-01-01", "2021-12-31", contracts.ColumnAdjClose, logger.NewNop())
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = BuyAndHold(table, "2020-01-01", "2020-12-31", "Close", logger.NewNop())
	var missing *contracts.MissingColumnError
	assert.ErrorAs(t, err, &missing)
}

func TestBuyHoldPoint_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(BuyHoldPoint{Date: d(2020, 1, 6), Price: math.NaN(), DailyReturn: 1, AccReturn: 1.2})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":null`)
	assert.Contains(t, string(raw), `"acc_return":1.2`)
}
