package contracts

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2020, time.January, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"iso date", "2020-01-31", false},
		{"with time", "2020-01-31 15:30:00", false},
		{"rfc3339", "2020-01-31T09:00:00+09:00", false},
		{"slashes", "2020/01/31", false},
		{"dots", "2020.01.31", false},
		{"compact", "20200131", false},
		{"padded", "  2020-01-31 ", false},
		{"garbage", "31st of January", true},
		{"empty", "", true},
		{"invalid day", "2020-02-30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestYearMonth(t *testing.T) {
	assert.Equal(t, "2020-01", YearMonth(time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2021-12", YearMonth(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPriceTable_Column(t *testing.T) {
	table := NewPriceTable("AAA")
	table.Dates = []string{"2020-01-02", "2020-01-03"}
	table.Columns[ColumnClose] = []float64{10, 11}
	table.Columns[ColumnAdjClose] = []float64{9.5, math.NaN()}

	col, err := table.Column(ColumnClose)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, col)

	_, err = table.Column("Price")
	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "AAA", missing.Code)
	assert.Equal(t, "Price", missing.Column)
	assert.Equal(t, []string{"Adj Close", "Close"}, missing.Available)
	assert.Contains(t, err.Error(), "Adj Close, Close")
}

func TestPriceTable_Validate(t *testing.T) {
	table := NewPriceTable("AAA")
	table.Dates = []string{"2020-01-02", "2020-01-03"}
	table.Columns[ColumnClose] = []float64{10, 11}
	assert.NoError(t, table.Validate())
	assert.Equal(t, 2, table.Len())

	table.Columns[ColumnOpen] = []float64{10}
	assert.Error(t, table.Validate())
}

func TestSelectionMap(t *testing.T) {
	d1 := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 2, 28, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC)

	m := NewSelectionMap()
	m.Set(d3, []string{"C"})
	m.Set(d1, []string{"A", "B"})
	m.Set(d2, nil)

	assert.Equal(t, []time.Time{d1, d2, d3}, m.Dates)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 3, m.TotalSelections())

	codes, ok := m.Get(d2)
	assert.True(t, ok)
	assert.NotNil(t, codes)
	assert.Empty(t, codes)

	assert.True(t, m.Contains(d1, "B"))
	assert.False(t, m.Contains(d1, "C"))

	// overwrite keeps a single date key
	m.Set(d1, []string{"A"})
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 2, m.TotalSelections())
}

func TestErrors(t *testing.T) {
	formatErr := &FormatError{Code: "AAA", Value: "2020-13-01", Reason: "unparseable date"}
	assert.Equal(t, `format error [AAA]: "2020-13-01": unparseable date`, formatErr.Error())

	noCode := &FormatError{Value: "x", Reason: "bad"}
	assert.Equal(t, `format error: "x": bad`, noCode.Error())

	gap := &DataGapError{Code: "BBB", Date: time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "data gap [BBB]: no price on 2020-02-03", gap.Error())

	wrapped := errors.Join(ErrInvalidFraction)
	assert.ErrorIs(t, wrapped, ErrInvalidFraction)
}
