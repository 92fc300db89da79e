package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/strategyconfig"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// sampleResult: A는 1/31 선정 → 2/3 진입 → 2/5 청산 (1.1), B는 결측 구간 포함
func sampleResult() *backtest.Result {
	nan := math.NaN()
	book := &backtest.TradeBook{
		Dates:      []time.Time{d(2020, 1, 31), d(2020, 2, 3), d(2020, 2, 4), d(2020, 2, 5)},
		YearMonths: []string{"2020-01", "2020-02", "2020-02", "2020-02"},
		Codes:      []string{"A", "B"},
		Prices: [][]float64{
			{9, 10, 10.5, 11},
			{20, nan, 21, 22},
		},
		Positions: [][]backtest.Cell{
			{{State: backtest.Ready}, {State: backtest.Buy}, {State: backtest.Buy}, {State: backtest.Closed, Return: 1.1}},
			{{}, {}, {}, {}},
		},
		AccReturn: []float64{1, 1, 1, 1.1},
	}

	trade := backtest.Trade{
		Code:        "A",
		EntryDate:   d(2020, 2, 3),
		ExitDate:    d(2020, 2, 5),
		EntryPrice:  10,
		ExitPrice:   11,
		Return:      1.1,
		HoldingDays: 2,
	}
	gapTrade := backtest.Trade{
		Code:       "B",
		EntryDate:  d(2020, 2, 3),
		ExitDate:   d(2020, 2, 5),
		EntryPrice: nan,
		ExitPrice:  22,
		Return:     nan,
	}

	return &backtest.Result{
		Config:      backtest.Config{StartDate: d(2020, 1, 1), PriceColumn: contracts.ColumnAdjClose, TopFraction: 0.15, HoldPolicy: backtest.HoldEntryMonth},
		StartDate:   book.Dates[0],
		EndDate:     book.Dates[3],
		TradingDays: 4,
		Instruments: 2,
		FinalReturn: 1.1,
		TotalReturn: 0.1,
		TotalTrades: 1,
		Trades:      []backtest.Trade{trade, gapTrade},
		CloseDays:   []backtest.DailyClose{{Date: d(2020, 2, 5), Count: 1, Average: 1.1, AccReturn: 1.1}},
		DataGaps:    []*contracts.DataGapError{{Code: "B", Date: d(2020, 2, 3)}},
		Book:        book,
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteTradeBookCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradeBookCSV(&buf, sampleResult().Book))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 5)

	assert.Equal(t, []string{"date", "ym", "A", "A_pos", "B", "B_pos", "acc_rtn"}, records[0])
	assert.Equal(t, []string{"2020-01-31", "2020-01", "9", "ready", "20", "", "1"}, records[1])
	assert.Equal(t, []string{"2020-02-03", "2020-02", "10", "buy", "", "", "1"}, records[2])
	assert.Equal(t, []string{"2020-02-05", "2020-02", "11", "1.1", "22", "", "1.1"}, records[4])
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, sampleResult().Trades))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, tradeHeader, records[0])
	assert.Equal(t, []string{"A", "2020-02-03", "2020-02-05", "10", "11", "1.1", "2"}, records[1])
	assert.Equal(t, "", records[2][3], "gap entry price is blank")
	assert.Equal(t, "", records[2][5], "gap return is blank")
}

func TestWriteCloseDaysCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCloseDaysCSV(&buf, sampleResult().CloseDays))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2020-02-05", "1", "1.1", "1.1"}, records[1])
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		cell backtest.Cell
		want string
	}{
		{backtest.Cell{}, ""},
		{backtest.Cell{State: backtest.Ready}, "ready"},
		{backtest.Cell{State: backtest.Buy}, "buy"},
		{backtest.Cell{State: backtest.Closed, Return: 0.95}, "0.95"},
		{backtest.Cell{State: backtest.Closed, Return: math.NaN()}, "gap"},
	}

	for _, tt := range tests {
		t.Run(tt.cell.State.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, formatCell(tt.cell))
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	snap := &strategyconfig.DecisionSnapshot{StrategyID: "momentum_monthly", ConfigHash: "abc"}
	require.NoError(t, WriteXLSX(path, sampleResult(), snap))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetTrades, SheetCloseDays, SheetBook}, f.GetSheetList())

	trades, err := f.GetRows(SheetTrades)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, "A", trades[1][0])
	assert.Equal(t, "1.1", trades[1][5])

	book, err := f.GetRows(SheetBook)
	require.NoError(t, err)
	require.Len(t, book, 5)
	assert.Equal(t, "A_pos", book[0][3])
	assert.Equal(t, "ready", book[1][3])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	var found bool
	for _, row := range summary {
		if len(row) == 2 && row[0] == "config_hash" {
			found = true
			assert.Equal(t, "abc", row[1])
		}
	}
	assert.True(t, found, "summary carries the config hash")
}

func TestExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	exp := NewExporter(dir, logger.NewNop())
	exp.now = func() time.Time { return time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC) }

	paths, err := exp.Export(sampleResult(), []string{FormatCSV, FormatXLSX}, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{
		"momentum_20240301_183000_book.csv",
		"momentum_20240301_183000_trades.csv",
		"momentum_20240301_183000_closes.csv",
		"momentum_20240301_183000_report.xlsx",
		"momentum_20240301_183000_summary.json",
	}, names)

	raw, err := os.ReadFile(paths[len(paths)-1])
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, []interface{}{"data gap [B]: no price on 2020-02-03"}, summary["data_gaps"])
	assert.True(t, strings.Contains(string(raw), `"entry_price": null`))
}

func TestExporterUnknownFormat(t *testing.T) {
	exp := NewExporter(t.TempDir(), logger.NewNop())
	_, err := exp.Export(sampleResult(), []string{"pdf"}, nil)
	assert.Error(t, err)
}
