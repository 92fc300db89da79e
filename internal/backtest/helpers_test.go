package backtest

import (
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s1_universe"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// rowsFor builds long-table rows of one instrument
func rowsFor(code string, dates []time.Time, prices []float64) []s1_universe.MonthlyRow {
	rows := make([]s1_universe.MonthlyRow, len(dates))
	for i := range dates {
		rows[i] = s1_universe.MonthlyRow{
			Date:      dates[i],
			Price:     prices[i],
			YearMonth: contracts.YearMonth(dates[i]),
			Code:      code,
		}
	}
	return rows
}

func priceTable(code string, dates []string, prices []float64) *contracts.PriceTable {
	t := contracts.NewPriceTable(code)
	t.Dates = dates
	t.Columns[contracts.ColumnAdjClose] = prices
	return t
}

// states extracts the state column of code
func states(book *TradeBook, code string) []CellState {
	c, _ := book.CodeIndex(code)
	out := make([]CellState, len(book.Dates))
	for i, cell := range book.Positions[c] {
		out[i] = cell.State
	}
	return out
}

func selectionOf(date time.Time, codes ...string) *contracts.SelectionMap {
	m := contracts.NewSelectionMap()
	m.Set(date, codes)
	return m
}
