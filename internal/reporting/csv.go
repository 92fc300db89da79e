package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
)

// Book column suffixes (종목별 가격 열 + 포지션 열)
const (
	positionSuffix  = "_pos"
	accReturnColumn = "acc_rtn"
)

// BookHeader returns the trade book header: date, ym, <code>, <code>_pos ..., acc_rtn
func BookHeader(book *backtest.TradeBook) []string {
	header := make([]string, 0, 3+2*len(book.Codes))
	header = append(header, "date", "ym")
	for _, code := range book.Codes {
		header = append(header, code, code+positionSuffix)
	}
	return append(header, accReturnColumn)
}

// BookRow returns the string cells of one trade book day
func BookRow(book *backtest.TradeBook, day int) []string {
	row := make([]string, 0, 3+2*len(book.Codes))
	row = append(row, book.Dates[day].Format(contracts.DateLayout), book.YearMonths[day])
	for c := range book.Codes {
		row = append(row, formatFloat(book.Prices[c][day]), formatCell(book.Positions[c][day]))
	}
	return append(row, formatFloat(book.AccReturn[day]))
}

// WriteTradeBookCSV writes the full date × instrument book
func WriteTradeBookCSV(w io.Writer, book *backtest.TradeBook) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BookHeader(book)); err != nil {
		return fmt.Errorf("write book header: %w", err)
	}
	for day := range book.Dates {
		if err := cw.Write(BookRow(book, day)); err != nil {
			return fmt.Errorf("write book row %d: %w", day, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var tradeHeader = []string{"code", "entry_date", "exit_date", "entry_price", "exit_price", "return", "holding_days"}

// WriteTradesCSV writes one line per completed holding run
func WriteTradesCSV(w io.Writer, trades []backtest.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("write trades header: %w", err)
	}
	for _, t := range trades {
		rec := []string{
			t.Code,
			t.EntryDate.Format(contracts.DateLayout),
			t.ExitDate.Format(contracts.DateLayout),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Return),
			strconv.Itoa(t.HoldingDays),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write trade %s: %w", t.Code, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var closeDayHeader = []string{"date", "count", "average", "acc_rtn"}

// WriteCloseDaysCSV writes the portfolio return of every day with a close
func WriteCloseDaysCSV(w io.Writer, days []backtest.DailyClose) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(closeDayHeader); err != nil {
		return fmt.Errorf("write close days header: %w", err)
	}
	for _, d := range days {
		rec := []string{
			d.Date.Format(contracts.DateLayout),
			strconv.Itoa(d.Count),
			formatFloat(d.Average),
			formatFloat(d.AccReturn),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write close day: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat renders NaN as an empty cell
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatCell renders a position cell: "", ready, buy or the closed return
func formatCell(c backtest.Cell) string {
	switch c.State {
	case backtest.Empty:
		return ""
	case backtest.Closed:
		if math.IsNaN(c.Return) {
			return "gap"
		}
		return formatFloat(c.Return)
	default:
		return c.State.String()
	}
}
