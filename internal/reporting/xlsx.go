package reporting

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/strategyconfig"
)

// Sheet names
const (
	SheetSummary   = "Summary"
	SheetTrades    = "Trades"
	SheetCloseDays = "CloseDays"
	SheetBook      = "Book"
)

// WriteXLSX writes summary, trades, close days and the trade book into one workbook
func WriteXLSX(path string, result *backtest.Result, snapshot *strategyconfig.DecisionSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTrades, SheetCloseDays, SheetBook} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummarySheet(f, result, snapshot, bold); err != nil {
		return err
	}
	if err := writeTradesSheet(f, result.Trades, bold); err != nil {
		return err
	}
	if err := writeCloseDaysSheet(f, result.CloseDays, bold); err != nil {
		return err
	}
	if result.Book != nil {
		if err := writeBookSheet(f, result.Book, bold); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, r *backtest.Result, snapshot *strategyconfig.DecisionSnapshot, bold int) error {
	rows := [][]interface{}{
		{"start_date", r.StartDate.Format(contracts.DateLayout)},
		{"end_date", r.EndDate.Format(contracts.DateLayout)},
		{"price_column", r.Config.PriceColumn},
		{"top_fraction", r.Config.TopFraction},
		{"hold_policy", string(r.Config.HoldPolicy)},
		{"trading_days", r.TradingDays},
		{"instruments", r.Instruments},
		{"month_ends", r.MonthEnds},
		{"selections", r.Selections},
		{"final_return", cellValue(r.FinalReturn)},
		{"total_return", cellValue(r.TotalReturn)},
		{"cagr", cellValue(r.CAGR)},
		{"max_drawdown", cellValue(r.MaxDrawdown)},
		{"total_trades", r.TotalTrades},
		{"winning_trades", r.WinningTrades},
		{"losing_trades", r.LosingTrades},
		{"win_rate", cellValue(r.WinRate)},
		{"avg_trade_return", cellValue(r.AvgTradeReturn)},
		{"skipped_closes", r.SkippedCloses},
		{"data_gaps", len(r.DataGaps)},
	}
	if snapshot != nil {
		rows = append(rows,
			[]interface{}{"strategy_id", snapshot.StrategyID},
			[]interface{}{"config_hash", snapshot.ConfigHash},
		)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(SheetSummary, "A", "B", 20)
}

func writeTradesSheet(f *excelize.File, trades []backtest.Trade, bold int) error {
	if err := writeHeader(f, SheetTrades, tradeHeader, bold); err != nil {
		return err
	}
	for i, t := range trades {
		row := []interface{}{
			t.Code,
			t.EntryDate.Format(contracts.DateLayout),
			t.ExitDate.Format(contracts.DateLayout),
			cellValue(t.EntryPrice),
			cellValue(t.ExitPrice),
			cellValue(t.Return),
			t.HoldingDays,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetTrades, cell, &row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}
	return nil
}

func writeCloseDaysSheet(f *excelize.File, days []backtest.DailyClose, bold int) error {
	if err := writeHeader(f, SheetCloseDays, closeDayHeader, bold); err != nil {
		return err
	}
	for i, d := range days {
		row := []interface{}{d.Date.Format(contracts.DateLayout), d.Count, cellValue(d.Average), cellValue(d.AccReturn)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetCloseDays, cell, &row); err != nil {
			return fmt.Errorf("write close day row: %w", err)
		}
	}
	return nil
}

// writeBookSheet streams the book; it can hold thousands of rows × hundreds of columns
func writeBookSheet(f *excelize.File, book *backtest.TradeBook, bold int) error {
	sw, err := f.NewStreamWriter(SheetBook)
	if err != nil {
		return fmt.Errorf("open book stream: %w", err)
	}

	header := BookHeader(book)
	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", hdr); err != nil {
		return fmt.Errorf("write book header: %w", err)
	}

	for day := range book.Dates {
		row := make([]interface{}, 0, len(header))
		row = append(row, book.Dates[day].Format(contracts.DateLayout), book.YearMonths[day])
		for c := range book.Codes {
			row = append(row, cellValue(book.Prices[c][day]), positionValue(book.Positions[c][day]))
		}
		row = append(row, cellValue(book.AccReturn[day]))

		cell, _ := excelize.CoordinatesToCellName(1, day+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write book row %d: %w", day, err)
		}
	}
	return sw.Flush()
}

func writeHeader(f *excelize.File, sheet string, header []string, bold int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	return f.SetRowStyle(sheet, 1, 1, bold)
}

// cellValue leaves NaN cells blank
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func positionValue(c backtest.Cell) interface{} {
	if c.State == backtest.Closed && !math.IsNaN(c.Return) {
		return c.Return
	}
	if s := formatCell(c); s != "" {
		return s
	}
	return nil
}
