package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s1_universe"
)

// CellState is the position state of one (day, instrument) cell
type CellState uint8

const (
	Empty  CellState = iota // 포지션 없음
	Ready                   // 월말 선정 (다음 거래일 진입 대기)
	Buy                     // 보유 중
	Closed                  // 청산일, Cell.Return에 수익률
)

func (s CellState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Buy:
		return "buy"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("CellState(%d)", uint8(s))
	}
}

// Cell is one (day, instrument) position cell. Return is set only when State is Closed.
type Cell struct {
	State  CellState `json:"state"`
	Return float64   `json:"return,omitempty"`
}

// flat reports whether the cell holds no position
func (c Cell) flat() bool {
	return c.State == Empty || c.State == Closed
}

// TradeBook is the date × instrument position matrix.
// Columns are per instrument so that instruments can be processed independently.
// ⭐ SSOT: 트레이드북 구조는 여기서만
type TradeBook struct {
	Dates      []time.Time // 모든 종목 거래일의 합집합 (오름차순)
	YearMonths []string    // 행별 "YYYY-MM"
	Codes      []string
	Prices     [][]float64 // [code][day], 결측 = NaN
	Positions  [][]Cell    // [code][day]
	AccReturn  []float64   // 행별 누적 수익률

	codeIndex map[string]int
}

// BuildTradeBook pivots the long table into a price matrix and marks every selected
// (month-end date, code) pair as Ready
func BuildTradeBook(rows []s1_universe.MonthlyRow, selections *contracts.SelectionMap, codes []string) (*TradeBook, error) {
	codes = append([]string(nil), codes...)
	sort.Strings(codes)

	book := &TradeBook{
		Codes:     codes,
		codeIndex: make(map[string]int, len(codes)),
	}
	for i, code := range codes {
		book.codeIndex[code] = i
	}

	dateSet := make(map[time.Time]struct{})
	for _, row := range rows {
		dateSet[row.Date] = struct{}{}
	}
	book.Dates = make([]time.Time, 0, len(dateSet))
	for date := range dateSet {
		book.Dates = append(book.Dates, date)
	}
	sort.Slice(book.Dates, func(i, j int) bool { return book.Dates[i].Before(book.Dates[j]) })

	dayIndex := make(map[time.Time]int, len(book.Dates))
	book.YearMonths = make([]string, len(book.Dates))
	for i, date := range book.Dates {
		dayIndex[date] = i
		book.YearMonths[i] = contracts.YearMonth(date)
	}

	n := len(book.Dates)
	book.Prices = make([][]float64, len(codes))
	book.Positions = make([][]Cell, len(codes))
	for c := range codes {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = math.NaN()
		}
		book.Prices[c] = prices
		book.Positions[c] = make([]Cell, n)
	}
	book.AccReturn = make([]float64, n)
	for i := range book.AccReturn {
		book.AccReturn[i] = 1
	}

	for _, row := range rows {
		c, ok := book.codeIndex[row.Code]
		if !ok {
			return nil, fmt.Errorf("row for unknown instrument %q", row.Code)
		}
		book.Prices[c][dayIndex[row.Date]] = row.Price
	}

	if selections != nil {
		for _, date := range selections.Dates {
			day, ok := dayIndex[date]
			if !ok {
				return nil, fmt.Errorf("selection date %s is not a trading day", date.Format(contracts.DateLayout))
			}
			for _, code := range selections.Codes[date] {
				c, ok := book.codeIndex[code]
				if !ok {
					return nil, fmt.Errorf("selected instrument %q not in universe", code)
				}
				book.Positions[c][day] = Cell{State: Ready}
			}
		}
	}

	return book, nil
}

// CodeIndex returns the column index of code
func (b *TradeBook) CodeIndex(code string) (int, bool) {
	i, ok := b.codeIndex[code]
	return i, ok
}

// Cell returns the cell of code on day
func (b *TradeBook) Cell(code string, day int) (Cell, bool) {
	c, ok := b.codeIndex[code]
	if !ok || day < 0 || day >= len(b.Dates) {
		return Cell{}, false
	}
	return b.Positions[c][day], true
}

// Days returns the number of trading days
func (b *TradeBook) Days() int {
	return len(b.Dates)
}

// FinalReturn returns the last cumulative return, 1 for an empty book
func (b *TradeBook) FinalReturn() float64 {
	if len(b.AccReturn) == 0 {
		return 1
	}
	return b.AccReturn[len(b.AccReturn)-1]
}

// CountStates counts cells per state across the whole book
func (b *TradeBook) CountStates() map[CellState]int {
	counts := make(map[CellState]int, 4)
	for _, col := range b.Positions {
		for _, cell := range col {
			counts[cell.State]++
		}
	}
	return counts
}
