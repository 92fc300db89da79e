package backtest

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Trade is one completed holding run
type Trade struct {
	Code        string    `json:"code"`
	EntryDate   time.Time `json:"entry_date"`
	ExitDate    time.Time `json:"exit_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Return      float64   `json:"return"` // exit / entry, 결측이면 NaN
	HoldingDays int       `json:"holding_days"`
}

// MarshalJSON writes prices and returns lost to a data gap as null
func (t Trade) MarshalJSON() ([]byte, error) {
	type alias struct {
		Code        string    `json:"code"`
		EntryDate   time.Time `json:"entry_date"`
		ExitDate    time.Time `json:"exit_date"`
		EntryPrice  *float64  `json:"entry_price"`
		ExitPrice   *float64  `json:"exit_price"`
		Return      *float64  `json:"return"`
		HoldingDays int       `json:"holding_days"`
	}
	return json.Marshal(alias{
		Code:        t.Code,
		EntryDate:   t.EntryDate,
		ExitDate:    t.ExitDate,
		EntryPrice:  finiteOrNil(t.EntryPrice),
		ExitPrice:   finiteOrNil(t.ExitPrice),
		Return:      finiteOrNil(t.Return),
		HoldingDays: t.HoldingDays,
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// DailyClose is the portfolio return of one day with at least one close
type DailyClose struct {
	Date      time.Time `json:"date"`
	Count     int       `json:"count"`
	Average   float64   `json:"average"`
	AccReturn float64   `json:"acc_return"`
}

// Accumulation is the output of the return pass
type Accumulation struct {
	Trades        []Trade
	CloseDays     []DailyClose
	Gaps          []*contracts.DataGapError
	SkippedCloses int
	FinalReturn   float64
}

type instrumentTrades struct {
	trades  []Trade
	gaps    []*contracts.DataGapError
	skipped int
}

// fillState is the fold state of the return pass for one instrument
type fillState struct {
	entryPrice float64
	entryDay   int
}

// accumulateInstrument detects fills and closes in one column and writes Closed cells.
// Days before the first row count as flat.
func accumulateInstrument(code string, dates []time.Time, prices []float64, cells []Cell, log *logger.Logger) instrumentTrades {
	var out instrumentTrades
	st := fillState{entryDay: -1}

	at := func(t int) Cell {
		if t < 0 {
			return Cell{}
		}
		return cells[t]
	}

	for t := range cells {
		prev2, prev1, cur := at(t-2), at(t-1), cells[t]

		switch {
		case prev2.flat() && prev1.State == Ready && cur.State == Buy:
			st = fillState{entryPrice: prices[t], entryDay: t}
			log.WithFields(map[string]interface{}{
				"code":  code,
				"date":  dates[t].Format(contracts.DateLayout),
				"price": prices[t],
			}).Debug("Position filled")

		case prev1.State == Buy && cur.State == Empty:
			if st.entryDay < 0 {
				log.WithFields(map[string]interface{}{
					"code": code,
					"date": dates[t].Format(contracts.DateLayout),
				}).Warn("Close without recorded fill, skipped")
				out.skipped++
				break
			}

			exit := prices[t]
			ret := exit / st.entryPrice
			cells[t] = Cell{State: Closed, Return: ret}

			trade := Trade{
				Code:        code,
				EntryDate:   dates[st.entryDay],
				ExitDate:    dates[t],
				EntryPrice:  st.entryPrice,
				ExitPrice:   exit,
				Return:      ret,
				HoldingDays: t - st.entryDay,
			}
			out.trades = append(out.trades, trade)

			if math.IsNaN(ret) {
				gapDay := t
				if math.IsNaN(st.entryPrice) {
					gapDay = st.entryDay
				}
				out.gaps = append(out.gaps, &contracts.DataGapError{Code: code, Date: dates[gapDay]})
			}

			log.WithFields(map[string]interface{}{
				"code":   code,
				"date":   dates[t].Format(contracts.DateLayout),
				"price":  exit,
				"return": ret,
			}).Debug("Position closed")

			st = fillState{entryDay: -1}
		}

		if cells[t].State == Empty {
			st = fillState{entryDay: -1}
		}
	}

	return out
}

// AccumulateReturns runs the return pass over every instrument and then aggregates the
// portfolio curve. It must run after SimulateLifecycle has finished for the whole book.
func AccumulateReturns(ctx context.Context, book *TradeBook, workers int, log *logger.Logger) (*Accumulation, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]instrumentTrades, len(book.Codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c, code := range book.Codes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[c] = accumulateInstrument(code, book.Dates, book.Prices[c], book.Positions[c], log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc := &Accumulation{}
	for _, r := range results {
		acc.Trades = append(acc.Trades, r.trades...)
		acc.Gaps = append(acc.Gaps, r.gaps...)
		acc.SkippedCloses += r.skipped
	}
	sort.SliceStable(acc.Trades, func(i, j int) bool {
		if !acc.Trades[i].ExitDate.Equal(acc.Trades[j].ExitDate) {
			return acc.Trades[i].ExitDate.Before(acc.Trades[j].ExitDate)
		}
		return acc.Trades[i].Code < acc.Trades[j].Code
	})

	acc.CloseDays, acc.FinalReturn = AggregatePortfolio(book)

	for _, cd := range acc.CloseDays {
		log.WithFields(map[string]interface{}{
			"date":    cd.Date.Format(contracts.DateLayout),
			"closed":  cd.Count,
			"average": math.Round(cd.Average*100) / 100,
		}).Debug("Portfolio close day")
	}
	if len(acc.Gaps) > 0 {
		log.WithField("gaps", len(acc.Gaps)).Warn("Trades closed on missing prices were excluded")
	}

	return acc, nil
}

// AggregatePortfolio averages each day's finite closed returns and compounds them into
// book.AccReturn. Days without closes carry the previous value.
func AggregatePortfolio(book *TradeBook) ([]DailyClose, float64) {
	closeDays := make([]DailyClose, 0)
	acc := 1.0

	for t := range book.Dates {
		sum, count := 0.0, 0
		for c := range book.Codes {
			cell := book.Positions[c][t]
			if cell.State != Closed || math.IsNaN(cell.Return) || math.IsInf(cell.Return, 0) {
				continue
			}
			sum += cell.Return
			count++
		}

		if count > 0 {
			avg := sum / float64(count)
			acc *= avg
			closeDays = append(closeDays, DailyClose{
				Date:      book.Dates[t],
				Count:     count,
				Average:   avg,
				AccReturn: acc,
			})
		}
		book.AccReturn[t] = acc
	}

	return closeDays, acc
}
