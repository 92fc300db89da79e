package backtest

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// ErrEmptyRange is returned when no price falls inside the buy-and-hold window
var ErrEmptyRange = errors.New("no prices in date range")

// BuyHoldPoint is one day of the buy-and-hold curve
type BuyHoldPoint struct {
	Date        time.Time `json:"date"`
	Price       float64   `json:"price"`
	DailyReturn float64   `json:"daily_return"`
	AccReturn   float64   `json:"acc_return"`
}

// BuyHoldResult is the buy-and-hold curve of one instrument
type BuyHoldResult struct {
	Code        string         `json:"code"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Curve       []BuyHoldPoint `json:"curve"`
	FinalReturn float64        `json:"final_return"`
}

// MarshalJSON writes a missing price as null
func (p BuyHoldPoint) MarshalJSON() ([]byte, error) {
	type alias struct {
		Date        time.Time `json:"date"`
		Price       *float64  `json:"price"`
		DailyReturn float64   `json:"daily_return"`
		AccReturn   float64   `json:"acc_return"`
	}
	return json.Marshal(alias{Date: p.Date, Price: finiteOrNil(p.Price), DailyReturn: p.DailyReturn, AccReturn: p.AccReturn})
}

// BuyAndHold computes the compounded daily return of table between start and end (inclusive,
// "YYYY-MM-DD"). An empty end means today. Missing prices count as a flat day.
//
// Malformed start/end strings are logged and yield an empty result with a FormatError.
func BuyAndHold(table *contracts.PriceTable, start, end, column string, log *logger.Logger) (*BuyHoldResult, error) {
	empty := &BuyHoldResult{Code: table.Code}

	startDate, err := time.Parse(contracts.DateLayout, start)
	if err != nil {
		log.WithField("start", start).Error("Start and end dates must be YYYY-MM-DD")
		return empty, &contracts.FormatError{Code: table.Code, Value: start, Reason: "start date must be YYYY-MM-DD"}
	}

	endDate := time.Now().UTC().Truncate(24 * time.Hour)
	if end != "" {
		endDate, err = time.Parse(contracts.DateLayout, end)
		if err != nil {
			log.WithField("end", end).Error("Start and end dates must be YYYY-MM-DD")
			return empty, &contracts.FormatError{Code: table.Code, Value: end, Reason: "end date must be YYYY-MM-DD"}
		}
	}

	prices, err := table.Column(column)
	if err != nil {
		return empty, err
	}
	if err := table.Validate(); err != nil {
		return empty, err
	}

	type dated struct {
		date  time.Time
		price float64
	}
	series := make([]dated, 0, table.Len())
	for i, raw := range table.Dates {
		d, err := contracts.ParseDate(raw)
		if err != nil {
			return empty, &contracts.FormatError{Code: table.Code, Value: raw, Reason: "unparseable date"}
		}
		if d.Before(startDate) || d.After(endDate) {
			continue
		}
		series = append(series, dated{date: d, price: prices[i]})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	if len(series) == 0 {
		return empty, ErrEmptyRange
	}

	result := &BuyHoldResult{
		Code:  table.Code,
		Start: startDate,
		End:   endDate,
		Curve: make([]BuyHoldPoint, len(series)),
	}

	acc := 1.0
	last := math.NaN()
	for i, s := range series {
		daily := 1.0
		if !math.IsNaN(s.price) {
			if !math.IsNaN(last) {
				daily = s.price / last
			}
			last = s.price
		}
		acc *= daily
		result.Curve[i] = BuyHoldPoint{Date: s.date, Price: s.price, DailyReturn: daily, AccReturn: acc}
	}
	result.FinalReturn = acc

	return result, nil
}
