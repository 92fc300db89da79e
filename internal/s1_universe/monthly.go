package s1_universe

import (
	"sort"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// MonthlyRow is one trading day of one instrument tagged with its year-month bucket
type MonthlyRow struct {
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	YearMonth     string    `json:"year_month"`     // "YYYY-MM"
	MonthlyReturn float64   `json:"monthly_return"` // 월초가 / 월말가 (Loader가 채움)
	Code          string    `json:"code"`
}

// BuildMonthly normalizes one instrument's raw table into date-sorted rows on or after start.
// It also returns the distinct year-month buckets in first-seen order.
// Rows without a positive price are dropped, so the instrument is simply absent on that day.
func BuildMonthly(table *contracts.PriceTable, start time.Time, column string) ([]MonthlyRow, []string, error) {
	prices, err := table.Column(column)
	if err != nil {
		return nil, nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, nil, err
	}

	type dated struct {
		date  time.Time
		price float64
		raw   string
	}

	series := make([]dated, len(table.Dates))
	for i, raw := range table.Dates {
		d, err := contracts.ParseDate(raw)
		if err != nil {
			return nil, nil, &contracts.FormatError{Code: table.Code, Value: raw, Reason: "unparseable date"}
		}
		series[i] = dated{date: d, price: prices[i], raw: raw}
	}

	// 날짜 오름차순 정렬은 여기서 한 번만
	sort.SliceStable(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	rows := make([]MonthlyRow, 0, len(series))
	buckets := make([]string, 0)
	for i, s := range series {
		if i > 0 && s.date.Equal(series[i-1].date) {
			return nil, nil, &contracts.FormatError{Code: table.Code, Value: s.raw, Reason: "duplicate date"}
		}
		if s.date.Before(start) || !(s.price > 0) {
			continue
		}

		ym := contracts.YearMonth(s.date)
		if len(buckets) == 0 || buckets[len(buckets)-1] != ym {
			buckets = append(buckets, ym)
		}
		rows = append(rows, MonthlyRow{
			Date:      s.date,
			Price:     s.price,
			YearMonth: ym,
			Code:      table.Code,
		})
	}

	return rows, buckets, nil
}

// MonthEndRow is the last trading day of a bucket with that bucket's monthly return
type MonthEndRow struct {
	Date          time.Time `json:"date"`
	Code          string    `json:"code"`
	MonthlyReturn float64   `json:"monthly_return"`
}

// ApplyMonthlyReturns writes first/last price of each bucket onto every row of the bucket
// and returns the month-end rows. rows must come from BuildMonthly.
//
// The ratio is entry/exit: a value above 1 means the price fell during the month.
func ApplyMonthlyReturns(rows []MonthlyRow) []MonthEndRow {
	monthEnds := make([]MonthEndRow, 0)

	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].YearMonth == rows[i].YearMonth {
			j++
		}

		buy := rows[i].Price
		sell := rows[j-1].Price
		ret := buy / sell

		for k := i; k < j; k++ {
			rows[k].MonthlyReturn = ret
		}
		monthEnds = append(monthEnds, MonthEndRow{
			Date:          rows[j-1].Date,
			Code:          rows[j-1].Code,
			MonthlyReturn: ret,
		})
		i = j
	}

	return monthEnds
}
