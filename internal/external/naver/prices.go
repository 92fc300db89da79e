package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// PriceData represents one daily bar
type PriceData struct {
	Code   string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

const chartDateLayout = "20060102"

var priceRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+)`)

// FetchPrices fetches daily prices for a stock in [from, to]
// ⭐ SSOT: Naver Finance 가격 API 호출은 이 함수에서만
func (c *Client) FetchPrices(ctx context.Context, code string, from, to time.Time) ([]PriceData, error) {
	params := url.Values{}
	params.Set("symbol", code)
	params.Set("requestType", "1")
	params.Set("startTime", from.Format(chartDateLayout))
	params.Set("endTime", to.Format(chartDateLayout))
	params.Set("timeframe", "day")

	body, err := c.fetch(ctx, c.chartURL, "/siseJson.naver", params)
	if err != nil {
		return nil, err
	}

	prices, err := parsePriceResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	for i := range prices {
		prices[i].Code = code
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": code,
		"count":      len(prices),
	}).Debug("Fetched prices")
	return prices, nil
}

// parsePriceResponse parses the chart response (JS array literal with single quotes)
func parsePriceResponse(body string) ([]PriceData, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	// Try JSON parsing first
	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return parsePriceJSON(rawData), nil
	}

	// Fallback to regex parsing
	return parsePriceRegex(body), nil
}

// parsePriceJSON parses JSON array format; the first row is the header
func parsePriceJSON(rawData [][]interface{}) []PriceData {
	var prices []PriceData
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse(chartDateLayout, strings.TrimSpace(dateStr))
		if err != nil {
			continue
		}

		prices = append(prices, PriceData{
			Date:   date,
			Open:   toFloat(row[1]),
			High:   toFloat(row[2]),
			Low:    toFloat(row[3]),
			Close:  toFloat(row[4]),
			Volume: int64(toFloat(row[5])),
		})
	}
	return sortByDate(prices)
}

// parsePriceRegex parses using regex (fallback)
func parsePriceRegex(body string) []PriceData {
	var prices []PriceData
	for _, match := range priceRowRe.FindAllStringSubmatch(body, -1) {
		date, err := time.Parse(chartDateLayout, match[1])
		if err != nil {
			continue
		}

		prices = append(prices, PriceData{
			Date:   date,
			Open:   toFloat(match[2]),
			High:   toFloat(match[3]),
			Low:    toFloat(match[4]),
			Close:  toFloat(match[5]),
			Volume: int64(toFloat(match[6])),
		})
	}
	return sortByDate(prices)
}

func sortByDate(prices []PriceData) []PriceData {
	sort.SliceStable(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	return prices
}

// toFloat converts JSON numbers and numeric strings
func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		n, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", ""), 64)
		return n
	default:
		return 0
	}
}

// ToPriceTable converts fetched bars into a price table.
// 차트 API는 수정주가를 반환하므로 Adj Close = Close
func ToPriceTable(code string, prices []PriceData) *contracts.PriceTable {
	t := contracts.NewPriceTable(code)
	n := len(prices)
	cols := map[string][]float64{
		contracts.ColumnOpen:     make([]float64, n),
		contracts.ColumnHigh:     make([]float64, n),
		contracts.ColumnLow:      make([]float64, n),
		contracts.ColumnClose:    make([]float64, n),
		contracts.ColumnAdjClose: make([]float64, n),
		contracts.ColumnVolume:   make([]float64, n),
	}
	t.Dates = make([]string, n)

	for i, p := range prices {
		t.Dates[i] = p.Date.Format(contracts.DateLayout)
		cols[contracts.ColumnOpen][i] = p.Open
		cols[contracts.ColumnHigh][i] = p.High
		cols[contracts.ColumnLow][i] = p.Low
		cols[contracts.ColumnClose][i] = p.Close
		cols[contracts.ColumnAdjClose][i] = p.Close
		cols[contracts.ColumnVolume][i] = float64(p.Volume)
	}
	t.Columns = cols
	return t
}
