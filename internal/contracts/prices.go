package contracts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Date layouts
const (
	DateLayout      = "2006-01-02"
	YearMonthLayout = "2006-01"
)

// Well-known price columns (Yahoo Finance CSV header)
const (
	ColumnDate     = "Date"
	ColumnOpen     = "Open"
	ColumnHigh     = "High"
	ColumnLow      = "Low"
	ColumnClose    = "Close"
	ColumnAdjClose = "Adj Close"
	ColumnVolume   = "Volume"
)

// PriceTable is one instrument's raw daily series as delivered by a PriceSource
// ⭐ SSOT: S0 → S1 원천 시세 전달
type PriceTable struct {
	Code    string               `json:"code"`
	Dates   []string             `json:"dates"`   // 원본 날짜 문자열 (파싱은 S1에서)
	Columns map[string][]float64 `json:"columns"` // NaN = 결측
}

// NewPriceTable creates an empty table for code
func NewPriceTable(code string) *PriceTable {
	return &PriceTable{
		Code:    code,
		Columns: make(map[string][]float64),
	}
}

// Len returns the number of rows
func (t *PriceTable) Len() int {
	return len(t.Dates)
}

// Column returns the named column or a MissingColumnError
func (t *PriceTable) Column(name string) ([]float64, error) {
	col, ok := t.Columns[name]
	if !ok {
		return nil, &MissingColumnError{Code: t.Code, Column: name, Available: t.ColumnNames()}
	}
	return col, nil
}

// ColumnNames returns the column names in sorted order
func (t *PriceTable) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every column has one value per date
func (t *PriceTable) Validate() error {
	for name, col := range t.Columns {
		if len(col) != len(t.Dates) {
			return fmt.Errorf("price table %s: column %q has %d rows, want %d", t.Code, name, len(col), len(t.Dates))
		}
	}
	return nil
}

// PriceSource enumerates instruments and loads their raw price tables
// ⭐ SSOT: S0 시세 소스 인터페이스 (CSV 디렉토리, Postgres, Redis 캐시)
type PriceSource interface {
	Codes(ctx context.Context) ([]string, error)
	Load(ctx context.Context, code string) (*PriceTable, error)
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006.01.02",
	"20060102",
}

// ParseDate parses a calendar date and normalizes it to UTC midnight.
func ParseDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// YearMonth returns the "YYYY-MM" bucket of t
func YearMonth(t time.Time) string {
	return t.Format(YearMonthLayout)
}
