package contracts

import (
	"sort"
	"time"
)

// SelectionMap maps each month-end date to the instruments selected on it
// ⭐ SSOT: 선정 → 트레이드북 전달
// 모든 월말 날짜가 키로 존재 (선정 종목이 없으면 빈 슬라이스)
type SelectionMap struct {
	Dates []time.Time
	Codes map[time.Time][]string
}

// NewSelectionMap creates an empty selection map
func NewSelectionMap() *SelectionMap {
	return &SelectionMap{Codes: make(map[time.Time][]string)}
}

// Set records the selected codes for date, keeping Dates sorted.
func (m *SelectionMap) Set(date time.Time, codes []string) {
	if _, exists := m.Codes[date]; !exists {
		idx := sort.Search(len(m.Dates), func(i int) bool { return !m.Dates[i].Before(date) })
		m.Dates = append(m.Dates, time.Time{})
		copy(m.Dates[idx+1:], m.Dates[idx:])
		m.Dates[idx] = date
	}
	if codes == nil {
		codes = []string{}
	}
	m.Codes[date] = codes
}

// Get returns the codes selected on date
func (m *SelectionMap) Get(date time.Time) ([]string, bool) {
	codes, ok := m.Codes[date]
	return codes, ok
}

// Contains reports whether code was selected on date
func (m *SelectionMap) Contains(date time.Time, code string) bool {
	for _, c := range m.Codes[date] {
		if c == code {
			return true
		}
	}
	return false
}

// Len returns the number of month-end dates
func (m *SelectionMap) Len() int {
	return len(m.Dates)
}

// TotalSelections returns the number of (date, code) pairs
func (m *SelectionMap) TotalSelections() int {
	n := 0
	for _, codes := range m.Codes {
		n += len(codes)
	}
	return n
}
