package selection

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s1_universe"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Selector picks the top fraction of instruments on every month-end date
// ⭐ SSOT: 월말 선정 로직은 여기서만
type Selector struct {
	topFraction float64
	logger      *logger.Logger
}

// NormalizeFraction turns a percentage (>= 1) into a fraction and checks it lies in (0, 1]
func NormalizeFraction(p float64) (float64, error) {
	if p >= 1 {
		p = p / 100
	}
	if math.IsNaN(p) || p <= 0 || p > 1 {
		return 0, fmt.Errorf("%w: got %v", contracts.ErrInvalidFraction, p)
	}
	return p, nil
}

// NewSelector creates a selector for topFraction (0.15 and 15 both mean the top 15%)
func NewSelector(topFraction float64, log *logger.Logger) (*Selector, error) {
	p, err := NormalizeFraction(topFraction)
	if err != nil {
		return nil, err
	}
	return &Selector{topFraction: p, logger: log}, nil
}

// TopFraction returns the normalized fraction
func (s *Selector) TopFraction() float64 {
	return s.topFraction
}

// Select ranks the month-end table per date and keeps instruments whose percentile is below
// the top fraction. Every month-end date is present in the result, possibly with no codes.
// The second result is the sorted list of every instrument in the table.
func (s *Selector) Select(monthEnds []s1_universe.MonthEndRow) (*contracts.SelectionMap, []string) {
	// pivot: date × code (결측은 키 없음 = NaN)
	matrix := make(map[time.Time]map[string]float64)
	codeSet := make(map[string]struct{})
	for _, row := range monthEnds {
		values, ok := matrix[row.Date]
		if !ok {
			values = make(map[string]float64)
			matrix[row.Date] = values
		}
		values[row.Code] = row.MonthlyReturn
		codeSet[row.Code] = struct{}{}
	}

	selections := contracts.NewSelectionMap()
	for date, values := range matrix {
		selected := make([]string, 0)
		for _, rc := range RankDescending(values) {
			if rc.Percentile < s.topFraction {
				selected = append(selected, rc.Code)
			}
		}
		sort.Strings(selected)
		selections.Set(date, selected)
	}

	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	s.logger.WithFields(map[string]interface{}{
		"month_ends":   selections.Len(),
		"selections":   selections.TotalSelections(),
		"instruments":  len(codes),
		"top_fraction": s.topFraction,
	}).Info("Month-end selection completed")

	return selections, codes
}
