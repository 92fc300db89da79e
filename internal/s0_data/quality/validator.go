package quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// QualityGate checks raw price tables before they enter the pipeline
type QualityGate struct {
	source contracts.PriceSource
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	PriceColumn string  `yaml:"price_column"`
	MinCoverage float64 `yaml:"min_coverage"` // 유효 가격 비율 하한 (0.0 ~ 1.0)
}

// InstrumentReport summarizes one instrument's price table
type InstrumentReport struct {
	Code        string    `json:"code"`
	Rows        int       `json:"rows"`
	ValidPrices int       `json:"valid_prices"`
	BadDates    int       `json:"bad_dates"`
	Duplicates  int       `json:"duplicates"`
	NonPositive int       `json:"non_positive"`
	First       time.Time `json:"first"`
	Last        time.Time `json:"last"`
	Coverage    float64   `json:"coverage"`
	Error       string    `json:"error,omitempty"`
}

// Passed reports whether the instrument meets the coverage floor and has a clean date axis
func (r InstrumentReport) Passed(minCoverage float64) bool {
	return r.Error == "" && r.BadDates == 0 && r.Duplicates == 0 && r.Coverage >= minCoverage
}

// Report is the result of a quality check over a whole source
type Report struct {
	CheckedAt    time.Time          `json:"checked_at"`
	Instruments  []InstrumentReport `json:"instruments"`
	QualityScore float64            `json:"quality_score"` // 평균 커버리지
	Failed       []string           `json:"failed"`
	Passed       bool               `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(source contracts.PriceSource, config Config) *QualityGate {
	if config.PriceColumn == "" {
		config.PriceColumn = contracts.ColumnAdjClose
	}
	return &QualityGate{source: source, config: config}
}

// Check inspects every instrument of the source
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(ctx context.Context) (*Report, error) {
	codes, err := g.source.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	if len(codes) == 0 {
		return nil, contracts.ErrNoInstruments
	}

	report := &Report{CheckedAt: time.Now(), Failed: []string{}}
	total := 0.0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ir := g.inspect(ctx, code)
		report.Instruments = append(report.Instruments, ir)
		total += ir.Coverage
		if !ir.Passed(g.config.MinCoverage) {
			report.Failed = append(report.Failed, code)
		}
	}

	report.QualityScore = total / float64(len(codes))
	report.Passed = len(report.Failed) == 0
	return report, nil
}

func (g *QualityGate) inspect(ctx context.Context, code string) InstrumentReport {
	ir := InstrumentReport{Code: code}

	table, err := g.source.Load(ctx, code)
	if err != nil {
		ir.Error = err.Error()
		return ir
	}
	ir.Rows = table.Len()

	prices, err := table.Column(g.config.PriceColumn)
	if err != nil {
		ir.Error = err.Error()
		return ir
	}

	seen := make(map[time.Time]struct{}, ir.Rows)
	dates := make([]time.Time, 0, ir.Rows)
	for i, raw := range table.Dates {
		d, err := contracts.ParseDate(raw)
		if err != nil {
			ir.BadDates++
			continue
		}
		if _, dup := seen[d]; dup {
			ir.Duplicates++
		}
		seen[d] = struct{}{}
		dates = append(dates, d)

		switch p := prices[i]; {
		case math.IsNaN(p):
		case p <= 0:
			ir.NonPositive++
		default:
			ir.ValidPrices++
		}
	}

	if len(dates) > 0 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		ir.First, ir.Last = dates[0], dates[len(dates)-1]
	}
	if ir.Rows > 0 {
		ir.Coverage = float64(ir.ValidPrices) / float64(ir.Rows)
	}
	return ir
}
