package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s1_universe"
	"github.com/wonny/aegis-momentum/internal/selection"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Engine runs the monthly momentum backtest
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	source contracts.PriceSource
	logger *logger.Logger
}

// Config holds backtest configuration
type Config struct {
	StartDate   time.Time
	PriceColumn string
	TopFraction float64 // 0.15 또는 15 (>= 1이면 % 단위)
	HoldPolicy  HoldPolicy
	Workers     int
}

// Result holds backtest results
type Result struct {
	Config      Config        `json:"config"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	Duration    time.Duration `json:"duration"`
	TradingDays int           `json:"trading_days"`
	Instruments int           `json:"instruments"`
	MonthEnds   int           `json:"month_ends"`
	Selections  int           `json:"selections"`

	// Performance metrics
	FinalReturn float64 `json:"final_return"` // 누적 수익률 (1.0 = 원금)
	TotalReturn float64 `json:"total_return"` // FinalReturn - 1
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"max_drawdown"`

	// Trading metrics
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgTradeReturn float64 `json:"avg_trade_return"`
	SkippedCloses  int     `json:"skipped_closes"`

	Trades    []Trade                   `json:"trades"`
	CloseDays []DailyClose              `json:"close_days"`
	DataGaps  []*contracts.DataGapError `json:"-"`
	Book      *TradeBook                `json:"-"`
}

// NewEngine creates a new backtest engine
func NewEngine(source contracts.PriceSource, log *logger.Logger) *Engine {
	return &Engine{source: source, logger: log}
}

// Run executes load → select → trade book → lifecycle → returns
func (e *Engine) Run(ctx context.Context, config Config) (*Result, error) {
	if config.PriceColumn == "" {
		config.PriceColumn = contracts.ColumnAdjClose
	}
	if config.HoldPolicy == "" {
		config.HoldPolicy = HoldSignalMonth
	}

	e.logger.WithFields(map[string]interface{}{
		"start_date":   config.StartDate.Format(contracts.DateLayout),
		"price_column": config.PriceColumn,
		"top_fraction": config.TopFraction,
		"hold_policy":  string(config.HoldPolicy),
	}).Info("Starting backtest")

	startTime := time.Now()

	selector, err := selection.NewSelector(config.TopFraction, e.logger)
	if err != nil {
		return nil, err
	}

	// 1. 전 종목 로드 (동기화 지점)
	universe, err := s1_universe.NewLoader(e.source, config.Workers, e.logger).
		Load(ctx, config.StartDate, config.PriceColumn)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	// 2. 월말 선정
	selections, codes := selector.Select(universe.MonthEnds)
	if config.HoldPolicy == HoldSignalMonth && selections.TotalSelections() > 0 {
		// 선정일은 모두 월말 → signal_month 에서는 결측 외에 체결되지 않음
		e.logger.WithFields(map[string]interface{}{
			"hold_policy": string(config.HoldPolicy),
			"selections":  selections.TotalSelections(),
		}).Warn("Selections fall on month-ends; signal_month holds only across data gaps, use entry_month for trades")
	}

	// 3. 트레이드북
	book, err := BuildTradeBook(universe.Rows, selections, codes)
	if err != nil {
		return nil, fmt.Errorf("build trade book: %w", err)
	}

	// 4. 라이프사이클 (전 종목 완료 후 5단계 진행)
	if err := SimulateLifecycle(ctx, book, config.HoldPolicy, config.Workers); err != nil {
		return nil, fmt.Errorf("simulate lifecycle: %w", err)
	}

	// 5. 수익률
	acc, err := AccumulateReturns(ctx, book, config.Workers, e.logger)
	if err != nil {
		return nil, fmt.Errorf("accumulate returns: %w", err)
	}

	result := &Result{
		Config:        config,
		Duration:      time.Since(startTime),
		TradingDays:   book.Days(),
		Instruments:   len(book.Codes),
		MonthEnds:     selections.Len(),
		Selections:    selections.TotalSelections(),
		FinalReturn:   acc.FinalReturn,
		Trades:        acc.Trades,
		CloseDays:     acc.CloseDays,
		DataGaps:      acc.Gaps,
		SkippedCloses: acc.SkippedCloses,
		Book:          book,
	}
	if book.Days() > 0 {
		result.StartDate = book.Dates[0]
		result.EndDate = book.Dates[book.Days()-1]
	}

	calculateMetrics(result)

	e.logger.WithFields(map[string]interface{}{
		"duration":     result.Duration.Seconds(),
		"trading_days": result.TradingDays,
		"instruments":  result.Instruments,
		"trades":       result.TotalTrades,
		"data_gaps":    len(result.DataGaps),
		"final_return": fmt.Sprintf("%.4f", result.FinalReturn),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

// calculateMetrics fills the performance and trading metrics
func calculateMetrics(result *Result) {
	result.TotalReturn = result.FinalReturn - 1

	years := result.EndDate.Sub(result.StartDate).Hours() / 24 / 365.25
	if years > 0 && result.FinalReturn > 0 {
		result.CAGR = math.Pow(result.FinalReturn, 1.0/years) - 1.0
	}

	if result.Book != nil {
		result.MaxDrawdown = calculateMaxDrawdown(result.Book.AccReturn)
	}

	sum := 0.0
	for _, tr := range result.Trades {
		if math.IsNaN(tr.Return) {
			continue
		}
		result.TotalTrades++
		sum += tr.Return
		switch {
		case tr.Return > 1:
			result.WinningTrades++
		case tr.Return < 1:
			result.LosingTrades++
		}
	}
	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
		result.AvgTradeReturn = sum / float64(result.TotalTrades)
	}
}

// calculateMaxDrawdown calculates maximum drawdown of a cumulative curve
func calculateMaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0]

	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	return maxDrawdown
}
