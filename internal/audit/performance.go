package audit

import (
	"errors"
	"math"
	"time"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// 연간 거래일 수
const tradingDaysPerYear = 252

// ErrNoCurve is returned when a result carries no trade book
var ErrNoCurve = errors.New("backtest result has no return curve")

// Analyzer computes risk-adjusted statistics of a finished backtest
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	riskFreeRate float64
	logger       *logger.Logger
}

// NewAnalyzer creates a new performance analyzer (무위험 수익률 3%)
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{
		riskFreeRate: 0.03,
		logger:       log,
	}
}

// WithRiskFreeRate overrides the annual risk-free rate
func (a *Analyzer) WithRiskFreeRate(rate float64) *Analyzer {
	a.riskFreeRate = rate
	return a
}

// PerformanceReport represents performance analysis report
type PerformanceReport struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`

	// 수익률
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	// 리스크 지표
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"`

	// 트레이딩 지표
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`

	// 비교 (벤치마크 지정 시)
	BenchmarkCode string  `json:"benchmark_code,omitempty"`
	Benchmark     float64 `json:"benchmark"`
	Alpha         float64 `json:"alpha"`
	Beta          float64 `json:"beta"`
}

// Analyze derives the report from the acc_rtn curve and the trade list.
// benchmark may be nil.
func (a *Analyzer) Analyze(result *backtest.Result, benchmark *backtest.BuyHoldResult) (*PerformanceReport, error) {
	if result == nil || result.Book == nil || result.Book.Days() == 0 {
		return nil, ErrNoCurve
	}
	book := result.Book

	report := &PerformanceReport{
		StartDate:   book.Dates[0],
		EndDate:     book.Dates[len(book.Dates)-1],
		MaxDrawdown: result.MaxDrawdown,
	}

	dailyReturns := curveReturns(book.AccReturn)
	report.Days = len(dailyReturns)

	// 수익률
	report.TotalReturn = a.calculateTotalReturn(dailyReturns)
	report.AnnualReturn = a.annualize(report.TotalReturn, len(dailyReturns))

	// 리스크 지표
	report.Volatility = a.calculateVolatility(dailyReturns)
	report.Sharpe = a.calculateSharpe(report.AnnualReturn, report.Volatility)
	report.Sortino = a.calculateSortino(dailyReturns)

	// 트레이딩 지표
	report.WinRate = a.calculateWinRate(result.Trades)
	report.AvgWin, report.AvgLoss = a.calculateAvgWinLoss(result.Trades)
	report.ProfitFactor = a.calculateProfitFactor(result.Trades)

	// 벤치마크 비교
	if benchmark != nil && len(benchmark.Curve) > 0 {
		report.BenchmarkCode = benchmark.Code
		report.Benchmark = benchmark.FinalReturn - 1
		report.Alpha = report.TotalReturn - report.Benchmark
		report.Beta = a.calculateBeta(book.Dates, book.AccReturn, benchmark)
	}

	a.logger.WithFields(map[string]interface{}{
		"total_return": report.TotalReturn,
		"sharpe":       report.Sharpe,
		"max_drawdown": report.MaxDrawdown,
		"win_rate":     report.WinRate,
	}).Info("Performance analysis completed")

	return report, nil
}

// curveReturns turns a cumulative curve into simple day-over-day returns
func curveReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 || math.IsNaN(curve[i]) || math.IsNaN(curve[i-1]) {
			continue
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}
	return returns
}

// calculateTotalReturn calculates cumulative return
func (a *Analyzer) calculateTotalReturn(dailyReturns []float64) float64 {
	cumReturn := 1.0
	for _, r := range dailyReturns {
		cumReturn *= (1.0 + r)
	}
	return cumReturn - 1.0
}

// annualize converts return to annualized return
func (a *Analyzer) annualize(totalReturn float64, days int) float64 {
	if days == 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1.0+totalReturn, tradingDaysPerYear/float64(days)) - 1.0
}

// calculateVolatility calculates annualized volatility
func (a *Analyzer) calculateVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}

	mean := average(dailyReturns)

	var variance float64
	for _, r := range dailyReturns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(dailyReturns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// calculateSharpe calculates Sharpe ratio
func (a *Analyzer) calculateSharpe(annualReturn, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualReturn - a.riskFreeRate) / volatility
}

// calculateSortino calculates Sortino ratio
func (a *Analyzer) calculateSortino(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}

	// Downside deviation (only negative returns)
	var sumSquaredNegative float64
	var countNegative int
	for _, r := range dailyReturns {
		if r < 0 {
			sumSquaredNegative += r * r
			countNegative++
		}
	}

	if countNegative == 0 {
		return 0
	}

	downsideVol := math.Sqrt(sumSquaredNegative/float64(countNegative)) * math.Sqrt(tradingDaysPerYear)
	if downsideVol == 0 {
		return 0
	}

	annualReturn := a.annualize(a.calculateTotalReturn(dailyReturns), len(dailyReturns))
	return (annualReturn - a.riskFreeRate) / downsideVol
}

// tradePnL is the trade's simple return; gap closes carry none
func tradePnL(t backtest.Trade) (float64, bool) {
	if math.IsNaN(t.Return) || math.IsInf(t.Return, 0) {
		return 0, false
	}
	return t.Return - 1, true
}

// calculateWinRate calculates win rate from trades with a known return
func (a *Analyzer) calculateWinRate(trades []backtest.Trade) float64 {
	wins, total := 0, 0
	for _, t := range trades {
		pnl, ok := tradePnL(t)
		if !ok {
			continue
		}
		total++
		if pnl > 0 {
			wins++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// calculateAvgWinLoss calculates average win and loss
func (a *Analyzer) calculateAvgWinLoss(trades []backtest.Trade) (float64, float64) {
	var sumWin, sumLoss float64
	var countWin, countLoss int

	for _, t := range trades {
		pnl, ok := tradePnL(t)
		if !ok {
			continue
		}
		if pnl > 0 {
			sumWin += pnl
			countWin++
		} else if pnl < 0 {
			sumLoss += pnl
			countLoss++
		}
	}

	avgWin := 0.0
	if countWin > 0 {
		avgWin = sumWin / float64(countWin)
	}

	avgLoss := 0.0
	if countLoss > 0 {
		avgLoss = sumLoss / float64(countLoss)
	}

	return avgWin, avgLoss
}

// calculateProfitFactor calculates profit factor
func (a *Analyzer) calculateProfitFactor(trades []backtest.Trade) float64 {
	var totalWin, totalLoss float64

	for _, t := range trades {
		pnl, ok := tradePnL(t)
		if !ok {
			continue
		}
		if pnl > 0 {
			totalWin += pnl
		} else if pnl < 0 {
			totalLoss += math.Abs(pnl)
		}
	}

	if totalLoss == 0 {
		return 0
	}

	return totalWin / totalLoss
}

// calculateBeta regresses strategy daily returns on the benchmark over common consecutive days
func (a *Analyzer) calculateBeta(dates []time.Time, curve []float64, benchmark *backtest.BuyHoldResult) float64 {
	benchAcc := make(map[time.Time]float64, len(benchmark.Curve))
	for _, p := range benchmark.Curve {
		benchAcc[p.Date] = p.AccReturn
	}

	var strat, bench []float64
	for i := 1; i < len(dates); i++ {
		prev, okPrev := benchAcc[dates[i-1]]
		cur, okCur := benchAcc[dates[i]]
		if !okPrev || !okCur || prev == 0 || curve[i-1] == 0 {
			continue
		}
		strat = append(strat, curve[i]/curve[i-1]-1)
		bench = append(bench, cur/prev-1)
	}

	if len(bench) < 2 {
		return 0
	}

	meanS, meanB := average(strat), average(bench)
	var cov, variance float64
	for i := range bench {
		cov += (strat[i] - meanS) * (bench[i] - meanB)
		variance += (bench[i] - meanB) * (bench[i] - meanB)
	}
	if variance == 0 {
		return 0
	}
	return cov / variance
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
