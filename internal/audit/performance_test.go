package audit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC)
}

func sampleResult() *backtest.Result {
	dates := []time.Time{day(0), day(1), day(2), day(3), day(4)}
	return &backtest.Result{
		MaxDrawdown: 0.1,
		Trades: []backtest.Trade{
			{Code: "A", Return: 1.1},
			{Code: "A", Return: 1.2},
			{Code: "B", Return: 0.9},
			{Code: "C", Return: math.NaN()},
		},
		Book: &backtest.TradeBook{
			Dates:     dates,
			AccReturn: []float64{1, 1, 1.1, 1.1, 0.99},
		},
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	report, err := a.Analyze(sampleResult(), nil)
	require.NoError(t, err)

	assert.Equal(t, day(0), report.StartDate)
	assert.Equal(t, day(4), report.EndDate)
	assert.Equal(t, 4, report.Days)
	assert.InDelta(t, -0.01, report.TotalReturn, 1e-9)
	assert.Equal(t, 0.1, report.MaxDrawdown)
	assert.Greater(t, report.Volatility, 0.0)
	assert.Less(t, report.Sharpe, 0.0)

	// NaN 수익률 거래는 제외
	assert.InDelta(t, 2.0/3.0, report.WinRate, 1e-9)
	assert.InDelta(t, 0.15, report.AvgWin, 1e-9)
	assert.InDelta(t, -0.1, report.AvgLoss, 1e-9)
	assert.InDelta(t, 3.0, report.ProfitFactor, 1e-9)

	assert.Empty(t, report.BenchmarkCode)
	assert.Zero(t, report.Beta)
}

func TestAnalyzer_Benchmark(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	// 벤치마크 일간 수익률 = 전략의 절반 → beta 2
	benchAcc := []float64{1, 1, 1.05, 1.05, 0.9975}
	bench := &backtest.BuyHoldResult{Code: "069500", FinalReturn: 0.9975}
	for i, acc := range benchAcc {
		bench.Curve = append(bench.Curve, backtest.BuyHoldPoint{Date: day(i), AccReturn: acc})
	}

	report, err := a.Analyze(sampleResult(), bench)
	require.NoError(t, err)

	assert.Equal(t, "069500", report.BenchmarkCode)
	assert.InDelta(t, -0.0025, report.Benchmark, 1e-9)
	assert.InDelta(t, -0.0075, report.Alpha, 1e-9)
	assert.InDelta(t, 2.0, report.Beta, 1e-9)
}

func TestAnalyzer_NoCurve(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	_, err := a.Analyze(&backtest.Result{}, nil)
	assert.ErrorIs(t, err, ErrNoCurve)

	_, err = a.Analyze(nil, nil)
	assert.ErrorIs(t, err, ErrNoCurve)
}

func TestAnalyzer_RiskFreeRate(t *testing.T) {
	flat := &backtest.Result{Book: &backtest.TradeBook{
		Dates:     []time.Time{day(0), day(1), day(2)},
		AccReturn: []float64{1, 1.01, 1.0},
	}}

	base, err := NewAnalyzer(logger.NewNop()).Analyze(flat, nil)
	require.NoError(t, err)
	zero, err := NewAnalyzer(logger.NewNop()).WithRiskFreeRate(0).Analyze(flat, nil)
	require.NoError(t, err)

	assert.Greater(t, zero.Sharpe, base.Sharpe)
}

func TestAnalyzer_Attribution(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	attrs := a.AnalyzeAttribution(sampleResult().Trades)
	require.Len(t, attrs, 3)

	assert.Equal(t, "A", attrs[0].Code)
	assert.Equal(t, 2, attrs[0].Trades)
	assert.InDelta(t, math.Log(1.1)+math.Log(1.2), attrs[0].Contribution, 1e-9)
	assert.InDelta(t, 1.15, attrs[0].AvgReturn, 1e-9)

	assert.Equal(t, "C", attrs[2].Code)
	assert.Equal(t, 1, attrs[2].GapTrades)
	assert.Zero(t, attrs[2].Contribution)

	top := a.GetTopContributors(attrs, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].Code)

	bottom := a.GetBottomContributors(attrs, 1)
	require.Len(t, bottom, 1)
	assert.Equal(t, "B", bottom[0].Code)

	assert.Len(t, a.GetTopContributors(attrs, 0), 3)
	assert.Empty(t, a.GetTopContributors(nil, 5))
}
