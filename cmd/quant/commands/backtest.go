package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-momentum/internal/audit"
	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/reporting"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "월간 모멘텀 백테스트",
	Long: `월말마다 해당 월 수익률 상위 종목을 선정하고 다음 거래일부터 보유합니다.

파이프라인:
- S0: 종목별 시세 로드 (CSV 디렉토리 / Postgres, Redis 캐시)
- S1: 월간 수익률 (월 첫 가격 / 월 마지막 가격)
- 선정: 월말 기준 상위 top fraction
- 트레이드북 → 라이프사이클 → 누적 수익률

Example:
  go run ./cmd/quant backtest run --start 2010-01-01 --top 0.15
  go run ./cmd/quant backtest run --policy entry_month --export csv,xlsx
  go run ./cmd/quant backtest buyhold 005930 --start 2020-01-01`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "모멘텀 백테스트 실행",
		Long: `모멘텀 백테스트를 실행합니다.

Flags:
  --start       시작 날짜 (YYYY-MM-DD, 기본: START_DATE)
  --top         상위 비율 (0.15 또는 15, 기본: TOP_FRACTION)
  --policy      보유 규칙 (signal_month | entry_month)
  --column      가격 열 (기본: Adj Close)
  --workers     동시 처리 종목 수
  --export      리포트 형식 (csv,xlsx)
  --report-dir  리포트 디렉토리 (기본: REPORT_DIR)
  --trades      출력할 최근 거래 수
  --benchmark   비교 종목 코드 (매수 후 보유)`,
		RunE: runBacktest,
	}

	backtestBuyHoldCmd = &cobra.Command{
		Use:   "buyhold [code]",
		Short: "단일 종목 매수 후 보유 수익률",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuyHold,
	}

	// Flags
	backtestStart     string
	backtestEnd       string
	backtestTop       float64
	backtestPolicy    string
	backtestColumn    string
	backtestWorkers   int
	backtestExport    []string
	backtestReportDir string
	backtestShowTrade int
	backtestBenchmark string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestBuyHoldCmd)

	backtestRunCmd.Flags().StringVar(&backtestStart, "start", "", "시작 날짜 (YYYY-MM-DD)")
	backtestRunCmd.Flags().Float64Var(&backtestTop, "top", 0, "상위 비율 (0.15 또는 15)")
	backtestRunCmd.Flags().StringVar(&backtestPolicy, "policy", "", "보유 규칙 (signal_month|entry_month)")
	backtestRunCmd.Flags().StringVar(&backtestColumn, "column", "", "가격 열")
	backtestRunCmd.Flags().IntVar(&backtestWorkers, "workers", 0, "동시 처리 종목 수 (기본: LOAD_WORKERS)")
	backtestRunCmd.Flags().StringSliceVar(&backtestExport, "export", nil, "리포트 형식 (csv,xlsx)")
	backtestRunCmd.Flags().StringVar(&backtestReportDir, "report-dir", "", "리포트 디렉토리")
	backtestRunCmd.Flags().IntVar(&backtestShowTrade, "trades", 10, "출력할 최근 거래 수")
	backtestRunCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "비교 종목 코드 (예: 069500)")

	backtestBuyHoldCmd.Flags().StringVar(&backtestStart, "start", "", "시작 날짜 (YYYY-MM-DD)")
	backtestBuyHoldCmd.Flags().StringVar(&backtestEnd, "end", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestBuyHoldCmd.Flags().StringVar(&backtestColumn, "column", "", "가격 열")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Momentum Backtest ===")

	app, err := loadApp()
	if err != nil {
		return err
	}
	bt := &app.cfg.Backtest

	// CLI flags override env and strategy file
	if backtestStart != "" {
		bt.StartDate = backtestStart
	}
	if backtestTop != 0 {
		bt.TopFraction = backtestTop
	}
	if backtestPolicy != "" {
		bt.HoldPolicy = backtestPolicy
	}
	if backtestColumn != "" {
		bt.PriceColumn = backtestColumn
	}
	if backtestReportDir != "" {
		bt.ReportDir = backtestReportDir
	}
	workers := app.cfg.Data.Workers
	if backtestWorkers > 0 {
		workers = backtestWorkers
	}

	startDate, err := time.Parse(contracts.DateLayout, bt.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", bt.StartDate, err)
	}
	policy, err := backtest.ParseHoldPolicy(bt.HoldPolicy)
	if err != nil {
		return err
	}

	fmt.Printf("\n📅 Start: %s\n", startDate.Format(contracts.DateLayout))
	fmt.Printf("🏆 Top Fraction: %v\n", bt.TopFraction)
	fmt.Printf("📌 Hold Policy: %s\n", policy)
	fmt.Printf("💲 Price Column: %s\n", bt.PriceColumn)
	fmt.Printf("🗂  Source: %s\n\n", app.cfg.Data.Source)

	store, err := openPriceStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("🚀 Starting backtest...")

	result, err := backtest.NewEngine(store.source, app.log).Run(cmd.Context(), backtest.Config{
		StartDate:   startDate,
		PriceColumn: bt.PriceColumn,
		TopFraction: bt.TopFraction,
		HoldPolicy:  policy,
		Workers:     workers,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(result, backtestShowTrade)

	var bench *backtest.BuyHoldResult
	if backtestBenchmark != "" {
		table, err := store.source.Load(cmd.Context(), backtestBenchmark)
		if err != nil {
			return fmt.Errorf("load benchmark %s: %w", backtestBenchmark, err)
		}
		if bench, err = backtest.BuyAndHold(table, bt.StartDate, "", bt.PriceColumn, app.log); err != nil {
			return fmt.Errorf("benchmark %s: %w", backtestBenchmark, err)
		}
	}
	analyzer := audit.NewAnalyzer(app.log)
	if report, err := analyzer.Analyze(result, bench); err == nil {
		printPerformance(report)
	}
	printContributors(analyzer, result.Trades)

	formats := backtestExport
	if len(formats) == 0 && app.strategy != nil {
		formats = app.strategy.Report.Formats
	}
	if len(formats) > 0 {
		dataID := fmt.Sprintf("%s:%d:%s", app.cfg.Data.Source, result.Instruments, result.EndDate.Format(contracts.DateLayout))
		paths, err := reporting.NewExporter(bt.ReportDir, app.log).Export(result, formats, app.snapshot(dataID))
		if err != nil {
			return fmt.Errorf("export reports: %w", err)
		}
		fmt.Println("📁 Reports")
		PrintList(paths)
		fmt.Println()
	}

	return nil
}

func printBacktestResult(result *backtest.Result, showTrades int) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	// Summary
	fmt.Println("📊 Summary")
	fmt.Printf("Period:       %s ~ %s (%d trading days)\n",
		result.StartDate.Format(contracts.DateLayout),
		result.EndDate.Format(contracts.DateLayout),
		result.TradingDays)
	fmt.Printf("Instruments:  %d\n", result.Instruments)
	fmt.Printf("Month Ends:   %d (%d selections)\n", result.MonthEnds, result.Selections)
	fmt.Printf("Duration:     %.2f seconds\n", result.Duration.Seconds())
	fmt.Println()

	// Performance
	fmt.Println("💰 Performance")
	fmt.Printf("Final Return:    %s\n", formatRatio(result.FinalReturn))
	fmt.Printf("Total Return:    %s\n", formatPct(result.TotalReturn))
	fmt.Printf("CAGR:            %s\n", formatPct(result.CAGR))
	fmt.Printf("Max Drawdown:    %.2f%%", result.MaxDrawdown*100)
	if result.MaxDrawdown < 0.10 {
		fmt.Print(" 🌟 (Excellent)")
	} else if result.MaxDrawdown < 0.20 {
		fmt.Print(" ✅ (Good)")
	} else if result.MaxDrawdown < 0.30 {
		fmt.Print(" ⚠️  (Fair)")
	} else {
		fmt.Print(" ❌ (High)")
	}
	fmt.Println()
	fmt.Println()

	// Trading Metrics
	fmt.Println("💹 Trading Metrics")
	fmt.Printf("Total Trades:    %s\n", formatNumber(int64(result.TotalTrades)))
	fmt.Printf("Winning Trades:  %d (%.1f%%)\n", result.WinningTrades, result.WinRate*100)
	fmt.Printf("Losing Trades:   %d\n", result.LosingTrades)
	fmt.Printf("Avg Trade:       %s\n", formatRatio(result.AvgTradeReturn))
	fmt.Println()

	if len(result.DataGaps) > 0 || result.SkippedCloses > 0 {
		PrintWarning(fmt.Sprintf("%d trades closed on a data gap, %d closes without a fill", len(result.DataGaps), result.SkippedCloses))
		fmt.Println()
	}

	// Recent trades
	if showTrades > 0 && len(result.Trades) > 0 {
		fmt.Printf("📈 Recent Trades (Last %d)\n", showTrades)
		widths := []int{10, 10, 10, 8, 6}
		PrintTableHeader([]string{"CODE", "ENTRY", "EXIT", "RETURN", "DAYS"}, widths)
		startIdx := len(result.Trades) - showTrades
		if startIdx < 0 {
			startIdx = 0
		}
		for _, tr := range result.Trades[startIdx:] {
			PrintTableRow([]string{
				tr.Code,
				tr.EntryDate.Format(contracts.DateLayout),
				tr.ExitDate.Format(contracts.DateLayout),
				formatRatio(tr.Return),
				fmt.Sprintf("%d", tr.HoldingDays),
			}, widths)
		}
		fmt.Println()
	}

	// Monthly portfolio closes (last 10)
	if len(result.CloseDays) > 0 {
		fmt.Println("📆 Portfolio Closes (Last 10)")
		startIdx := len(result.CloseDays) - 10
		if startIdx < 0 {
			startIdx = 0
		}
		for _, day := range result.CloseDays[startIdx:] {
			fmt.Printf("%s: %d closed, avg %s → acc %s\n",
				day.Date.Format(contracts.DateLayout),
				day.Count,
				formatRatio(day.Average),
				formatRatio(day.AccReturn))
		}
		fmt.Println()
	}
}

func printPerformance(report *audit.PerformanceReport) {
	fmt.Println("📐 Risk-Adjusted")
	fmt.Printf("Annual Return:   %s\n", formatPct(report.AnnualReturn))
	fmt.Printf("Volatility:      %s\n", formatPct(report.Volatility))
	fmt.Printf("Sharpe:          %.2f\n", report.Sharpe)
	fmt.Printf("Sortino:         %.2f\n", report.Sortino)
	fmt.Printf("Avg Win/Loss:    %s / %s\n", formatPct(report.AvgWin), formatPct(report.AvgLoss))
	fmt.Printf("Profit Factor:   %.2f\n", report.ProfitFactor)
	if report.BenchmarkCode != "" {
		fmt.Printf("Benchmark (%s): %s\n", report.BenchmarkCode, formatPct(report.Benchmark))
		fmt.Printf("Alpha:           %s\n", formatPct(report.Alpha))
		fmt.Printf("Beta:            %.2f\n", report.Beta)
	}
	fmt.Println()
}

func printContributors(analyzer *audit.Analyzer, trades []backtest.Trade) {
	attrs := analyzer.AnalyzeAttribution(trades)
	if len(attrs) == 0 {
		return
	}

	widths := []int{10, 6, 12, 10}
	for _, group := range []struct {
		title string
		rows  []audit.Attribution
	}{
		{"🥇 Top Contributors", analyzer.GetTopContributors(attrs, 5)},
		{"🥶 Bottom Contributors", analyzer.GetBottomContributors(attrs, 5)},
	} {
		fmt.Println(group.title)
		PrintTableHeader([]string{"CODE", "TRADES", "LOG RTN", "AVG"}, widths)
		for _, a := range group.rows {
			PrintTableRow([]string{
				a.Code,
				fmt.Sprintf("%d", a.Trades),
				fmt.Sprintf("%+.4f", a.Contribution),
				formatRatio(a.AvgReturn),
			}, widths)
		}
		fmt.Println()
	}
}

func runBuyHold(cmd *cobra.Command, args []string) error {
	code := args[0]

	app, err := loadApp()
	if err != nil {
		return err
	}

	start := backtestStart
	if start == "" {
		start = app.cfg.Backtest.StartDate
	}
	end := backtestEnd
	if end == "" {
		end = app.cfg.Backtest.EndDate
	}
	column := backtestColumn
	if column == "" {
		column = app.cfg.Backtest.PriceColumn
	}

	store, err := openPriceStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	defer store.Close()

	table, err := store.source.Load(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("load %s: %w", code, err)
	}

	result, err := backtest.BuyAndHold(table, start, end, column, app.log)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Buy & Hold: %s", code))
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", result.Start.Format(contracts.DateLayout), result.End.Format(contracts.DateLayout)), 12)
	PrintKeyValue("Days", fmt.Sprintf("%d", len(result.Curve)), 12)
	PrintKeyValue("Final", formatRatio(result.FinalReturn), 12)
	PrintKeyValue("Return", formatPct(result.FinalReturn-1), 12)
	PrintSeparator()

	return nil
}
