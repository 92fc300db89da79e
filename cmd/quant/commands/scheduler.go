package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/reporting"
	"github.com/wonny/aegis-momentum/internal/s0_data/collector"
	"github.com/wonny/aegis-momentum/internal/scheduler"
	"github.com/wonny/aegis-momentum/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run momentum_backtest`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- price_collection: 평일 16:00 (최근 일봉 병합 + 캐시 무효화)
- momentum_backtest: BACKTEST_SCHEDULE (기본 평일 18:30, 리포트 저장)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Momentum Scheduler ===")

	sched, store, err := initScheduler(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	for _, name := range sched.GetAllJobs() {
		if next, err := sched.NextRun(name); err == nil {
			fmt.Printf("  - %-20s next: %s\n", name, next.Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nStopping scheduler...")
	sched.Stop()
	fmt.Println("✅ Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, store, err := initScheduler(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	PrintHeader("Registered Jobs")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  %-20s %s\n", name, stats[name].Schedule)
	}
	fmt.Println()
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, store, err := initScheduler(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("🚀 Running job: %s\n", jobName)

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return err
	}

	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 10)
	if !result.Success {
		PrintError(result.Error)
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed", jobName))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, store, err := initScheduler(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	stats := sched.GetJobStats()

	PrintHeader("Job Status")
	widths := []int{20, 16, 6, 8, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "RUNS", "SUCCESS", "NEXT"}, widths)
	for _, name := range sched.GetAllJobs() {
		s := stats[name]
		next := "-"
		if t, err := sched.NextRun(name); err == nil && !t.IsZero() {
			next = t.Format("2006-01-02 15:04")
		}
		PrintTableRow([]string{
			name,
			s.Schedule,
			fmt.Sprintf("%d", s.TotalRuns),
			fmt.Sprintf("%.0f%%", s.SuccessRate*100),
			next,
		}, widths)
	}
	fmt.Println()
	PrintInfo("실행 이력은 스케줄러 프로세스 메모리에만 보관됩니다")
	return nil
}

// initScheduler wires the price collection and backtest jobs
func initScheduler(ctx context.Context) (*scheduler.Scheduler, *priceStore, error) {
	app, err := loadApp()
	if err != nil {
		return nil, nil, err
	}
	cfg, log := app.cfg, app.log

	store, err := openPriceStore(ctx, app)
	if err != nil {
		return nil, nil, err
	}

	startDate, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("invalid start date %q: %w", cfg.Backtest.StartDate, err)
	}
	policy, err := backtest.ParseHoldPolicy(cfg.Backtest.HoldPolicy)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	sched := scheduler.New(log)

	// 1. Price collection (CSV 소스일 때만 파일을 갱신)
	if cfg.Data.Source == "csv" {
		col := collector.NewCollector(newNaverClient(app), cfg.Data.Dir, nil, log)
		var priceJob *jobs.PriceCollectionJob
		if store.cached != nil {
			priceJob = jobs.NewPriceCollectionJob(col, store.source, store.cached, cfg.Data.Workers, log)
		} else {
			priceJob = jobs.NewPriceCollectionJob(col, store.source, nil, cfg.Data.Workers, log)
		}
		if err := sched.AddJob(priceJob); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("add price collection job: %w", err)
		}
	}

	// 2. Momentum backtest
	formats := []string{reporting.FormatCSV, reporting.FormatXLSX}
	if app.strategy != nil && len(app.strategy.Report.Formats) > 0 {
		formats = app.strategy.Report.Formats
	}
	backtestJob := jobs.NewBacktestJob(
		store.source,
		backtest.Config{
			StartDate:   startDate,
			PriceColumn: cfg.Backtest.PriceColumn,
			TopFraction: cfg.Backtest.TopFraction,
			HoldPolicy:  policy,
			Workers:     cfg.Data.Workers,
		},
		reporting.NewExporter(cfg.Backtest.ReportDir, log),
		formats,
		app.snapshot(cfg.Data.Source),
		cfg.Backtest.Schedule,
		log,
	)
	if err := sched.AddJob(backtestJob); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("add backtest job: %w", err)
	}

	return sched, store, nil
}
