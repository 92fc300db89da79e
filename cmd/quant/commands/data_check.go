package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s0_data/quality"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "시세 데이터 상태 확인",
	Long: `가격 소스의 종목별 데이터 상태를 확인합니다.

확인 항목:
- 종목 수
- 종목별 행 수 / 기간
- 가격 열 커버리지 (결측, 0 이하 가격)
- 날짜 파싱 오류 / 중복 날짜

Example:
  go run ./cmd/quant data-check
  go run ./cmd/quant data-check --min-coverage 0.95 --failed-only`,
	RunE: runDataCheck,
}

var (
	dataCheckMinCoverage float64
	dataCheckFailedOnly  bool
)

// defaultMinCoverage applies when neither the flag nor the strategy file sets one
const defaultMinCoverage = 0.9

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().Float64Var(&dataCheckMinCoverage, "min-coverage", 0, "유효 가격 비율 하한 (0.0 ~ 1.0)")
	dataCheckCmd.Flags().BoolVar(&dataCheckFailedOnly, "failed-only", false, "실패 종목만 출력")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Momentum Data Check ===")

	app, err := loadApp()
	if err != nil {
		return err
	}

	minCoverage := defaultMinCoverage
	if app.strategy != nil && app.strategy.Universe.Quality.MinCoverage > 0 {
		minCoverage = app.strategy.Universe.Quality.MinCoverage
	}
	if dataCheckMinCoverage > 0 {
		minCoverage = dataCheckMinCoverage
	}

	store, err := openPriceStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	defer store.Close()

	gate := quality.NewQualityGate(store.source, quality.Config{
		PriceColumn: app.cfg.Backtest.PriceColumn,
		MinCoverage: minCoverage,
	})

	report, err := gate.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("quality check: %w", err)
	}

	fmt.Printf("\n📊 %s 가격 열 상태 (source: %s)\n", app.cfg.Backtest.PriceColumn, app.cfg.Data.Source)
	PrintDoubleSeparator()

	widths := []int{10, 8, 8, 10, 10, 6, 4}
	PrintTableHeader([]string{"CODE", "ROWS", "COVER", "FIRST", "LAST", "BAD", "OK"}, widths)
	for _, r := range report.Instruments {
		passed := r.Passed(minCoverage)
		if dataCheckFailedOnly && passed {
			continue
		}
		mark := "✅"
		if !passed {
			mark = "❌"
		}
		PrintTableRow([]string{
			r.Code,
			formatNumber(int64(r.Rows)),
			fmt.Sprintf("%.1f%%", r.Coverage*100),
			formatDay(r.First),
			formatDay(r.Last),
			fmt.Sprintf("%d", r.BadDates+r.Duplicates+r.NonPositive),
			mark,
		}, widths)
		if r.Error != "" {
			fmt.Printf("  ↳ %s\n", r.Error)
		}
	}
	fmt.Println()

	PrintKeyValue("종목 수", fmt.Sprintf("%d", len(report.Instruments)), 14)
	PrintKeyValue("평균 커버리지", fmt.Sprintf("%.1f%%", report.QualityScore*100), 14)
	PrintKeyValue("커버리지 하한", fmt.Sprintf("%.1f%%", minCoverage*100), 14)
	PrintKeyValue("실패 종목", fmt.Sprintf("%d", len(report.Failed)), 14)
	fmt.Println()

	if report.Passed {
		PrintSuccess("모든 종목이 품질 기준을 충족합니다")
	} else {
		PrintWarning(fmt.Sprintf("%d개 종목이 품질 기준 미달: 결측 구간은 백테스트에서 data gap으로 처리됩니다", len(report.Failed)))
	}

	return nil
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(contracts.DateLayout)
}
