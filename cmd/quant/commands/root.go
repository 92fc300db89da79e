package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	logLevel     string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Aegis Momentum - 월간 모멘텀 백테스터",
	Long: `Aegis Momentum Unified CLI

월말 수익률 상위 종목을 선정하여 다음 달 보유하는 횡단면 모멘텀 백테스터.
S0 시세 로드 → S1 월간 수익률 → 선정 → 트레이드북 → 라이프사이클 → 누적 수익률.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run --start 2010-01-01 --top 0.15
  go run ./cmd/quant backtest buyhold 005930 --start 2020-01-01
  go run ./cmd/quant fetcher prices --market kospi --limit 200
  go run ./cmd/quant data-check
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "전략 YAML 파일 (예: config/strategy/momentum_monthly.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "로그 레벨 (debug|info|warn|error, 기본: LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (= --log-level debug)")
}
