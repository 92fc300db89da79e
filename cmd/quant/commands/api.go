package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-momentum/internal/api"
	"github.com/wonny/aegis-momentum/internal/api/handlers"
	"github.com/wonny/aegis-momentum/internal/s0_data/quality"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 모멘텀 백테스트 / 매수 후 보유 엔드포인트 제공
- 데이터 품질 조회 엔드포인트 제공

Endpoints:
  GET  /health                         - Health check
  GET  /api/backtest/momentum          - 모멘텀 백테스트 (?start&top&policy&column&book)
  GET  /api/backtest/buyhold/{code}    - 매수 후 보유 (?start&end&column)
  GET  /api/data/instruments           - 종목 목록
  GET  /api/data/quality               - 데이터 품질 리포트

Example:
  go run ./cmd/quant api
  PORT=9000 go run ./cmd/quant api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Momentum API Server ===")

	app, err := loadApp()
	if err != nil {
		return err
	}
	cfg, log := app.cfg, app.log

	store, err := openPriceStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	defer store.Close()

	minCoverage := defaultMinCoverage
	if app.strategy != nil && app.strategy.Universe.Quality.MinCoverage > 0 {
		minCoverage = app.strategy.Universe.Quality.MinCoverage
	}
	gate := quality.NewQualityGate(store.source, quality.Config{
		PriceColumn: cfg.Backtest.PriceColumn,
		MinCoverage: minCoverage,
	})

	backtestHandler := handlers.NewBacktestHandler(store.source, cfg.Backtest, cfg.Data.Workers, log)
	dataHandler := handlers.NewDataHandler(store.source, gate, log)

	// nil *database.DB를 인터페이스로 넘기지 않도록 분기
	var health api.HealthChecker
	if store.db != nil {
		health = store.db
	}
	router := api.NewRouter(backtestHandler, dataHandler, health, log)

	server := api.New(cfg, log, router)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/backtest/momentum")
	fmt.Println("  GET  /api/backtest/buyhold/{code}")
	fmt.Println("  GET  /api/data/instruments")
	fmt.Println("  GET  /api/data/quality")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
