package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/reporting"
	"github.com/wonny/aegis-momentum/internal/strategyconfig"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// BacktestJob re-runs the momentum backtest and exports reports
// ⭐ SSOT: 백테스트 스케줄은 이 Job에서만
type BacktestJob struct {
	source   contracts.PriceSource
	config   backtest.Config
	exporter *reporting.Exporter
	formats  []string
	snapshot *strategyconfig.DecisionSnapshot
	schedule string
	logger   *logger.Logger

	mu   sync.RWMutex
	last *backtest.Result
}

// NewBacktestJob creates a new backtest job
func NewBacktestJob(
	source contracts.PriceSource,
	cfg backtest.Config,
	exporter *reporting.Exporter,
	formats []string,
	snapshot *strategyconfig.DecisionSnapshot,
	schedule string,
	log *logger.Logger,
) *BacktestJob {
	return &BacktestJob{
		source:   source,
		config:   cfg,
		exporter: exporter,
		formats:  formats,
		snapshot: snapshot,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "momentum_backtest"
}

// Schedule returns the cron schedule (기본: 평일 18:30, 수집 이후)
func (j *BacktestJob) Schedule() string {
	return j.schedule
}

// MaxRetries disables scheduler retries: format and gap errors are terminal
func (j *BacktestJob) MaxRetries() int {
	return 0
}

// LastResult returns the result of the latest successful run
func (j *BacktestJob) LastResult() *backtest.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// Run executes the backtest and writes the reports
func (j *BacktestJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled backtest")

	result, err := backtest.NewEngine(j.source, j.logger).Run(ctx, j.config)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	paths, err := j.exporter.Export(result, j.formats, j.snapshot)
	if err != nil {
		return fmt.Errorf("export reports: %w", err)
	}
	j.mu.Lock()
	j.last = result
	j.mu.Unlock()

	j.logger.WithFields(map[string]interface{}{
		"final_return": result.FinalReturn,
		"trades":       result.TotalTrades,
		"files":        len(paths),
	}).Info("Scheduled backtest completed")
	return nil
}
