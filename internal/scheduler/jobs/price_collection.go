package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s0_data/collector"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// CacheInvalidator drops cached tables after fresh prices land
type CacheInvalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// PriceCollectionJob refreshes recent prices of every known instrument
// ⭐ SSOT: 가격 수집 스케줄은 이 Job에서만
type PriceCollectionJob struct {
	collector *collector.Collector
	codes     contracts.PriceSource
	cache     CacheInvalidator
	lookback  int
	workers   int
	logger    *logger.Logger

	now func() time.Time
}

// NewPriceCollectionJob creates a new price collection job. cache may be nil.
func NewPriceCollectionJob(col *collector.Collector, codes contracts.PriceSource, cache CacheInvalidator, workers int, log *logger.Logger) *PriceCollectionJob {
	return &PriceCollectionJob{
		collector: col,
		codes:     codes,
		cache:     cache,
		lookback:  5,
		workers:   workers,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *PriceCollectionJob) Name() string {
	return "price_collection"
}

// Schedule returns the cron schedule (평일 16:00, 장 마감 후)
func (j *PriceCollectionJob) Schedule() string {
	return "0 0 16 * * 1-5"
}

// Run fetches the last few days and merges them into the price files
func (j *PriceCollectionJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled price collection")

	codes, err := j.codes.Codes(ctx)
	if err != nil {
		return fmt.Errorf("list instruments: %w", err)
	}
	if len(codes) == 0 {
		return contracts.ErrNoInstruments
	}

	to := j.now()
	from := to.AddDate(0, 0, -j.lookback)

	results, err := j.collector.FetchAllPrices(ctx, codes, from, to, collector.Config{Workers: j.workers, Merge: true})
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		if j.cache != nil {
			if err := j.cache.Invalidate(ctx, r.StockCode); err != nil {
				j.logger.WithError(err).WithField("code", r.StockCode).Warn("Cache invalidation failed")
			}
		}
	}

	if failed == len(results) {
		return fmt.Errorf("all %d instruments failed", failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"total":  len(results),
		"failed": failed,
	}).Info("Scheduled price collection completed")
	return nil
}
