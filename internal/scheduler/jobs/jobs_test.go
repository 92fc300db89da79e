package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/external/naver"
	"github.com/wonny/aegis-momentum/internal/reporting"
	"github.com/wonny/aegis-momentum/internal/s0_data"
	"github.com/wonny/aegis-momentum/internal/scheduler"
	"github.com/wonny/aegis-momentum/internal/s0_data/collector"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

func table(code string, prices ...float64) *contracts.PriceTable {
	t := contracts.NewPriceTable(code)
	t.Dates = []string{"2020-01-30", "2020-01-31", "2020-02-03", "2020-02-04", "2020-02-28", "2020-03-02"}
	t.Columns[contracts.ColumnAdjClose] = prices
	return t
}

func TestBacktestJob(t *testing.T) {
	source := s0_data.NewMemorySource(
		table("A", 10, 12, 13, 14, 15, 16),
		table("B", 20, 18, 17, 17, 16, 15),
	)
	dir := t.TempDir()
	cfg := backtest.Config{
		StartDate:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		TopFraction: 0.6,
		HoldPolicy:  backtest.HoldEntryMonth,
		Workers:     2,
	}

	job := NewBacktestJob(source, cfg, reporting.NewExporter(dir, logger.NewNop()), []string{reporting.FormatCSV}, nil, "0 30 18 * * 1-5", logger.NewNop())
	assert.Equal(t, "momentum_backtest", job.Name())
	assert.Equal(t, "0 30 18 * * 1-5", job.Schedule())
	assert.Nil(t, job.LastResult())

	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.LastResult())
	assert.Equal(t, 2, job.LastResult().Instruments)

	files, err := filepath.Glob(filepath.Join(dir, "momentum_*"))
	require.NoError(t, err)
	assert.Len(t, files, 4, "book, trades, closes, summary")
}

func TestBacktestJobEmptySource(t *testing.T) {
	job := NewBacktestJob(s0_data.NewMemorySource(), backtest.Config{TopFraction: 0.15}, reporting.NewExporter(t.TempDir(), logger.NewNop()), nil, nil, "@daily", logger.NewNop())
	err := job.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoInstruments)
}

// countingSource counts Load calls
type countingSource struct {
	*s0_data.MemorySource
	loads int32
}

func (s *countingSource) Load(ctx context.Context, code string) (*contracts.PriceTable, error) {
	atomic.AddInt32(&s.loads, 1)
	return s.MemorySource.Load(ctx, code)
}

func TestBacktestJobFormatErrorNotRetried(t *testing.T) {
	bad := contracts.NewPriceTable("A")
	bad.Dates = []string{"not-a-date"}
	bad.Columns[contracts.ColumnAdjClose] = []float64{10}
	source := &countingSource{MemorySource: s0_data.NewMemorySource(bad)}

	job := NewBacktestJob(source, backtest.Config{TopFraction: 0.5, Workers: 1}, reporting.NewExporter(t.TempDir(), logger.NewNop()), nil, nil, "@daily", logger.NewNop())
	assert.Equal(t, 0, job.MaxRetries())

	sched := scheduler.New(logger.NewNop()).WithRetry(3, time.Millisecond)
	require.NoError(t, sched.AddJob(job))

	result, err := sched.RunJob(context.Background(), job.Name())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unparseable date")
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.loads))
	assert.Nil(t, job.LastResult())
}

func TestBacktestJobConcurrentLastResult(t *testing.T) {
	source := s0_data.NewMemorySource(
		table("A", 10, 12, 13, 14, 15, 16),
		table("B", 20, 18, 17, 17, 16, 15),
	)
	cfg := backtest.Config{
		StartDate:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		TopFraction: 0.6,
		HoldPolicy:  backtest.HoldEntryMonth,
		Workers:     2,
	}
	job := NewBacktestJob(source, cfg, reporting.NewExporter(t.TempDir(), logger.NewNop()), []string{reporting.FormatCSV}, nil, "@daily", logger.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			assert.NoError(t, job.Run(context.Background()))
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				if r := job.LastResult(); r != nil {
					assert.Equal(t, 2, r.Instruments)
				}
			}
		}()
	}
	wg.Wait()

	require.NotNil(t, job.LastResult())
}

type stubFetcher struct{}

func (stubFetcher) FetchPrices(ctx context.Context, code string, from, to time.Time) ([]naver.PriceData, error) {
	if code == "BAD" {
		return nil, errors.New("boom")
	}
	return []naver.PriceData{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 10, Open: 10, High: 10, Low: 10}}, nil
}

type recordingCache struct {
	mu    sync.Mutex
	codes []string
}

func (c *recordingCache) Invalidate(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
	return nil
}

func TestPriceCollectionJob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "005930.csv"), []byte("Date,Adj Close\n2024-01-01,9\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte("Date,Adj Close\n2024-01-01,9\n"), 0o644))

	source := s0_data.NewCSVSource(dir, "csv", logger.NewNop())
	cache := &recordingCache{}
	col := collector.NewCollector(stubFetcher{}, dir, nil, logger.NewNop())

	job := NewPriceCollectionJob(col, source, cache, 2, logger.NewNop())
	job.now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"005930"}, cache.codes, "failed instruments keep their cache")

	tbl, err := source.Load(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, tbl.Dates)
}

func TestPriceCollectionJobAllFailed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte("Date,Adj Close\n2024-01-01,9\n"), 0o644))

	col := collector.NewCollector(stubFetcher{}, dir, nil, logger.NewNop())
	job := NewPriceCollectionJob(col, s0_data.NewCSVSource(dir, "csv", logger.NewNop()), nil, 1, logger.NewNop())
	assert.Error(t, job.Run(context.Background()))
}
