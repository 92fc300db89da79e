package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/external/naver"
	"github.com/wonny/aegis-momentum/internal/s0_data"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// PriceFetcher downloads daily bars of one instrument
type PriceFetcher interface {
	FetchPrices(ctx context.Context, code string, from, to time.Time) ([]naver.PriceData, error)
}

// PriceSink persists daily bars (Postgres data.daily_prices)
type PriceSink interface {
	SaveBatch(ctx context.Context, prices []s0_data.DailyPrice) (int, error)
}

// Collector orchestrates price collection into the CSV directory and, optionally, Postgres
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	fetcher PriceFetcher
	csvDir  string
	sink    PriceSink
	logger  *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int  // Number of concurrent workers
	Merge   bool // 기존 CSV와 병합 (증분 수집)
}

// NewCollector creates a new Collector. csvDir may be empty and sink may be nil, not both.
func NewCollector(fetcher PriceFetcher, csvDir string, sink PriceSink, log *logger.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		csvDir:  csvDir,
		sink:    sink,
		logger:  log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	StockCode  string
	PriceCount int
	Saved      int
	Path       string
	Error      error
}

// FetchAllPrices fetches and stores prices for every code
func (c *Collector) FetchAllPrices(ctx context.Context, codes []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	if c.csvDir == "" && c.sink == nil {
		return nil, errors.New("collector has no destination")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_count": len(codes),
		"from":        from.Format(contracts.DateLayout),
		"to":          to.Format(contracts.DateLayout),
		"workers":     cfg.Workers,
	}).Info("Starting price collection")

	// Create worker pool
	resultCh := make(chan FetchResult, len(codes))
	codeCh := make(chan string, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, codeCh, resultCh, from, to, cfg.Merge)
		}(i)
	}

	for _, code := range codes {
		codeCh <- code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FetchResult, 0, len(codes))
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StockCode < results[j].StockCode })

	c.logger.WithFields(map[string]interface{}{
		"success": len(results) - failCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Price collection completed")

	return results, ctx.Err()
}

// priceWorker processes price fetching for stocks
func (c *Collector) priceWorker(ctx context.Context, workerID int, codeCh <-chan string, resultCh chan<- FetchResult, from, to time.Time, merge bool) {
	for code := range codeCh {
		if err := ctx.Err(); err != nil {
			resultCh <- FetchResult{StockCode: code, Error: err}
			continue
		}

		result := c.collectOne(ctx, code, from, to, merge)
		if result.Error != nil {
			c.logger.WithError(result.Error).WithFields(map[string]interface{}{
				"worker":     workerID,
				"stock_code": code,
			}).Error("Failed to collect prices")
		}
		resultCh <- result
	}
}

func (c *Collector) collectOne(ctx context.Context, code string, from, to time.Time, merge bool) FetchResult {
	result := FetchResult{StockCode: code}

	prices, err := c.fetcher.FetchPrices(ctx, code, from, to)
	if err != nil {
		result.Error = fmt.Errorf("fetch prices: %w", err)
		return result
	}
	result.PriceCount = len(prices)
	if len(prices) == 0 {
		return result
	}

	table := naver.ToPriceTable(code, prices)

	if c.csvDir != "" {
		out := table
		if merge {
			if out, err = c.mergeExisting(table); err != nil {
				result.Error = err
				return result
			}
		}
		if result.Path, err = s0_data.WritePriceCSV(c.csvDir, out); err != nil {
			result.Error = fmt.Errorf("write csv: %w", err)
			return result
		}
	}

	if c.sink != nil {
		rows, err := s0_data.PricesFromTable(table)
		if err != nil {
			result.Error = err
			return result
		}
		if result.Saved, err = c.sink.SaveBatch(ctx, rows); err != nil {
			result.Error = fmt.Errorf("save prices: %w", err)
			return result
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": code,
		"count":      result.PriceCount,
	}).Debug("Collected prices")
	return result
}

// mergeExisting merges fresh rows into <csvDir>/<code>.csv; fresh values win on the same date
func (c *Collector) mergeExisting(fresh *contracts.PriceTable) (*contracts.PriceTable, error) {
	f, err := os.Open(filepath.Join(c.csvDir, fresh.Code+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open existing csv: %w", err)
	}
	defer f.Close()

	existing, err := s0_data.ReadPriceCSV(fresh.Code, f)
	if err != nil {
		return nil, fmt.Errorf("read existing csv: %w", err)
	}
	return MergeTables(existing, fresh)
}

// MergeTables unions two tables of the same instrument by date.
// b overrides a on shared dates; columns missing on either side become NaN.
func MergeTables(a, b *contracts.PriceTable) (*contracts.PriceTable, error) {
	columns := make(map[string]struct{})
	for _, t := range []*contracts.PriceTable{a, b} {
		for name := range t.Columns {
			columns[name] = struct{}{}
		}
	}

	rows := make(map[string]map[string]float64)
	for _, t := range []*contracts.PriceTable{a, b} {
		for i, raw := range t.Dates {
			d, err := contracts.ParseDate(raw)
			if err != nil {
				return nil, &contracts.FormatError{Code: t.Code, Value: raw, Reason: "unparseable date"}
			}
			key := d.Format(contracts.DateLayout)
			row := make(map[string]float64, len(columns))
			for name := range columns {
				row[name] = math.NaN()
				if col, ok := t.Columns[name]; ok {
					row[name] = col[i]
				}
			}
			rows[key] = row
		}
	}

	out := contracts.NewPriceTable(b.Code)
	for key := range rows {
		out.Dates = append(out.Dates, key)
	}
	sort.Strings(out.Dates)

	for name := range columns {
		col := make([]float64, len(out.Dates))
		for i, key := range out.Dates {
			col[i] = rows[key][name]
		}
		out.Columns[name] = col
	}
	return out, nil
}
