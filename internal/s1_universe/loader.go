package s1_universe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Universe is the merged long table of every instrument
// ⭐ SSOT: S1 → 선정/트레이드북 전달
type Universe struct {
	Rows      []MonthlyRow  `json:"rows"`       // 종목 코드순, 종목 내 날짜순
	MonthEnds []MonthEndRow `json:"month_ends"` // 종목별 월말 행
	Codes     []string      `json:"codes"`      // 행이 하나라도 있는 종목 (정렬)
}

// Loader reads every instrument of a PriceSource and builds the Universe
type Loader struct {
	source  contracts.PriceSource
	workers int
	logger  *logger.Logger
}

// NewLoader creates a loader that processes up to workers instruments at once
func NewLoader(source contracts.PriceSource, workers int, log *logger.Logger) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{source: source, workers: workers, logger: log}
}

type instrumentResult struct {
	rows      []MonthlyRow
	monthEnds []MonthEndRow
}

// Load builds the universe from rows on or after start using the price column
func (l *Loader) Load(ctx context.Context, start time.Time, column string) (*Universe, error) {
	codes, err := l.source.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	if len(codes) == 0 {
		return nil, contracts.ErrNoInstruments
	}

	codes = append([]string(nil), codes...)
	sort.Strings(codes)

	// 종목별 결과는 서로 다른 인덱스에만 기록 (공유 상태 없음)
	results := make([]instrumentResult, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, code := range codes {
		g.Go(func() error {
			table, err := l.source.Load(gctx, code)
			if err != nil {
				return fmt.Errorf("load %s: %w", code, err)
			}

			rows, buckets, err := BuildMonthly(table, start, column)
			if err != nil {
				return fmt.Errorf("build monthly %s: %w", code, err)
			}

			results[i] = instrumentResult{rows: rows, monthEnds: ApplyMonthlyReturns(rows)}

			l.logger.WithFields(map[string]interface{}{
				"code":    code,
				"rows":    len(rows),
				"buckets": len(buckets),
			}).Debug("Instrument loaded")
			return nil
		})
	}

	// 모든 종목 로드 완료 후에만 병합
	if err := g.Wait(); err != nil {
		return nil, err
	}

	universe := &Universe{Codes: make([]string, 0, len(codes))}
	for i, code := range codes {
		res := results[i]
		if len(res.rows) == 0 {
			l.logger.WithField("code", code).Debug("Instrument has no rows after start date")
			continue
		}
		universe.Codes = append(universe.Codes, code)
		universe.Rows = append(universe.Rows, res.rows...)
		universe.MonthEnds = append(universe.MonthEnds, res.monthEnds...)
	}

	if len(universe.Codes) == 0 {
		return nil, fmt.Errorf("no rows on or after %s: %w", start.Format(contracts.DateLayout), contracts.ErrNoInstruments)
	}

	l.logger.WithFields(map[string]interface{}{
		"instruments": len(universe.Codes),
		"rows":        len(universe.Rows),
		"month_ends":  len(universe.MonthEnds),
	}).Info("Universe loaded")

	return universe, nil
}
