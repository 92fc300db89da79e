package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// HoldPolicy decides which bucket a holding run is bound to
type HoldPolicy string

const (
	// HoldSignalMonth binds the run to the month of the Ready day.
	// A Ready on an instrument's last trading day of a month never enters.
	HoldSignalMonth HoldPolicy = "signal_month"
	// HoldEntryMonth binds the run to the month of the entry day,
	// so a month-end signal holds through the following month.
	HoldEntryMonth HoldPolicy = "entry_month"
)

// ParseHoldPolicy validates a policy name. Empty means HoldSignalMonth.
func ParseHoldPolicy(s string) (HoldPolicy, error) {
	switch HoldPolicy(s) {
	case "", HoldSignalMonth:
		return HoldSignalMonth, nil
	case HoldEntryMonth:
		return HoldEntryMonth, nil
	default:
		return "", fmt.Errorf("unknown hold policy %q (want %s or %s)", s, HoldSignalMonth, HoldEntryMonth)
	}
}

// lifecycleState is the fold state carried across days for one instrument
type lifecycleState struct {
	activeMonth string
	inPosition  bool
}

// simulateInstrument turns Ready marks into Buy runs for one instrument column
func simulateInstrument(cells []Cell, yearMonths []string, policy HoldPolicy) {
	var st lifecycleState

	for t := range cells {
		// 1. 진입: 전일 Ready, 금일 Empty
		if cells[t].State == Empty && t > 0 && cells[t-1].State == Ready {
			st.activeMonth = yearMonths[t-1]
			if policy == HoldEntryMonth {
				st.activeMonth = yearMonths[t]
			}
			st.inPosition = true
		}

		// 2. 보유: 같은 달 안에서만
		if cells[t].State == Empty && st.inPosition && yearMonths[t] == st.activeMonth {
			cells[t].State = Buy
		}

		// 3. 리셋
		if cells[t].State == Empty {
			st = lifecycleState{}
		}
	}
}

// SimulateLifecycle runs the lifecycle state machine over every instrument.
// Instruments own disjoint columns, so they are processed in parallel.
func SimulateLifecycle(ctx context.Context, book *TradeBook, policy HoldPolicy, workers int) error {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := range book.Codes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			simulateInstrument(book.Positions[c], book.YearMonths, policy)
			return nil
		})
	}
	return g.Wait()
}
