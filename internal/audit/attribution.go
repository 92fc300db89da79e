package audit

import (
	"math"
	"sort"

	"github.com/wonny/aegis-momentum/internal/backtest"
)

// Attribution represents one instrument's contribution to the strategy
type Attribution struct {
	Code         string  `json:"code"`
	Trades       int     `json:"trades"`
	GapTrades    int     `json:"gap_trades"`   // data gap으로 수익률 없는 거래
	Contribution float64 `json:"contribution"` // Σ ln(exit/entry)
	AvgReturn    float64 `json:"avg_return"`   // 평균 exit/entry
}

// AnalyzeAttribution groups closed trades by instrument, ordered by code
func (a *Analyzer) AnalyzeAttribution(trades []backtest.Trade) []Attribution {
	byCode := make(map[string]*Attribution)
	sums := make(map[string]float64)

	for _, t := range trades {
		attr, ok := byCode[t.Code]
		if !ok {
			attr = &Attribution{Code: t.Code}
			byCode[t.Code] = attr
		}
		attr.Trades++
		if math.IsNaN(t.Return) || t.Return <= 0 {
			attr.GapTrades++
			continue
		}
		attr.Contribution += math.Log(t.Return)
		sums[t.Code] += t.Return
	}

	attrs := make([]Attribution, 0, len(byCode))
	for code, attr := range byCode {
		if valid := attr.Trades - attr.GapTrades; valid > 0 {
			attr.AvgReturn = sums[code] / float64(valid)
		}
		attrs = append(attrs, *attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Code < attrs[j].Code })

	a.logger.WithField("instruments", len(attrs)).Debug("Attribution analysis completed")

	return attrs
}

// GetTopContributors returns top contributing instruments
func (a *Analyzer) GetTopContributors(attrs []Attribution, limit int) []Attribution {
	return rankContributors(attrs, limit, func(x, y float64) bool { return x > y })
}

// GetBottomContributors returns worst contributing instruments
func (a *Analyzer) GetBottomContributors(attrs []Attribution, limit int) []Attribution {
	return rankContributors(attrs, limit, func(x, y float64) bool { return x < y })
}

func rankContributors(attrs []Attribution, limit int, better func(x, y float64) bool) []Attribution {
	if len(attrs) == 0 {
		return attrs
	}

	sorted := make([]Attribution, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return better(sorted[i].Contribution, sorted[j].Contribution)
	})

	if limit > len(sorted) || limit <= 0 {
		limit = len(sorted)
	}

	return sorted[:limit]
}
