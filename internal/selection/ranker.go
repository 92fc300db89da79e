package selection

import (
	"math"
	"sort"
)

// RankedCode is one instrument's cross-sectional rank on a single date
type RankedCode struct {
	Code       string  `json:"code"`
	Value      float64 `json:"value"`
	Rank       int     `json:"rank"`       // 1 = 최대값
	Percentile float64 `json:"percentile"` // rank / 유효값 개수
}

// RankDescending ranks values from largest to smallest.
// Tied values all receive the largest rank of their tie group. NaN values are not ranked.
// The result is ordered by rank, then code.
func RankDescending(values map[string]float64) []RankedCode {
	ranked := make([]RankedCode, 0, len(values))
	for code, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ranked = append(ranked, RankedCode{Code: code, Value: v})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Code < ranked[j].Code
	})

	n := len(ranked)
	for i := 0; i < n; {
		j := i
		for j < n && ranked[j].Value == ranked[i].Value {
			j++
		}
		// 동점 그룹은 그룹 내 최대 순위를 공유
		for k := i; k < j; k++ {
			ranked[k].Rank = j
			ranked[k].Percentile = float64(j) / float64(n)
		}
		i = j
	}

	return ranked
}
