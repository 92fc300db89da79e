package s0_data

import (
	"context"
	"math"
	"time"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
	"github.com/wonny/aegis-momentum/pkg/redis"
)

// CachedSource puts a Redis cache in front of another PriceSource.
// Cache failures are logged and fall through to the inner source.
type CachedSource struct {
	inner  contracts.PriceSource
	cache  *redis.Cache
	name   string
	ttl    time.Duration
	logger *logger.Logger
}

// cachedTable is the JSON form of a PriceTable. NaN is not valid JSON, so gaps are nulls.
type cachedTable struct {
	Code    string                `json:"code"`
	Dates   []string              `json:"dates"`
	Columns map[string][]*float64 `json:"columns"`
}

// NewCachedSource wraps inner. name distinguishes cache keys of different sources.
func NewCachedSource(inner contracts.PriceSource, cache *redis.Cache, name string, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{inner: inner, cache: cache, name: name, ttl: ttl, logger: log}
}

// Codes always asks the inner source so new instruments show up immediately
func (s *CachedSource) Codes(ctx context.Context) ([]string, error) {
	return s.inner.Codes(ctx)
}

// Load returns the cached table or loads and caches it
func (s *CachedSource) Load(ctx context.Context, code string) (*contracts.PriceTable, error) {
	key := redis.PriceTableKey(s.name, code)

	var cached cachedTable
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("code", code).Warn("Price cache read failed")
	}
	if found {
		s.logger.WithField("code", code).Debug("Price cache hit")
		return cached.toTable(), nil
	}

	table, err := s.inner.Load(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, fromTable(table), s.ttl); err != nil {
		s.logger.WithError(err).WithField("code", code).Warn("Price cache write failed")
	}
	return table, nil
}

// Invalidate drops the cached table of code
func (s *CachedSource) Invalidate(ctx context.Context, code string) error {
	return s.cache.Delete(ctx, redis.PriceTableKey(s.name, code))
}

func fromTable(t *contracts.PriceTable) cachedTable {
	c := cachedTable{
		Code:    t.Code,
		Dates:   t.Dates,
		Columns: make(map[string][]*float64, len(t.Columns)),
	}
	for name, col := range t.Columns {
		out := make([]*float64, len(col))
		for i := range col {
			if !math.IsNaN(col[i]) {
				v := col[i]
				out[i] = &v
			}
		}
		c.Columns[name] = out
	}
	return c
}

func (c cachedTable) toTable() *contracts.PriceTable {
	t := contracts.NewPriceTable(c.Code)
	t.Dates = c.Dates
	for name, col := range c.Columns {
		out := make([]float64, len(col))
		for i, v := range col {
			out[i] = fromNullable(v)
		}
		t.Columns[name] = out
	}
	return t
}
