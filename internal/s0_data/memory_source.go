package s0_data

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// MemorySource serves tables held in memory (tests, API uploads)
type MemorySource struct {
	mu     sync.RWMutex
	tables map[string]*contracts.PriceTable
}

// NewMemorySource creates a source holding tables, keyed by table code
func NewMemorySource(tables ...*contracts.PriceTable) *MemorySource {
	s := &MemorySource{tables: make(map[string]*contracts.PriceTable, len(tables))}
	for _, t := range tables {
		s.tables[t.Code] = t
	}
	return s
}

// Put adds or replaces a table
func (s *MemorySource) Put(table *contracts.PriceTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Code] = table
}

// Codes returns the stored codes, sorted
func (s *MemorySource) Codes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.tables))
	for code := range s.tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// Load returns the stored table for code
func (s *MemorySource) Load(ctx context.Context, code string) (*contracts.PriceTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[code]
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q", code)
	}
	return t, nil
}
