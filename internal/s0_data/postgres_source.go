package s0_data

import (
	"context"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// PostgresSource serves price tables from data.daily_prices
type PostgresSource struct {
	repo   *PriceRepository
	logger *logger.Logger
}

// NewPostgresSource creates a source backed by repo
func NewPostgresSource(repo *PriceRepository, log *logger.Logger) *PostgresSource {
	return &PostgresSource{repo: repo, logger: log}
}

// Codes returns all stored stock codes
func (s *PostgresSource) Codes(ctx context.Context) ([]string, error) {
	return s.repo.Codes(ctx)
}

// Load reads one code's full history
func (s *PostgresSource) Load(ctx context.Context, code string) (*contracts.PriceTable, error) {
	prices, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"code": code,
		"rows": len(prices),
	}).Debug("Loaded prices from database")

	return TableFromPrices(code, prices), nil
}
