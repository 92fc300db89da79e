package commands

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s0_data"
	"github.com/wonny/aegis-momentum/internal/strategyconfig"
	"github.com/wonny/aegis-momentum/pkg/config"
	"github.com/wonny/aegis-momentum/pkg/database"
	"github.com/wonny/aegis-momentum/pkg/logger"
	"github.com/wonny/aegis-momentum/pkg/redis"
)

// cacheKeyPrefix namespaces every Redis key of this service
const cacheKeyPrefix = "aegis-momentum"

// appContext bundles what every command needs
type appContext struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config // --strategy 파일 (없으면 nil)
}

// loadApp resolves env config → strategy file → global flags, in that order
func loadApp() (*appContext, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Strategy file overrides env defaults
	var strategy *strategyconfig.Config
	if strategyFile != "" {
		strategy, _, err = strategyconfig.Load(strategyFile)
		if err != nil {
			return nil, fmt.Errorf("load strategy: %w", err)
		}
		strategy.ApplyTo(cfg)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 3. Initialize logger
	log := logger.New(cfg)

	if strategy != nil {
		for _, w := range strategyconfig.Warn(strategy) {
			log.WithField("code", w.Code).Warn(w.Message)
		}
	}

	return &appContext{cfg: cfg, log: log, strategy: strategy}, nil
}

// effectiveStrategy is the strategy after env, file and flag overrides
func (a *appContext) effectiveStrategy() *strategyconfig.Config {
	eff := strategyconfig.FromEnv(a.cfg)
	if a.strategy != nil {
		eff.Meta = a.strategy.Meta
		eff.Universe.Quality = a.strategy.Universe.Quality
		if len(a.strategy.Report.Formats) > 0 {
			eff.Report.Formats = a.strategy.Report.Formats
		}
	}
	return eff
}

// snapshot records the effective strategy for the report summary
func (a *appContext) snapshot(dataID string) *strategyconfig.DecisionSnapshot {
	snap, err := strategyconfig.NewDecisionSnapshot(a.effectiveStrategy(), nil, gitCommit(), dataID)
	if err != nil {
		a.log.WithError(err).Warn("Decision snapshot unavailable")
		return nil
	}
	return snap
}

func gitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// priceStore is an opened price source plus the connections behind it
type priceStore struct {
	source contracts.PriceSource
	cached *s0_data.CachedSource // Redis 사용 시
	db     *database.DB          // DATA_SOURCE=postgres 또는 --db
	redis  *redis.Client
}

// Close releases the connections
func (s *priceStore) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// openPriceStore builds the configured PriceSource: CSV directory or Postgres, optionally Redis-cached
func openPriceStore(ctx context.Context, app *appContext) (*priceStore, error) {
	cfg, log := app.cfg, app.log
	store := &priceStore{}

	switch cfg.Data.Source {
	case "postgres":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		store.db = db
		store.source = s0_data.NewPostgresSource(s0_data.NewPriceRepository(db.Pool), log)
		log.Info("Using postgres price source")
	default:
		store.source = s0_data.NewCSVSource(cfg.Data.Dir, cfg.Data.Ext, log)
		log.WithField("dir", cfg.Data.Dir).Info("Using CSV price source")
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			// 캐시 없이 계속 진행
			log.WithError(err).Warn("Redis unavailable, continuing without cache")
			return store, nil
		}
		store.redis = rc
		store.cached = s0_data.NewCachedSource(store.source, redis.NewCache(rc, cacheKeyPrefix), cfg.Data.Source, cfg.Redis.TTL, log)
		store.source = store.cached
	}

	return store, nil
}
