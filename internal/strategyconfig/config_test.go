package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/pkg/config"
)

const validYAML = `
meta:
  strategy_id: momentum_test
  version: "0.1.0"
data:
  source: csv
  dir: ./testdata
  ext: csv
  price_column: Close
universe:
  start_date: "2015-01-01"
  end_date: "2020-12-31"
  quality:
    min_coverage: 0.8
selection:
  top_fraction: 0.2
holding:
  policy: entry_month
report:
  dir: ./out
  formats: [csv]
`

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, raw, err := Load(writeYAML(t, validYAML))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "momentum_test", cfg.Meta.StrategyID)
	assert.Equal(t, "Close", cfg.Data.PriceColumn)
	assert.Equal(t, "2015-01-01", cfg.Universe.StartDate)
	assert.InDelta(t, 0.8, cfg.Universe.Quality.MinCoverage, 1e-12)
	assert.InDelta(t, 0.2, cfg.Selection.TopFraction, 1e-12)
	assert.Equal(t, "entry_month", cfg.Holding.Policy)
	assert.Equal(t, []string{"csv"}, cfg.Report.Formats)
}

func TestLoadRepositoryStrategy(t *testing.T) {
	cfg, _, err := Load(filepath.Join("..", "..", "config", "strategy", "momentum_monthly.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategyID, cfg.Meta.StrategyID)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadUnknownField(t *testing.T) {
	body := validYAML + "\nselection_extra: 1\n"
	_, _, err := Load(writeYAML(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selection_extra")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse([]byte(validYAML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"unknown source", func(c *Config) { c.Data.Source = "parquet" }, "data.source"},
		{"bad start date", func(c *Config) { c.Universe.StartDate = "2015/01/01" }, "universe.start_date"},
		{"bad end date", func(c *Config) { c.Universe.EndDate = "soon" }, "universe.end_date"},
		{"end before start", func(c *Config) { c.Universe.EndDate = "2014-12-31" }, "universe.end_date"},
		{"coverage out of range", func(c *Config) { c.Universe.Quality.MinCoverage = 1.5 }, "universe.quality.min_coverage"},
		{"negative fraction", func(c *Config) { c.Selection.TopFraction = -0.1 }, "selection.top_fraction"},
		{"fraction above 100", func(c *Config) { c.Selection.TopFraction = 150 }, "selection.top_fraction"},
		{"unknown policy", func(c *Config) { c.Holding.Policy = "forever" }, "holding.policy"},
		{"unknown report format", func(c *Config) { c.Report.Formats = []string{"csv", "pdf"} }, "report.formats[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateAcceptsPercent(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	cfg.Selection.TopFraction = 15
	assert.NoError(t, Validate(cfg))
}

func TestWarn(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		policy   string
		want     []string
	}{
		{"clean", 0.15, "entry_month", nil},
		{"percent", 15, "entry_month", []string{"PERCENT_FRACTION"}},
		{"wide", 0.8, "entry_month", []string{"WIDE_SELECTION"}},
		{"signal month", 0.15, "", []string{"SIGNAL_MONTH_HOLD"}},
		{"everything", 80, "signal_month", []string{"PERCENT_FRACTION", "WIDE_SELECTION", "SIGNAL_MONTH_HOLD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Selection: Selection{TopFraction: tt.fraction},
				Holding:   Holding{Policy: tt.policy},
			}

			var codes []string
			for _, w := range Warn(cfg) {
				codes = append(codes, w.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	a, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	b.Selection.TopFraction = 0.3
	hc, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestNewDecisionSnapshot(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	snap, err := NewDecisionSnapshot(cfg, []byte(validYAML), "abc123", "csv:42")
	require.NoError(t, err)
	assert.Equal(t, "momentum_test", snap.StrategyID)
	assert.Equal(t, validYAML, snap.ConfigYAML)
	assert.Equal(t, "abc123", snap.GitCommit)
	assert.Equal(t, "csv:42", snap.DataSnapshotID)
	assert.False(t, snap.CreatedAt.IsZero())

	// YAML이 없으면 Config에서 재생성
	snap, err = NewDecisionSnapshot(cfg, nil, "", "")
	require.NoError(t, err)
	assert.Contains(t, snap.ConfigYAML, "strategy_id: momentum_test")
}

func TestApplyTo(t *testing.T) {
	env := &config.Config{
		Data: config.DataConfig{Source: "postgres", Dir: "./data/csv/", Ext: "csv", Workers: 4},
		Backtest: config.BacktestConfig{
			StartDate:   "2010-01-01",
			PriceColumn: "Adj Close",
			TopFraction: 0.15,
			HoldPolicy:  "signal_month",
			ReportDir:   "./data/reports/",
		},
	}

	cfg := &Config{
		Data:      Data{Dir: "/prices", PriceColumn: "Close"},
		Selection: Selection{TopFraction: 0.3},
		Holding:   Holding{Policy: "entry_month"},
	}
	cfg.ApplyTo(env)

	assert.Equal(t, "postgres", env.Data.Source, "unset values keep env defaults")
	assert.Equal(t, "/prices", env.Data.Dir)
	assert.Equal(t, "Close", env.Backtest.PriceColumn)
	assert.Equal(t, "2010-01-01", env.Backtest.StartDate)
	assert.InDelta(t, 0.3, env.Backtest.TopFraction, 1e-12)
	assert.Equal(t, "entry_month", env.Backtest.HoldPolicy)
	assert.Equal(t, "./data/reports/", env.Backtest.ReportDir)
}

func TestFromEnvRoundTrip(t *testing.T) {
	env := &config.Config{
		Data:     config.DataConfig{Source: "csv", Dir: "./d", Ext: "txt"},
		Backtest: config.BacktestConfig{StartDate: "2012-03-01", PriceColumn: "Close", TopFraction: 10, HoldPolicy: "entry_month"},
	}

	cfg := FromEnv(env)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultStrategyID, cfg.Meta.StrategyID)
	assert.Equal(t, "txt", cfg.Data.Ext)
	assert.InDelta(t, 10, cfg.Selection.TopFraction, 1e-12)
}
