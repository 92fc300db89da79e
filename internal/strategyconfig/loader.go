package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis-momentum/pkg/config"
)

// DefaultStrategyID is used when the strategy is built from env configuration
const DefaultStrategyID = "momentum_monthly"

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy yaml: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds the effective strategy from environment configuration
func FromEnv(cfg *config.Config) *Config {
	return &Config{
		Meta: Meta{StrategyID: DefaultStrategyID, Version: "env"},
		Data: Data{
			Source:      cfg.Data.Source,
			Dir:         cfg.Data.Dir,
			Ext:         cfg.Data.Ext,
			PriceColumn: cfg.Backtest.PriceColumn,
		},
		Universe: Universe{
			StartDate: cfg.Backtest.StartDate,
			EndDate:   cfg.Backtest.EndDate,
		},
		Selection: Selection{TopFraction: cfg.Backtest.TopFraction},
		Holding:   Holding{Policy: cfg.Backtest.HoldPolicy},
		Report:    Report{Dir: cfg.Backtest.ReportDir, Formats: []string{"csv", "xlsx"}},
	}
}

// ApplyTo overrides env configuration with every value set in the strategy file
func (c *Config) ApplyTo(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&cfg.Data.Source, c.Data.Source)
	set(&cfg.Data.Dir, c.Data.Dir)
	set(&cfg.Data.Ext, c.Data.Ext)
	set(&cfg.Backtest.PriceColumn, c.Data.PriceColumn)
	set(&cfg.Backtest.StartDate, c.Universe.StartDate)
	set(&cfg.Backtest.EndDate, c.Universe.EndDate)
	set(&cfg.Backtest.HoldPolicy, c.Holding.Policy)
	set(&cfg.Backtest.ReportDir, c.Report.Dir)
	if c.Selection.TopFraction != 0 {
		cfg.Backtest.TopFraction = c.Selection.TopFraction
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewDecisionSnapshot creates a snapshot for the report summary
func NewDecisionSnapshot(cfg *Config, yamlData []byte, gitCommit, dataSnapshotID string) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	if yamlData == nil {
		if yamlData, err = yaml.Marshal(cfg); err != nil {
			return nil, fmt.Errorf("encode strategy yaml: %w", err)
		}
	}

	return &DecisionSnapshot{
		ConfigHash:     hash,
		ConfigYAML:     string(yamlData),
		StrategyID:     cfg.Meta.StrategyID,
		GitCommit:      gitCommit,
		DataSnapshotID: dataSnapshotID,
		CreatedAt:      time.Now(),
	}, nil
}
