package strategyconfig

import "time"

// Config는 월간 모멘텀 백테스트 전략의 전체 설정
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Data      Data      `yaml:"data" json:"data"`
	Universe  Universe  `yaml:"universe" json:"universe"`
	Selection Selection `yaml:"selection" json:"selection"`
	Holding   Holding   `yaml:"holding" json:"holding"`
	Report    Report    `yaml:"report" json:"report"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Data S0: 시세 소스
type Data struct {
	Source      string `yaml:"source" json:"source"` // csv, postgres (비어있으면 env)
	Dir         string `yaml:"dir" json:"dir"`
	Ext         string `yaml:"ext" json:"ext"`
	PriceColumn string `yaml:"price_column" json:"price_column"`
}

// Universe S1: 기간 및 품질 기준
type Universe struct {
	StartDate string  `yaml:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate   string  `yaml:"end_date" json:"end_date"`     // buy-and-hold 전용
	Quality   Quality `yaml:"quality" json:"quality"`
}

// Quality 데이터 품질 게이트
type Quality struct {
	MinCoverage float64 `yaml:"min_coverage" json:"min_coverage"` // 0.0 ~ 1.0
}

// Selection 월말 선정
type Selection struct {
	TopFraction float64 `yaml:"top_fraction" json:"top_fraction"` // 0.15 또는 15
}

// Holding 보유 규칙
type Holding struct {
	Policy string `yaml:"policy" json:"policy"` // signal_month, entry_month
}

// Report 결과 출력
type Report struct {
	Dir     string   `yaml:"dir" json:"dir"`
	Formats []string `yaml:"formats" json:"formats"` // csv, xlsx
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash     string    `json:"config_hash"`
	ConfigYAML     string    `json:"config_yaml"`
	StrategyID     string    `json:"strategy_id"`
	GitCommit      string    `json:"git_commit"`
	DataSnapshotID string    `json:"data_snapshot_id"`
	CreatedAt      time.Time `json:"created_at"`
}
