package strategyconfig

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/selection"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Data ===
	switch cfg.Data.Source {
	case "", "csv", "postgres":
	default:
		return ValidationError{"data.source", "must be csv or postgres"}
	}

	// === Universe ===
	var start time.Time
	if cfg.Universe.StartDate != "" {
		t, err := time.Parse(contracts.DateLayout, cfg.Universe.StartDate)
		if err != nil {
			return ValidationError{"universe.start_date", "must be YYYY-MM-DD"}
		}
		start = t
	}
	if cfg.Universe.EndDate != "" {
		end, err := time.Parse(contracts.DateLayout, cfg.Universe.EndDate)
		if err != nil {
			return ValidationError{"universe.end_date", "must be YYYY-MM-DD"}
		}
		if !start.IsZero() && !end.After(start) {
			return ValidationError{"universe.end_date", "must be after start_date"}
		}
	}
	if err := validatePctRange(cfg.Universe.Quality.MinCoverage, "universe.quality.min_coverage"); err != nil {
		return err
	}

	// === Selection ===
	if cfg.Selection.TopFraction != 0 {
		if _, err := selection.NormalizeFraction(cfg.Selection.TopFraction); err != nil {
			return ValidationError{"selection.top_fraction", "must be in (0, 1] or a percentage in [1, 100]"}
		}
	}

	// === Holding ===
	if _, err := backtest.ParseHoldPolicy(cfg.Holding.Policy); err != nil {
		return ValidationError{"holding.policy", err.Error()}
	}

	// === Report ===
	for i, f := range cfg.Report.Formats {
		if f != "csv" && f != "xlsx" {
			return ValidationError{fmt.Sprintf("report.formats[%d]", i), "must be csv or xlsx"}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Selection.TopFraction >= 1 {
		warnings = append(warnings, Warning{
			Code:    "PERCENT_FRACTION",
			Message: fmt.Sprintf("top_fraction %v는 퍼센트로 해석됨 (%.4f)", cfg.Selection.TopFraction, cfg.Selection.TopFraction/100),
		})
	}

	if p, err := selection.NormalizeFraction(cfg.Selection.TopFraction); err == nil && p > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_SELECTION",
			Message: "top_fraction > 50%: 모멘텀 효과 희석",
		})
	}

	if policy, _ := backtest.ParseHoldPolicy(cfg.Holding.Policy); policy == backtest.HoldSignalMonth {
		warnings = append(warnings, Warning{
			Code:    "SIGNAL_MONTH_HOLD",
			Message: "signal_month: 월말 신호는 같은 달 잔여 거래일이 있을 때만 진입",
		})
	}

	return warnings
}

// validatePctRange는 비율 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
