package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Price data
	Data DataConfig

	// Momentum backtest defaults
	Backtest BacktestConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Naver NaverConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DataConfig describes where instrument price series come from
type DataConfig struct {
	Source  string // csv, postgres
	Dir     string // 종목별 CSV 디렉토리 (파일명 = 종목코드)
	Ext     string // 파일 확장자 (기본: csv)
	Workers int    // 동시 로드 개수
}

// BacktestConfig holds the momentum pipeline defaults
type BacktestConfig struct {
	StartDate   string
	EndDate     string // buy-and-hold 전용, 비어있으면 오늘
	PriceColumn string
	TopFraction float64
	HoldPolicy  string // signal_month, entry_month
	ReportDir   string
	Schedule    string // cron (초 포함 6필드)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL      string
	ChartURL     string
	RequestsPerS float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Data: DataConfig{
			Source:  getEnv("DATA_SOURCE", "csv"),
			Dir:     getEnv("DATA_DIR", "./data/csv/"),
			Ext:     getEnv("DATA_EXT", "csv"),
			Workers: getEnvAsInt("LOAD_WORKERS", 4),
		},

		Backtest: BacktestConfig{
			StartDate:   getEnv("START_DATE", "2010-01-01"),
			EndDate:     getEnv("END_DATE", ""),
			PriceColumn: getEnv("PRICE_COLUMN", "Adj Close"),
			TopFraction: getEnvAsFloat("TOP_FRACTION", 0.15),
			HoldPolicy:  getEnv("HOLD_POLICY", "signal_month"),
			ReportDir:   getEnv("REPORT_DIR", "./data/reports/"),
			Schedule:    getEnv("BACKTEST_SCHEDULE", "0 30 18 * * 1-5"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_PRICE_TTL", "24h"),
		},

		Naver: NaverConfig{
			BaseURL:      getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			ChartURL:     getEnv("NAVER_CHART_URL", "https://fchart.stock.naver.com"),
			RequestsPerS: getEnvAsFloat("NAVER_RPS", 5),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Dir == "" {
			return fmt.Errorf("DATA_DIR is required when DATA_SOURCE=csv")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be one of: csv, postgres")
	}

	if c.Data.Workers < 1 {
		return fmt.Errorf("LOAD_WORKERS must be >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
