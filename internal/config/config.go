// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for sqlite databases (always absolute)
	Port         int
	LogLevel     string
	DevMode      bool
	APIAuthToken string

	RedisURL    string // Optional; sqlite cache is used when empty
	DatabaseURL string // Optional Postgres DSN for history; sqlite when empty

	SubtensorURL  string
	DefaultNetuid int
	DefaultHotkey string

	DaturaAPIKey  string
	DaturaBaseURL string
	ChutesAPIKey  string
	ChutesBaseURL string
	ChutesModel   string

	Backup BackupConfig
	Policy Policy
}

// BackupConfig holds S3-compatible storage settings for history backups.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Empty means AWS; set for R2/MinIO
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int // 0 keeps every backup
}

// Enabled reports whether backups can run.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Policy holds the tunable constants of the read path and trading workflow.
// Values come from the environment and may be overridden by a YAML file.
type Policy struct {
	CacheTTL               time.Duration   `yaml:"cache_ttl"`
	ScanCeiling            int             `yaml:"scan_ceiling"`
	MaxConcurrentWorkflows int             `yaml:"max_concurrent_workflows"`
	WorkflowTimeout        time.Duration   `yaml:"workflow_timeout"`
	MaxPosts               int             `yaml:"max_posts"`
	TradeUnit              decimal.Decimal `yaml:"-"`
	MaxTradeAmount         decimal.Decimal `yaml:"-"`
	SentimentCacheTTL      time.Duration   `yaml:"sentiment_cache_ttl"`
	SocialRatePerSecond    float64         `yaml:"social_rate_per_second"`

	TradeUnitRaw      string `yaml:"trade_unit"`
	MaxTradeAmountRaw string `yaml:"max_trade_amount"`
}

// DefaultPolicy returns the built-in policy constants.
func DefaultPolicy() Policy {
	return Policy{
		CacheTTL:               120 * time.Second,
		ScanCeiling:            50,
		MaxConcurrentWorkflows: 20,
		WorkflowTimeout:        5 * time.Minute,
		MaxPosts:               10,
		TradeUnit:              decimal.RequireFromString("0.01"),
		MaxTradeAmount:         decimal.NewFromInt(1),
		SentimentCacheTTL:      60 * time.Second,
		SocialRatePerSecond:    1,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TAO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("PORT", 8000),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		APIAuthToken:  getEnv("API_AUTH_TOKEN", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SubtensorURL:  getEnv("SUBTENSOR_URL", "ws://127.0.0.1:9944"),
		DefaultNetuid: getEnvAsInt("DEFAULT_NETUID", 18),
		DefaultHotkey: getEnv("DEFAULT_HOTKEY", ""),
		DaturaAPIKey:  getEnv("DATURA_API_KEY", ""),
		DaturaBaseURL: getEnv("DATURA_BASE_URL", "https://apis.datura.ai"),
		ChutesAPIKey:  getEnv("CHUTES_API_KEY", ""),
		ChutesBaseURL: getEnv("CHUTES_BASE_URL", "https://llm.chutes.ai/v1"),
		ChutesModel:   getEnv("CHUTES_MODEL", "unsloth/Llama-3.2-3B-Instruct"),
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		Policy: loadPolicyFromEnv(),
	}

	if path := getEnv("POLICY_FILE", ""); path != "" {
		if err := cfg.Policy.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPolicyFromEnv() Policy {
	p := DefaultPolicy()
	p.CacheTTL = getEnvAsDuration("CACHE_TTL", p.CacheTTL)
	p.ScanCeiling = getEnvAsInt("SCAN_CEILING", p.ScanCeiling)
	p.MaxConcurrentWorkflows = getEnvAsInt("MAX_CONCURRENT_WORKFLOWS", p.MaxConcurrentWorkflows)
	p.WorkflowTimeout = getEnvAsDuration("WORKFLOW_TIMEOUT", p.WorkflowTimeout)
	p.MaxPosts = getEnvAsInt("MAX_POSTS", p.MaxPosts)
	p.TradeUnit = getEnvAsDecimal("TRADE_UNIT", p.TradeUnit)
	p.MaxTradeAmount = getEnvAsDecimal("MAX_TRADE_AMOUNT", p.MaxTradeAmount)
	p.SentimentCacheTTL = getEnvAsDuration("SENTIMENT_CACHE_TTL", p.SentimentCacheTTL)
	p.SocialRatePerSecond = getEnvAsFloat("SOCIAL_RATE_PER_SECOND", p.SocialRatePerSecond)
	return p
}

// MergeFile overlays the non-zero fields of a YAML policy file onto p.
func (p *Policy) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var overlay Policy
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &overlay); err != nil {
		return fmt.Errorf("parse policy yaml: %w", err)
	}

	if overlay.CacheTTL > 0 {
		p.CacheTTL = overlay.CacheTTL
	}
	if overlay.ScanCeiling > 0 {
		p.ScanCeiling = overlay.ScanCeiling
	}
	if overlay.MaxConcurrentWorkflows > 0 {
		p.MaxConcurrentWorkflows = overlay.MaxConcurrentWorkflows
	}
	if overlay.WorkflowTimeout > 0 {
		p.WorkflowTimeout = overlay.WorkflowTimeout
	}
	if overlay.MaxPosts > 0 {
		p.MaxPosts = overlay.MaxPosts
	}
	if overlay.SentimentCacheTTL > 0 {
		p.SentimentCacheTTL = overlay.SentimentCacheTTL
	}
	if overlay.SocialRatePerSecond > 0 {
		p.SocialRatePerSecond = overlay.SocialRatePerSecond
	}
	if overlay.TradeUnitRaw != "" {
		v, err := decimal.NewFromString(overlay.TradeUnitRaw)
		if err != nil {
			return fmt.Errorf("invalid trade_unit %q: %w", overlay.TradeUnitRaw, err)
		}
		p.TradeUnit = v
	}
	if overlay.MaxTradeAmountRaw != "" {
		v, err := decimal.NewFromString(overlay.MaxTradeAmountRaw)
		if err != nil {
			return fmt.Errorf("invalid max_trade_amount %q: %w", overlay.MaxTradeAmountRaw, err)
		}
		p.MaxTradeAmount = v
	}
	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.APIAuthToken == "" {
		return fmt.Errorf("API_AUTH_TOKEN is required")
	}
	if c.DefaultNetuid < 0 {
		return fmt.Errorf("DEFAULT_NETUID must be non-negative, got %d", c.DefaultNetuid)
	}
	if !strings.HasPrefix(c.SubtensorURL, "ws://") && !strings.HasPrefix(c.SubtensorURL, "wss://") {
		return fmt.Errorf("SUBTENSOR_URL must be a ws:// or wss:// URL, got %q", c.SubtensorURL)
	}
	return c.Policy.Validate()
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if p.ScanCeiling < 1 {
		return fmt.Errorf("scan ceiling must be at least 1, got %d", p.ScanCeiling)
	}
	if p.MaxConcurrentWorkflows < 1 {
		return fmt.Errorf("max concurrent workflows must be at least 1, got %d", p.MaxConcurrentWorkflows)
	}
	if p.WorkflowTimeout <= 0 {
		return fmt.Errorf("workflow timeout must be positive")
	}
	if p.MaxPosts < 1 {
		return fmt.Errorf("max posts must be at least 1, got %d", p.MaxPosts)
	}
	if !p.TradeUnit.IsPositive() {
		return fmt.Errorf("trade unit must be positive, got %s", p.TradeUnit)
	}
	if !p.MaxTradeAmount.IsPositive() {
		return fmt.Errorf("max trade amount must be positive, got %s", p.MaxTradeAmount)
	}
	if p.SentimentCacheTTL < 0 {
		return fmt.Errorf("sentiment cache TTL must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("120").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
