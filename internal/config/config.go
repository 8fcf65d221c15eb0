// Package config は環境変数・.envファイル・YAMLファイルからアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // 最小イメージでもREPORT_TIMEZONEを解決できるようにする

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OTPストアの種類。
const (
	OTPStorePostgres = "postgres"
	OTPStoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
//
// 優先順位は 環境変数 > YAMLファイル（TPODO_CONFIG_PATH） > 既定値。
// .envファイルの値は未設定の環境変数を補う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL" yaml:"database_url"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" yaml:"db_max_open_conns"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" yaml:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" yaml:"db_conn_max_lifetime"`

	// Session
	SessionMaxAge    int           `env:"SESSION_MAX_AGE" yaml:"session_max_age"` // 秒
	SessionRetention time.Duration `env:"SESSION_RETENTION" yaml:"session_retention"`
	BcryptCost       int           `env:"BCRYPT_COST" yaml:"bcrypt_cost"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" yaml:"rate_limit_general"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" yaml:"rate_limit_auth"`

	// OTP
	OTPTTL         time.Duration `env:"OTP_TTL" yaml:"otp_ttl"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" yaml:"otp_max_attempts"`
	OTPStore       string        `env:"OTP_STORE" yaml:"otp_store"`
	DevMode        bool          `env:"DEV_MODE" yaml:"dev_mode"`

	// Report
	ReportTimezone string `env:"REPORT_TIMEZONE" yaml:"report_timezone"`

	// Worker
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" yaml:"cleanup_interval"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level"`

	// Server
	ServerPort string `env:"SERVER_PORT" yaml:"server_port"`
	BaseURL    string `env:"BASE_URL" yaml:"base_url"`

	// Cookie（CookieSecureはBASE_URLから決まる）
	CookieSecure bool   `yaml:"-"`
	CookieDomain string `env:"COOKIE_DOMAIN" yaml:"cookie_domain"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" yaml:"cors_allowed_origin"`

	// 初回起動時に作成する管理者（任意）
	AdminEmail    string `env:"ADMIN_EMAIL" yaml:"admin_email"`
	AdminPassword string `env:"ADMIN_PASSWORD" yaml:"admin_password"`
	AdminName     string `env:"ADMIN_NAME" yaml:"admin_name"`

	location *time.Location
}

// defaults は既定値を設定したConfigを返す。
func defaults() *Config {
	return &Config{
		DBMaxOpenConns:    25,
		DBMaxIdleConns:    5,
		DBConnMaxLifetime: 30 * time.Minute,
		SessionMaxAge:     7 * 24 * 60 * 60,
		SessionRetention:  24 * time.Hour,
		RateLimitGeneral:  120,
		RateLimitAuth:     10,
		OTPTTL:            10 * time.Minute,
		OTPMaxAttempts:    5,
		OTPStore:          OTPStorePostgres,
		ReportTimezone:    "Asia/Kolkata",
		CleanupInterval:   time.Hour,
		LogLevel:          "info",
		ServerPort:        "8080",
		CORSAllowedOrigin: "http://localhost:3000",
		AdminName:         "Administrator",
	}
}

// Load は.envファイル、YAMLファイル、環境変数の順にConfigを読み込む。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	envFile := os.Getenv("TPODO_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg := defaults()

	if path := os.Getenv("TPODO_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

// Location はレポートの日の区切りに使うタイムゾーンを返す。
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// AdminConfigured は初期管理者の作成に必要な値が揃っているかを返す。
func (c *Config) AdminConfigured() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.ReportTimezone, err)
	}
	c.location = loc

	switch c.OTPStore {
	case OTPStorePostgres, OTPStoreMemory:
	default:
		return fmt.Errorf("invalid OTP_STORE %q: must be %q or %q", c.OTPStore, OTPStorePostgres, OTPStoreMemory)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge)
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("DB pool sizes must not be negative (open=%d, idle=%d)", c.DBMaxOpenConns, c.DBMaxIdleConns)
	}
	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", c.OTPMaxAttempts)
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitAuth <= 0 {
		return fmt.Errorf("rate limits must be positive (general=%d, auth=%d)", c.RateLimitGeneral, c.RateLimitAuth)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
