// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// API
	APIToken   string
	ServerPort string

	// Verification
	VerificationWindow time.Duration

	// Codeforces
	CFRatingMin       int
	CFRatingMax       int
	CFRequestSpacing  time.Duration
	CatalogCacheTTL   time.Duration

	// CodeChef
	CCRequestSpacing time.Duration

	// Judge HTTP
	JudgeTimeout time.Duration

	// Worker
	SweepInterval time.Duration
	MetricsPort   string

	// Roles
	RoleWebhookURL string

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitLink    int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.APIToken = os.Getenv("API_TOKEN")
	if cfg.APIToken == "" {
		missing = append(missing, "API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.VerificationWindow = getEnvDuration("VERIFICATION_WINDOW", 10*time.Minute)
	cfg.CFRatingMin = getEnvInt("CF_RATING_MIN", 800)
	cfg.CFRatingMax = getEnvInt("CF_RATING_MAX", 1500)
	cfg.CFRequestSpacing = getEnvDuration("CF_REQUEST_SPACING", 250*time.Millisecond)
	cfg.CCRequestSpacing = getEnvDuration("CC_REQUEST_SPACING", 500*time.Millisecond)
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", time.Hour)
	cfg.JudgeTimeout = getEnvDuration("JUDGE_TIMEOUT", 12*time.Second)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 5*time.Minute)
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.RoleWebhookURL = getEnvString("ROLE_WEBHOOK_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLink = getEnvInt("RATE_LIMIT_LINK", 10)

	if cfg.CFRatingMin > cfg.CFRatingMax {
		return nil, fmt.Errorf("CF_RATING_MIN (%d) must not exceed CF_RATING_MAX (%d)", cfg.CFRatingMin, cfg.CFRatingMax)
	}
	if cfg.VerificationWindow <= 0 {
		return nil, fmt.Errorf("VERIFICATION_WINDOW must be positive: %v", cfg.VerificationWindow)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
