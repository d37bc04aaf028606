package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// Summary（週次要約生成）
	OpenAIAPIKey       string
	SummaryModel       string
	SummaryMaxTokens   int
	SummaryTimeout     time.Duration
	SweepInterval      time.Duration
	SweepAPIInterval   time.Duration
	SweepMaxConcurrent int

	// Retention
	SessionRetentionDays int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitExport  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// OPENAI_API_KEYはワーカーモードでのみ必須のため、ValidateWorkerで別途検証する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.SummaryModel = getEnvString("SUMMARY_MODEL", "gpt-4o-mini")
	cfg.SummaryMaxTokens = getEnvInt("SUMMARY_MAX_TOKENS", 400)
	cfg.SummaryTimeout = getEnvDuration("SUMMARY_TIMEOUT", 30*time.Second)
	cfg.SweepInterval = getEnvDuration("SUMMARY_SWEEP_INTERVAL", 1*time.Hour)
	cfg.SweepAPIInterval = getEnvDuration("SUMMARY_API_INTERVAL", 1*time.Second)
	cfg.SweepMaxConcurrent = getEnvInt("SUMMARY_MAX_CONCURRENT", 3)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 0)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitExport = getEnvInt("RATE_LIMIT_EXPORT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ValidateWorker はワーカーモードで必須となる設定を検証する。
// 要約生成には外部テキスト生成サービスのAPIキーが必要。
func (c *Config) ValidateWorker() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("required environment variables for worker mode are not set: [OPENAI_API_KEY]")
	}
	return nil
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

// MaskDatabaseURL はログ出力用にデータベースURLの認証情報をマスクする。
func MaskDatabaseURL(url string) string {
	if i := strings.Index(url, "@"); i > 0 {
		if j := strings.Index(url, "://"); j >= 0 && j+3 < i {
			return url[:j+3] + "***@" + url[i+1:]
		}
	}
	if len(url) > 20 {
		return url[:12] + "***"
	}
	return "***"
}
