package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Summarizer の選択肢。
const (
	SummarizerAuto        = "auto"
	SummarizerHuggingFace = "huggingface"
	SummarizerGemini      = "gemini"
	SummarizerLocal       = "local"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scheduler
	SchedulerAPIKey   string
	ScheduleCheckSpec string

	// Session
	SessionMaxAge int

	// Mail
	FromEmail      string
	SendGridAPIKey string

	// Summarizer
	Summarizer        string
	HuggingFaceAPIKey string
	HuggingFaceModel  string
	GeminiAPIKey      string
	GeminiModel       string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FetchInterval      time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SchedulerAPIKey = os.Getenv("SCHEDULER_API_KEY")
	if cfg.SchedulerAPIKey == "" {
		missing = append(missing, "SCHEDULER_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ScheduleCheckSpec = getEnvString("SCHEDULE_CHECK_SPEC", "@every 1m")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.FromEmail = getEnvString("FROM_EMAIL", "newsletter@example.com")
	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")

	cfg.Summarizer = strings.ToLower(getEnvString("SUMMARIZER", SummarizerAuto))
	switch cfg.Summarizer {
	case SummarizerAuto, SummarizerHuggingFace, SummarizerGemini, SummarizerLocal:
	default:
		return nil, fmt.Errorf("unsupported SUMMARIZER: %s", cfg.Summarizer)
	}
	cfg.HuggingFaceAPIKey = os.Getenv("HUGGINGFACE_API_KEY")
	cfg.HuggingFaceModel = getEnvString("HUGGINGFACE_MODEL", "facebook/bart-large-cnn")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 5)
	cfg.FetchInterval = getEnvDuration("FETCH_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ResolveSummarizer は auto を実際の要約方式に解決する。
// HuggingFaceのAPIキーがあれば huggingface、なければ local になる。
func (c *Config) ResolveSummarizer() string {
	if c.Summarizer != SummarizerAuto {
		return c.Summarizer
	}
	if c.HuggingFaceAPIKey != "" {
		return SummarizerHuggingFace
	}
	return SummarizerLocal
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
