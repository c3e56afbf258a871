package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/trendlens/internal/model"
)

// スナップショットの格納先。
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote Source
	RemoteBaseURL      string
	PlatformFeedURLs   map[model.Platform]string
	RemoteAllowPrivate bool

	// Store
	StoreBackend string
	DatabaseURL  string
	RedisURL     string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64
	SnapshotTTL  time.Duration

	// Comparison
	SimilarityThreshold float64

	// Background jobs
	RefreshEnabled       bool
	RefreshInterval      time.Duration
	RefreshMaxConcurrent int
	CleanupInterval      time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitRefresh int

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（既定は.env）が存在すれば先に読み込むが、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	feedURLs, err := parseFeedURLs(os.Getenv("PLATFORM_FEED_URLS"))
	if err != nil {
		return nil, err
	}
	cfg.PlatformFeedURLs = feedURLs

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", StoreMemory))
	switch cfg.StoreBackend {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, redis: %q", cfg.StoreBackend)
	}

	// Required fields
	var missing []string

	cfg.RemoteBaseURL = os.Getenv("REMOTE_BASE_URL")
	// 全プラットフォームがフィードで取得される場合のみ省略できる
	if cfg.RemoteBaseURL == "" && len(cfg.PlatformFeedURLs) < len(model.AllPlatforms()) {
		missing = append(missing, "REMOTE_BASE_URL")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreBackend == StorePostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" && cfg.StoreBackend == StoreRedis {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RemoteAllowPrivate = getEnvBool("REMOTE_ALLOW_PRIVATE", false)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.SnapshotTTL = getEnvDuration("SNAPSHOT_TTL", 10*time.Minute)
	cfg.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", 0.8)
	cfg.RefreshEnabled = getEnvBool("REFRESH_ENABLED", true)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 5*time.Minute)
	cfg.RefreshMaxConcurrent = getEnvInt("REFRESH_MAX_CONCURRENT", 6)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRefresh = getEnvInt("RATE_LIMIT_REFRESH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be between 0 and 1: %v", cfg.SimilarityThreshold)
	}

	return cfg, nil
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// parseFeedURLs は "platform=url,platform=url" 形式を解析する。
func parseFeedURLs(raw string) (map[model.Platform]string, error) {
	urls := make(map[model.Platform]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, u, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("PLATFORM_FEED_URLS has an invalid entry: %q", pair)
		}
		p, err := model.ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("PLATFORM_FEED_URLS: %w", err)
		}
		urls[p] = strings.TrimSpace(u)
	}
	return urls, nil
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
