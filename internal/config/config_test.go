package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// clearEnv はテスト環境に残っている設定値の影響を受けないよう、関連する環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REMOTE_BASE_URL", "PLATFORM_FEED_URLS", "REMOTE_ALLOW_PRIVATE",
		"STORE_BACKEND", "DATABASE_URL", "REDIS_URL",
		"FETCH_TIMEOUT", "FETCH_MAX_SIZE", "SNAPSHOT_TTL", "SIMILARITY_THRESHOLD",
		"REFRESH_ENABLED", "REFRESH_INTERVAL", "REFRESH_MAX_CONCURRENT", "CLEANUP_INTERVAL",
		"RATE_LIMIT_GENERAL", "RATE_LIMIT_REFRESH", "SERVER_PORT", "METRICS_PORT", "CORS_ALLOWED_ORIGIN", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("REMOTE_BASE_URL", "https://trend.example.com/api")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RemoteBaseURL != "https://trend.example.com/api" {
		t.Errorf("RemoteBaseURL = %q, want %q", cfg.RemoteBaseURL, "https://trend.example.com/api")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.RemoteAllowPrivate {
		t.Error("RemoteAllowPrivate should default to false")
	}
	if len(cfg.PlatformFeedURLs) != 0 {
		t.Errorf("PlatformFeedURLs = %v, want empty", cfg.PlatformFeedURLs)
	}

	// Fetch defaults
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want %v", cfg.FetchTimeout, 10*time.Second)
	}
	if cfg.FetchMaxSize != 5242880 {
		t.Errorf("FetchMaxSize = %d, want %d", cfg.FetchMaxSize, 5242880)
	}
	if cfg.SnapshotTTL != 10*time.Minute {
		t.Errorf("SnapshotTTL = %v, want %v", cfg.SnapshotTTL, 10*time.Minute)
	}
	if cfg.SimilarityThreshold != 0.8 {
		t.Errorf("SimilarityThreshold = %v, want 0.8", cfg.SimilarityThreshold)
	}

	// Background job defaults
	if !cfg.RefreshEnabled {
		t.Error("RefreshEnabled should default to true")
	}
	if cfg.RefreshInterval != 5*time.Minute {
		t.Errorf("RefreshInterval = %v, want %v", cfg.RefreshInterval, 5*time.Minute)
	}
	if cfg.RefreshMaxConcurrent != 6 {
		t.Errorf("RefreshMaxConcurrent = %d, want 6", cfg.RefreshMaxConcurrent)
	}
	if cfg.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, time.Hour)
	}

	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.RateLimitRefresh != 10 {
		t.Errorf("RateLimitRefresh = %d, want %d", cfg.RateLimitRefresh, 10)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want %q", cfg.MetricsPort, "9090")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:3000")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("REMOTE_ALLOW_PRIVATE", "true")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("FETCH_MAX_SIZE", "1024")
	t.Setenv("SNAPSHOT_TTL", "2m")
	t.Setenv("SIMILARITY_THRESHOLD", "0.65")
	t.Setenv("REFRESH_ENABLED", "false")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("REFRESH_MAX_CONCURRENT", "2")
	t.Setenv("CLEANUP_INTERVAL", "15m")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !cfg.RemoteAllowPrivate {
		t.Error("RemoteAllowPrivate = false, want true")
	}
	if cfg.StoreBackend != StoreRedis || cfg.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("StoreBackend = %q, RedisURL = %q", cfg.StoreBackend, cfg.RedisURL)
	}
	if cfg.FetchTimeout != 3*time.Second || cfg.FetchMaxSize != 1024 || cfg.SnapshotTTL != 2*time.Minute {
		t.Errorf("fetch settings = %v, %d, %v", cfg.FetchTimeout, cfg.FetchMaxSize, cfg.SnapshotTTL)
	}
	if cfg.SimilarityThreshold != 0.65 {
		t.Errorf("SimilarityThreshold = %v, want 0.65", cfg.SimilarityThreshold)
	}
	if cfg.RefreshEnabled || cfg.RefreshInterval != 30*time.Second || cfg.RefreshMaxConcurrent != 2 {
		t.Errorf("refresh settings = %v, %v, %d", cfg.RefreshEnabled, cfg.RefreshInterval, cfg.RefreshMaxConcurrent)
	}
	if cfg.CleanupInterval != 15*time.Minute {
		t.Errorf("CleanupInterval = %v, want 15m", cfg.CleanupInterval)
	}
	if cfg.RateLimitGeneral != 60 || cfg.ServerPort != "9000" || cfg.LogLevel != "debug" {
		t.Errorf("RateLimitGeneral = %d, ServerPort = %q, LogLevel = %q", cfg.RateLimitGeneral, cfg.ServerPort, cfg.LogLevel)
	}
}

func TestLoad_InvalidNumbersFallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("REFRESH_MAX_CONCURRENT", "many")
	t.Setenv("REFRESH_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.FetchTimeout != 10*time.Second || cfg.RefreshMaxConcurrent != 6 || !cfg.RefreshEnabled {
		t.Errorf("不正な値はデフォルトにフォールバックするべき: %v, %d, %v",
			cfg.FetchTimeout, cfg.RefreshMaxConcurrent, cfg.RefreshEnabled)
	}
}

func TestLoad_MissingRemoteBaseURL_ReturnsError(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "REMOTE_BASE_URL") {
		t.Fatalf("expected error mentioning REMOTE_BASE_URL, got %v", err)
	}
}

func TestLoad_AllPlatformsFromFeeds_BaseURLOptional(t *testing.T) {
	clearEnv(t)
	var pairs []string
	for _, p := range model.AllPlatforms() {
		pairs = append(pairs, string(p)+"=https://feeds.example.com/"+string(p)+".xml")
	}
	t.Setenv("PLATFORM_FEED_URLS", strings.Join(pairs, ","))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("全プラットフォームがフィードの場合はREMOTE_BASE_URLを省略できるべき: %v", err)
	}
	if len(cfg.PlatformFeedURLs) != len(model.AllPlatforms()) {
		t.Errorf("PlatformFeedURLs = %v", cfg.PlatformFeedURLs)
	}
}

func TestLoad_PlatformFeedURLs(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PLATFORM_FEED_URLS", " bilibili=https://feeds.example.com/bili.xml , ZHIHU=https://feeds.example.com/zhihu.xml,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.PlatformFeedURLs[model.PlatformBilibili] != "https://feeds.example.com/bili.xml" {
		t.Errorf("bilibili = %q", cfg.PlatformFeedURLs[model.PlatformBilibili])
	}
	if cfg.PlatformFeedURLs[model.PlatformZhihu] != "https://feeds.example.com/zhihu.xml" {
		t.Errorf("zhihu = %q", cfg.PlatformFeedURLs[model.PlatformZhihu])
	}
}

func TestLoad_InvalidPlatformFeedURLs_ReturnsError(t *testing.T) {
	tests := []string{
		"myspace=https://example.com/feed.xml",
		"bilibili",
		"bilibili=",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv("PLATFORM_FEED_URLS", raw)

			if _, err := Load(); err == nil {
				t.Errorf("PLATFORM_FEED_URLS=%q はエラーになるべき", raw)
			}
		})
	}
}

func TestLoad_StoreBackendRequirements(t *testing.T) {
	t.Run("postgres without DATABASE_URL", func(t *testing.T) {
		setRequiredEnvVars(t)
		t.Setenv("STORE_BACKEND", "postgres")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("expected error mentioning DATABASE_URL, got %v", err)
		}
	})

	t.Run("redis without REDIS_URL", func(t *testing.T) {
		setRequiredEnvVars(t)
		t.Setenv("STORE_BACKEND", "redis")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
			t.Fatalf("expected error mentioning REDIS_URL, got %v", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		setRequiredEnvVars(t)
		t.Setenv("STORE_BACKEND", "sqlite")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for unknown STORE_BACKEND")
		}
	})
}

func TestLoad_ThresholdOutOfRange_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for SIMILARITY_THRESHOLD > 1")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	content := "REMOTE_BASE_URL=https://from-file.example.com\nSERVER_PORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	// 環境変数が設定済みの場合はファイルの値で上書きしない
	t.Setenv("SERVER_PORT", "7100")
	// godotenvが設定した値をテスト終了時に元に戻す
	t.Setenv("REMOTE_BASE_URL", "")
	os.Unsetenv("REMOTE_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RemoteBaseURL != "https://from-file.example.com" {
		t.Errorf("RemoteBaseURL = %q, want value from env file", cfg.RemoteBaseURL)
	}
	if cfg.ServerPort != "7100" {
		t.Errorf("ServerPort = %q, 既存の環境変数が優先されるべき", cfg.ServerPort)
	}
}
