package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/trendlens/internal/middleware"
)

// HealthCheckFunc はストアの疎通を確認する関数。nilの場合は常に正常とする。
type HealthCheckFunc func(ctx context.Context) error

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 熱榜
	TrendingService TrendingService

	// 比較
	ComparisonService ComparisonService
	DefaultThreshold  float64

	// お気に入り・ブロックキーワード（nilの場合はルートを登録しない）
	PreferenceService PreferenceService

	// 運用
	HealthCheck    HealthCheckFunc
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General → Refresh)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	trendingHandler := NewTrendingHandler(deps.TrendingService, logger)
	compareHandler := NewCompareHandler(deps.ComparisonService, deps.DefaultThreshold, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthCheck, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(deps.RateLimiter.RefreshMiddleware())
		}

		r.Get("/platforms", trendingHandler.ListPlatforms)
		r.Get("/platforms/{platform}/snapshot", trendingHandler.GetSnapshot)
		r.Get("/snapshots", trendingHandler.ListSnapshots)

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", trendingHandler.ListTopics)
			// /search は /{id} より先に登録する
			r.Get("/search", trendingHandler.SearchTopics)
			r.Get("/{id}", trendingHandler.GetTopic)
		})

		r.Route("/compare", func(r chi.Router) {
			r.Get("/intersection", compareHandler.Intersection)
			r.Get("/unique", compareHandler.Unique)
		})

		r.Post("/cache/cleanup", trendingHandler.CleanupCache)

		if deps.PreferenceService != nil {
			prefHandler := NewPreferenceHandler(deps.PreferenceService, logger)

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", prefHandler.ListFavorites)
				r.Get("/{topicId}", prefHandler.GetFavorite)
				r.Put("/{topicId}", prefHandler.AddFavorite)
				r.Delete("/{topicId}", prefHandler.RemoveFavorite)
			})

			r.Route("/blocked-keywords", func(r chi.Router) {
				r.Get("/", prefHandler.ListBlockedKeywords)
				r.Put("/{keyword}", prefHandler.AddBlockedKeyword)
				r.Delete("/{keyword}", prefHandler.RemoveBlockedKeyword)
			})
		}
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler はストアの疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(check HealthCheckFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
