package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/trendlens/internal/middleware"
	"github.com/hitoshi/trendlens/internal/model"
)

func TestNewRouter_Health_OK(t *testing.T) {
	h := NewRouter(&RouterDeps{
		TrendingService:   &mockTrendingService{},
		ComparisonService: &mockComparisonService{},
		HealthCheck:       func(context.Context) error { return nil },
	})

	w := doRequest(h, http.MethodGet, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestNewRouter_Health_StoreUnavailable(t *testing.T) {
	h := NewRouter(&RouterDeps{
		TrendingService:   &mockTrendingService{},
		ComparisonService: &mockComparisonService{},
		HealthCheck:       func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	w := doRequest(h, http.MethodGet, "/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_MetricsRoute(t *testing.T) {
	h := NewRouter(&RouterDeps{
		TrendingService:   &mockTrendingService{},
		ComparisonService: &mockComparisonService{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})

	w := doRequest(h, http.MethodGet, "/metrics")

	if w.Code != http.StatusOK || w.Body.String() != "# metrics" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestNewRouter_MetricsRoute_AbsentWhenNil(t *testing.T) {
	w := doRequest(newTestRouter(nil, nil), http.MethodGet, "/metrics")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestNewRouter_SecurityAndCORSHeaders(t *testing.T) {
	w := doRequest(newTestRouter(nil, nil), http.MethodGet, "/api/platforms")

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRouter_RecoversFromPanic(t *testing.T) {
	svc := &mockTrendingService{
		topicByIDFn: func(context.Context, string) (*model.Topic, error) {
			panic("boom")
		},
	}

	w := doRequest(newTestRouter(svc, nil), http.MethodGet, "/api/topics/any")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeError(t, w); body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestNewRouter_RefreshRateLimitOnlyForForcedRequests(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		RefreshRate:     0.01,
		RefreshBurst:    1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	h := NewRouter(&RouterDeps{
		RateLimiter:       rl,
		TrendingService:   &mockTrendingService{},
		ComparisonService: &mockComparisonService{},
	})

	do := func(target string) int {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("/api/platforms/weibo/snapshot?refresh=true"); code != http.StatusOK {
		t.Fatalf("1回目の強制取得: status = %d, want 200", code)
	}
	if code := do("/api/platforms/weibo/snapshot?refresh=true"); code != http.StatusTooManyRequests {
		t.Fatalf("2回目の強制取得: status = %d, want 429", code)
	}
	// キャッシュを使うリクエストは強制取得の制限を受けない
	if code := do("/api/platforms/weibo/snapshot"); code != http.StatusOK {
		t.Errorf("通常の取得: status = %d, want 200", code)
	}
}

func TestNewRouter_RealIPUsedForRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     0.01,
		GeneralBurst:    1,
		RefreshRate:     1,
		RefreshBurst:    1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	h := NewRouter(&RouterDeps{
		RateLimiter:       rl,
		TrendingService:   &mockTrendingService{},
		ComparisonService: &mockComparisonService{},
	})

	// 同じプロキシ経由でも X-Forwarded-For が異なれば別クライアントとして扱う
	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/platforms", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", ip, w.Code)
		}
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}
