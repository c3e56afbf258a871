package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/trendlens/internal/model"
)

// ComparisonService はプラットフォーム間比較のサービスインターフェース。
// compare.Engineが実装する。
type ComparisonService interface {
	FindIntersection(ctx context.Context, platforms []model.Platform, threshold float64) ([]model.ComparisonResult, error)
	FindUnique(ctx context.Context, platform model.Platform, against []model.Platform, threshold float64) ([]model.Topic, error)
}

// CompareHandler はプラットフォーム間比較のHTTPハンドラー。
type CompareHandler struct {
	service          ComparisonService
	defaultThreshold float64
	logger           *slog.Logger
}

// NewCompareHandler はCompareHandlerを生成する。
// defaultThresholdはthresholdクエリが省略された場合に使用する。
func NewCompareHandler(service ComparisonService, defaultThreshold float64, logger *slog.Logger) *CompareHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareHandler{
		service:          service,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

type intersectionResponse struct {
	Platforms []model.Platform         `json:"platforms"`
	Threshold float64                  `json:"threshold"`
	Groups    []model.ComparisonResult `json:"groups"`
}

type uniqueResponse struct {
	Platform  model.Platform   `json:"platform"`
	Against   []model.Platform `json:"against"`
	Threshold float64          `json:"threshold"`
	Topics    []model.Topic    `json:"topics"`
}

// Intersection は指定した全プラットフォームに共通する話題を返す。
// GET /api/compare/intersection?platforms=a,b&threshold=
func (h *CompareHandler) Intersection(w http.ResponseWriter, r *http.Request) {
	platforms, apiErr := parsePlatforms(r.URL.Query().Get("platforms"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	threshold, apiErr := parseThreshold(r, h.defaultThreshold)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	groups, err := h.service.FindIntersection(r.Context(), platforms, threshold)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if groups == nil {
		groups = []model.ComparisonResult{}
	}

	writeJSON(w, http.StatusOK, intersectionResponse{
		Platforms: platforms,
		Threshold: threshold,
		Groups:    groups,
	})
}

// Unique はplatformにのみ現れる話題を返す。
// GET /api/compare/unique?platform=a&against=b,c&threshold=
func (h *CompareHandler) Unique(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("platform"))
	if raw == "" {
		writeAPIError(w, model.NewInvalidParameterError("platform", "必須です"))
		return
	}
	platform, err := model.ParsePlatform(raw)
	if err != nil {
		writeAPIError(w, model.NewUnknownPlatformError(raw))
		return
	}

	against, apiErr := parsePlatforms(q.Get("against"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	threshold, apiErr := parseThreshold(r, h.defaultThreshold)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	topics, err := h.service.FindUnique(r.Context(), platform, against, threshold)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if topics == nil {
		topics = []model.Topic{}
	}

	writeJSON(w, http.StatusOK, uniqueResponse{
		Platform:  platform,
		Against:   against,
		Threshold: threshold,
		Topics:    topics,
	})
}
