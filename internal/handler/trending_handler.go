package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trendlens/internal/model"
)

// TrendingService は熱榜ハンドラーが必要とするサービスインターフェース。
// trending.Coordinatorが実装する。
type TrendingService interface {
	// FetchOne は1プラットフォームのスナップショットを返す。
	FetchOne(ctx context.Context, platform model.Platform, forceRefresh bool) (*model.Snapshot, error)
	// FetchMany は複数プラットフォームのスナップショットを要求順に返す。
	FetchMany(ctx context.Context, platforms []model.Platform, forceRefresh bool) ([]*model.Snapshot, error)
	// Aggregated は複数プラットフォームの話題を1つの一覧にまとめる。
	Aggregated(ctx context.Context, platforms []model.Platform, order model.SortOrder, forceRefresh bool) ([]model.Topic, error)
	// SearchTopics はキャッシュ済みの話題をタイトルで検索する。
	SearchTopics(ctx context.Context, query string, platforms []model.Platform) ([]model.Topic, error)
	// TopicByID はキャッシュ済みの話題をIDで探す。
	TopicByID(ctx context.Context, id string) (*model.Topic, error)
	// ClearExpired は有効期限切れのスナップショットを削除する。
	ClearExpired(ctx context.Context) ([]model.Platform, error)
}

// TrendingHandler は熱榜取得・検索のHTTPハンドラー。
type TrendingHandler struct {
	service TrendingService
	logger  *slog.Logger
}

// NewTrendingHandler はTrendingHandlerを生成する。
func NewTrendingHandler(service TrendingService, logger *slog.Logger) *TrendingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendingHandler{
		service: service,
		logger:  logger,
	}
}

// platformResponse はプラットフォーム一覧の要素。
type platformResponse struct {
	ID          model.Platform `json:"id"`
	DisplayName string         `json:"display_name"`
}

// topicListResponse は話題一覧のAPIレスポンス。
type topicListResponse struct {
	Topics []model.Topic `json:"topics"`
	Count  int           `json:"count"`
}

// snapshotListResponse はスナップショット一覧のAPIレスポンス。
type snapshotListResponse struct {
	Snapshots []*model.Snapshot `json:"snapshots"`
}

// cleanupResponse はキャッシュクリーンアップのAPIレスポンス。
type cleanupResponse struct {
	Removed      []model.Platform `json:"removed"`
	DeletedCount int              `json:"deleted_count"`
}

// ListPlatforms はサポートするプラットフォームを返す。
// GET /api/platforms
func (h *TrendingHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	all := model.AllPlatforms()
	resp := make([]platformResponse, 0, len(all))
	for _, p := range all {
		resp = append(resp, platformResponse{ID: p, DisplayName: p.DisplayName()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSnapshot は1プラットフォームのスナップショットを返す。
// GET /api/platforms/{platform}/snapshot?refresh=bool
func (h *TrendingHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "platform")
	platform, err := model.ParsePlatform(raw)
	if err != nil {
		writeAPIError(w, model.NewUnknownPlatformError(raw))
		return
	}

	force, apiErr := parseRefresh(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	snapshot, err := h.service.FetchOne(r.Context(), platform, force)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// ListSnapshots は複数プラットフォームのスナップショットを返す。
// platformsが空の場合は全プラットフォームを対象とする。
// GET /api/snapshots?platforms=a,b&refresh=bool
func (h *TrendingHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	platforms, apiErr := parsePlatforms(r.URL.Query().Get("platforms"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if len(platforms) == 0 {
		platforms = model.AllPlatforms()
	}

	force, apiErr := parseRefresh(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	snapshots, err := h.service.FetchMany(r.Context(), platforms, force)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshotListResponse{Snapshots: snapshots})
}

// ListTopics は複数プラットフォームの話題を並び替えて返す。
// GET /api/topics?platforms=&sort=heat|time|platform&refresh=
func (h *TrendingHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	platforms, apiErr := parsePlatforms(q.Get("platforms"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	order, apiErr := parseSortOrder(q.Get("sort"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	force, apiErr := parseRefresh(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	topics, err := h.service.Aggregated(r.Context(), platforms, order, force)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if topics == nil {
		topics = []model.Topic{}
	}

	writeJSON(w, http.StatusOK, topicListResponse{Topics: topics, Count: len(topics)})
}

// SearchTopics はキャッシュ済みの話題をタイトルで検索する。
// GET /api/topics/search?q=&platforms=
func (h *TrendingHandler) SearchTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	platforms, apiErr := parsePlatforms(q.Get("platforms"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	topics, err := h.service.SearchTopics(r.Context(), q.Get("q"), platforms)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, topicListResponse{Topics: topics, Count: len(topics)})
}

// GetTopic はIDで話題を返す。
// GET /api/topics/{id}
func (h *TrendingHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	topic, err := h.service.TopicByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if topic == nil {
		writeAPIError(w, model.NewTopicNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, topic)
}

// CleanupCache は有効期限切れのスナップショットを削除する。
// POST /api/cache/cleanup
func (h *TrendingHandler) CleanupCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.ClearExpired(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if removed == nil {
		removed = []model.Platform{}
	}

	writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed, DeletedCount: len(removed)})
}
