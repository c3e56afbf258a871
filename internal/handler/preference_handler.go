package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trendlens/internal/model"
)

// PreferenceService はお気に入り・ブロックキーワードのハンドラーが必要とするサービスインターフェース。
// preference.Serviceが実装する。
type PreferenceService interface {
	AddFavorite(ctx context.Context, topicID string) error
	RemoveFavorite(ctx context.Context, topicID string) error
	IsFavorite(ctx context.Context, topicID string) (bool, error)
	FavoriteTopics(ctx context.Context) ([]model.Topic, error)
	BlockedKeywords(ctx context.Context) ([]string, error)
	AddBlockedKeyword(ctx context.Context, keyword string) ([]string, error)
	RemoveBlockedKeyword(ctx context.Context, keyword string) ([]string, error)
}

// PreferenceHandler はお気に入りとブロックキーワードのHTTPハンドラー。
type PreferenceHandler struct {
	service PreferenceService
	logger  *slog.Logger
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(service PreferenceService, logger *slog.Logger) *PreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceHandler{service: service, logger: logger}
}

type favoriteStatusResponse struct {
	TopicID  string `json:"topic_id"`
	Favorite bool   `json:"favorite"`
}

type blockedKeywordsResponse struct {
	Keywords []string `json:"keywords"`
}

// ListFavorites はお気に入りの話題を登録順に返す。キャッシュにない話題は含まない。
// GET /api/favorites
func (h *PreferenceHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.FavoriteTopics(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, topicListResponse{Topics: topics, Count: len(topics)})
}

// GetFavorite は話題がお気に入りかを返す。
// GET /api/favorites/{topicId}
func (h *PreferenceHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicId")

	ok, err := h.service.IsFavorite(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{TopicID: id, Favorite: ok})
}

// AddFavorite は話題をお気に入りに追加する。冪等。
// PUT /api/favorites/{topicId}
func (h *PreferenceHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicId")

	if err := h.service.AddFavorite(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{TopicID: id, Favorite: true})
}

// RemoveFavorite は話題をお気に入りから外す。冪等。
// DELETE /api/favorites/{topicId}
func (h *PreferenceHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicId")

	if err := h.service.RemoveFavorite(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{TopicID: id, Favorite: false})
}

// ListBlockedKeywords は登録済みのブロックキーワードを返す。
// GET /api/blocked-keywords
func (h *PreferenceHandler) ListBlockedKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.service.BlockedKeywords(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, blockedKeywordsResponse{Keywords: nonNil(keywords)})
}

// AddBlockedKeyword はキーワードを追加する。
// PUT /api/blocked-keywords/{keyword}
func (h *PreferenceHandler) AddBlockedKeyword(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.service.AddBlockedKeyword(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, blockedKeywordsResponse{Keywords: nonNil(keywords)})
}

// RemoveBlockedKeyword はキーワードを削除する。
// DELETE /api/blocked-keywords/{keyword}
func (h *PreferenceHandler) RemoveBlockedKeyword(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.service.RemoveBlockedKeyword(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, blockedKeywordsResponse{Keywords: nonNil(keywords)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
