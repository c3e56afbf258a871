package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/trendlens/internal/middleware"
	"github.com/hitoshi/trendlens/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError はAPIErrorのコードに応じたステータスでエラーレスポンスを書き込む。
func writeAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, apiErr := mapError(err)

	switch status {
	case http.StatusInternalServerError:
		logger.Error("内部エラーが発生しました", slog.String("error", err.Error()))
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		logger.Warn("上流データソースの取得に失敗しました", slog.String("error", err.Error()))
	}

	middleware.WriteErrorResponse(w, status, apiErr)
}

// mapError はエラーからHTTPステータスとAPIErrorを決定する。
func mapError(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	var remoteErr *model.RemoteError

	switch {
	case errors.As(err, &apiErr):
		return middleware.StatusForCode(apiErr.Code), apiErr
	case errors.Is(err, model.ErrUnknownPlatform):
		return http.StatusBadRequest, model.NewUnknownPlatformError(detailOf(err, model.ErrUnknownPlatform))
	case errors.Is(err, model.ErrInsufficientPlatforms):
		return http.StatusBadRequest, model.NewInsufficientPlatformsError()
	case errors.Is(err, model.ErrInvalidThreshold):
		return http.StatusBadRequest, model.NewInvalidThresholdError(detailOf(err, model.ErrInvalidThreshold))
	case errors.Is(err, model.ErrInvalidPreference):
		return http.StatusBadRequest, model.NewInvalidPreferenceError(detailOf(err, model.ErrInvalidPreference))
	case errors.Is(err, model.ErrPreferenceConflict):
		return http.StatusConflict, model.NewPreferenceConflictError()
	case errors.Is(err, model.ErrNoData):
		return http.StatusBadGateway, model.NewNoDataError()
	case errors.As(err, &remoteErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, model.NewUpstreamFailedError("timeout")
		}
		return http.StatusBadGateway, model.NewUpstreamFailedError(string(remoteErr.Kind))
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}

// detailOf は "sentinel: detail" 形式のエラーからdetail部分を取り出す。
func detailOf(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
