package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/trendlens/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスのJSON形式。
// クライアントはcategoryで原因（入力・上流・システム）を区別し、actionをそのまま表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードとHTTPステータスの対応表。
var statusByCode = map[string]int{
	model.ErrCodeInsufficientPlatforms: http.StatusBadRequest,
	model.ErrCodeUnknownPlatform:       http.StatusBadRequest,
	model.ErrCodeInvalidThreshold:      http.StatusBadRequest,
	model.ErrCodeInvalidParameter:      http.StatusBadRequest,
	model.ErrCodeInvalidPreference:     http.StatusBadRequest,
	model.ErrCodeTopicNotFound:         http.StatusNotFound,
	model.ErrCodePreferenceConflict:    http.StatusConflict,
	model.ErrCodeRateLimited:           http.StatusTooManyRequests,
	model.ErrCodeNoData:                http.StatusBadGateway,
	model.ErrCodeUpstreamFailed:        http.StatusBadGateway,
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。未知のコードは500。
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はapiErrをstatusCodeで書き込む。
// apiErrがnilの場合は内部エラーとして500を返す。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr == nil {
		statusCode, apiErr = http.StatusInternalServerError, model.NewInternalError()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError はエラーコードから決まるステータスでapiErrを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	if apiErr == nil {
		WriteErrorResponse(w, http.StatusInternalServerError, nil)
		return
	}
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// writeRateLimited は429をRetry-After付きで書き込む。
func writeRateLimited(w http.ResponseWriter, retryAfterSec int) {
	w.Header().Set("Retry-After", strconv.Itoa(max(retryAfterSec, 1)))
	WriteAPIError(w, model.NewRateLimitedError())
}
