package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/trendlens/internal/model"
)

// parsePlatforms はカンマ区切りのプラットフォーム一覧を解析する。重複は除く。
func parsePlatforms(raw string) ([]model.Platform, *model.APIError) {
	platforms, err := model.ParsePlatformList(raw)
	if err != nil {
		return nil, model.NewUnknownPlatformError(detailOf(err, model.ErrUnknownPlatform))
	}
	return platforms, nil
}

// parseRefresh はrefreshクエリを解析する。未指定はfalse。
func parseRefresh(r *http.Request) (bool, *model.APIError) {
	raw := r.URL.Query().Get("refresh")
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewInvalidParameterError("refresh", "true または false を指定してください")
	}
	return b, nil
}

// parseThreshold はthresholdクエリを解析する。未指定の場合はdefaultValを返す。
// 範囲の検証はEngineに任せず、ここでも行う。
func parseThreshold(r *http.Request, defaultVal float64) (float64, *model.APIError) {
	raw := strings.TrimSpace(r.URL.Query().Get("threshold"))
	if raw == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return 0, model.NewInvalidThresholdError(raw)
	}
	return f, nil
}

// parseSortOrder はsortクエリを解析する。未知の値はエラーとする。
func parseSortOrder(raw string) (model.SortOrder, *model.APIError) {
	switch model.SortOrder(raw) {
	case "", model.SortByHeat, model.SortByTime, model.SortByPlatform:
		return model.ParseSortOrder(raw), nil
	default:
		return "", model.NewInvalidParameterError("sort", "heat、time、platform のいずれかを指定してください")
	}
}
