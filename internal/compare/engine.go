package compare

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// SnapshotFetcher は比較に必要なスナップショットを取得するインターフェース。
// trending.Coordinatorが実装する。
type SnapshotFetcher interface {
	FetchMany(ctx context.Context, platforms []model.Platform, forceRefresh bool) ([]*model.Snapshot, error)
}

// Engine はスナップショット取得とグループ化を組み合わせて比較クエリに応答する。
type Engine struct {
	fetcher SnapshotFetcher
	logger  *slog.Logger
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(fetcher SnapshotFetcher, logger *slog.Logger) *Engine {
	return &Engine{
		fetcher: fetcher,
		logger:  logger,
	}
}

// FindIntersection は全プラットフォームに共通する話題グループを返す。
// 重複を除いたプラットフォームが2つ未満の場合は、フェッチ前にErrInsufficientPlatformsを返す。
// フェッチの失敗はそのまま返す。
func (e *Engine) FindIntersection(ctx context.Context, platforms []model.Platform, threshold float64) ([]model.ComparisonResult, error) {
	platforms = model.UniquePlatforms(platforms)
	if len(platforms) < 2 {
		return nil, model.ErrInsufficientPlatforms
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	snapshots, err := e.fetcher.FetchMany(ctx, platforms, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := Intersection(snapshots, platforms, threshold)

	e.logger.Info("共通話題を算出しました",
		slog.Any("platforms", platforms),
		slog.Float64("threshold", threshold),
		slog.Int("group_count", len(results)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return results, nil
}

// FindUnique はplatformのうち、againstのいずれにも類似話題がないものを返す。
// againstに含まれるplatform自身は比較対象から除外する。
func (e *Engine) FindUnique(ctx context.Context, platform model.Platform, against []model.Platform, threshold float64) ([]model.Topic, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	others := make([]model.Platform, 0, len(against))
	for _, p := range model.UniquePlatforms(against) {
		if p != platform {
			others = append(others, p)
		}
	}

	snapshots, err := e.fetcher.FetchMany(ctx, append([]model.Platform{platform}, others...), false)
	if err != nil {
		return nil, err
	}

	var target []model.Topic
	var otherTopics []model.Topic
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		if s.Platform == platform {
			target = s.Topics
		} else {
			otherTopics = append(otherTopics, s.Topics...)
		}
	}

	results := Unique(target, otherTopics, threshold)

	e.logger.Info("独自話題を算出しました",
		slog.String("platform", string(platform)),
		slog.Any("against", others),
		slog.Int("unique_count", len(results)),
	)

	return results, nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", model.ErrInvalidThreshold, threshold)
	}
	return nil
}
