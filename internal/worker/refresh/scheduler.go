// Package refresh は熱榜スナップショットのバックグラウンド更新を提供する。
// 一定間隔で各プラットフォームを取得し、キャッシュを温めておく。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// SnapshotRefresher はプラットフォーム単位でスナップショットを取得するインターフェース。
// trending.Coordinatorが実装する。
type SnapshotRefresher interface {
	FetchOne(ctx context.Context, platform model.Platform, forceRefresh bool) (*model.Snapshot, error)
}

// Scheduler はスナップショット更新のスケジューリングと並列制御を行う。
// 有効期限内のキャッシュはCoordinatorがそのまま返すため、期限切れのプラットフォームだけが実際に取得される。
// 個別プラットフォームの失敗はログに記録し、他のプラットフォームの更新は継続する。
type Scheduler struct {
	refresher      SnapshotRefresher
	platforms      []model.Platform
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// platformsが空の場合は全プラットフォームを対象とする。
// maxConcurrencyが0以下の場合はプラットフォーム数を使用する。
func NewScheduler(
	refresher SnapshotRefresher,
	platforms []model.Platform,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if len(platforms) == 0 {
		platforms = model.AllPlatforms()
	}
	platforms = model.UniquePlatforms(platforms)
	if maxConcurrency <= 0 {
		maxConcurrency = len(platforms)
	}
	return &Scheduler{
		refresher:      refresher,
		platforms:      platforms,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("更新スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Any("platforms", s.platforms),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は対象プラットフォームを1回ずつ取得する。
// semaphoreパターンで最大並列数を制御し、失敗したプラットフォーム数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := time.Now()

	s.logger.Info("更新サイクルを開始します",
		slog.Int("platform_count", len(s.platforms)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, p := range s.platforms {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(platform model.Platform) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, err := s.refresher.FetchOne(ctx, platform, false); err != nil {
				failed.Add(1)
				s.logger.Error("スナップショットの更新に失敗しました",
					slog.String("platform", string(platform)),
					slog.String("error", err.Error()),
				)
			}
		}(p)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("更新サイクルが完了しました",
		slog.Int("platform_count", len(s.platforms)),
		slog.Int("failed_count", int(failed.Load())),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return int(failed.Load())
}
