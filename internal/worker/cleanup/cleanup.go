// Package cleanup は期限切れスナップショットの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// Expirer は期限切れスナップショットを削除するインターフェース。
// trending.Coordinatorが実装する。
type Expirer interface {
	ClearExpired(ctx context.Context) ([]model.Platform, error)
}

// CleanupJob は期限切れスナップショットの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	expirer Expirer
	logger  *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(expirer Expirer, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		expirer: expirer,
		logger:  logger,
	}
}

// Run は期限切れスナップショットを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	removed, err := j.expirer.ClearExpired(ctx)
	if err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("deleted_count", len(removed)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後とinterval間隔でRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	// 起動直後に1回実行
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
