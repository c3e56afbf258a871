// Package repository はスナップショット永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// SnapshotRepository はプラットフォームごとの最新スナップショットの永続化インターフェース。
// プラットフォームごとに高々1件を保持し、保存は丸ごとの置き換えとなる。
type SnapshotRepository interface {
	// FindByPlatform は指定プラットフォームのスナップショットを取得する。
	// 有効期限切れでも返す。見つからない場合はnilを返す。
	FindByPlatform(ctx context.Context, platform model.Platform) (*model.Snapshot, error)

	// Save はスナップショットを保存する。同一プラットフォームの既存エントリは置き換えられる。
	Save(ctx context.Context, snapshot *model.Snapshot) error

	// DeleteByPlatform は指定プラットフォームのスナップショットを削除する。存在しなくてもエラーにしない。
	DeleteByPlatform(ctx context.Context, platform model.Platform) error

	// DeleteExpiredBefore はValidUntilがbeforeより前のスナップショットを削除し、
	// 削除したプラットフォームを返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) ([]model.Platform, error)

	// List は保存されている全スナップショットをプラットフォーム名順に返す。
	List(ctx context.Context) ([]*model.Snapshot, error)
}

// PreferenceRepository は設定の永続化インターフェース。
type PreferenceRepository interface {
	// Find は設定を取得する。存在しない場合は空の設定を返す。
	Find(ctx context.Context, id string) (*model.Preference, error)

	// Update はidの設定を読み込んでfnを適用し、保存した結果を返す。
	// 読み込みから保存までを他の更新と直列化する。fnがエラーを返した場合は保存しない。
	Update(ctx context.Context, id string, fn func(p *model.Preference) error) (*model.Preference, error)
}
