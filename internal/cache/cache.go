// Package cache はプラットフォームごとの最新スナップショットを保持するキャッシュを提供する。
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
	"github.com/hitoshi/trendlens/internal/repository"
)

// SnapshotCache はSnapshotRepositoryを包み、全操作を単一のロックで直列化する。
// 有効期限切れのエントリもExpireStaleが呼ばれるまで保持し、
// 再検証トークンと304応答時の再利用に使う。
type SnapshotCache struct {
	mu   sync.Mutex
	repo repository.SnapshotRepository
}

// New はrepoを格納先とするSnapshotCacheを生成する。
func New(repo repository.SnapshotRepository) *SnapshotCache {
	return &SnapshotCache{repo: repo}
}

// NewInMemory はプロセス内メモリを格納先とするSnapshotCacheを生成する。
func NewInMemory() *SnapshotCache {
	return New(repository.NewMemorySnapshotRepo())
}

// Get は指定プラットフォームのスナップショットを返す。有効期限は問わない。
// エントリがない場合はnilを返す。
func (c *SnapshotCache) Get(ctx context.Context, platform model.Platform) (*model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.FindByPlatform(ctx, platform)
}

// Put はスナップショットを格納し、同一プラットフォームの既存エントリを置き換える。
func (c *SnapshotCache) Put(ctx context.Context, platform model.Platform, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nilのスナップショットは格納できません: platform=%s", platform)
	}
	if snapshot.Platform != platform {
		return fmt.Errorf("スナップショットのプラットフォームが一致しません: key=%s, snapshot=%s", platform, snapshot.Platform)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.Save(ctx, snapshot)
}

// ValidatorOf は格納済みスナップショットの再検証トークンを返す。
// エントリがないか、トークンを持たない場合は空文字列を返す。
func (c *SnapshotCache) ValidatorOf(ctx context.Context, platform model.Platform) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.repo.FindByPlatform(ctx, platform)
	if err != nil || snap == nil {
		return "", err
	}
	return snap.Validator, nil
}

// ExpireStale はValidUntilがnowより前のエントリを削除し、削除したプラットフォームを返す。
// ValidUntil == now のエントリは残す。
func (c *SnapshotCache) ExpireStale(ctx context.Context, now time.Time) ([]model.Platform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.DeleteExpiredBefore(ctx, now)
}

// Remove は指定プラットフォームのエントリを削除する。
func (c *SnapshotCache) Remove(ctx context.Context, platform model.Platform) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.DeleteByPlatform(ctx, platform)
}

// Snapshots は格納済みの全スナップショットをプラットフォーム名順に返す。
func (c *SnapshotCache) Snapshots(ctx context.Context) ([]*model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.List(ctx)
}
