package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// MemorySnapshotRepo はプロセス内メモリに保持するスナップショットリポジトリ。
// 保存・取得ともにディープコピーを扱うため、呼び出し側の変更は格納値に影響しない。
type MemorySnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[model.Platform]*model.Snapshot
}

// NewMemorySnapshotRepo はMemorySnapshotRepoを生成する。
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		snapshots: make(map[model.Platform]*model.Snapshot),
	}
}

func (r *MemorySnapshotRepo) FindByPlatform(_ context.Context, platform model.Platform) (*model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[platform]
	if !ok {
		return nil, nil
	}
	return snap.Clone(), nil
}

func (r *MemorySnapshotRepo) Save(_ context.Context, snapshot *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshot.Platform] = snapshot.Clone()
	return nil
}

func (r *MemorySnapshotRepo) DeleteByPlatform(_ context.Context, platform model.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.snapshots, platform)
	return nil
}

func (r *MemorySnapshotRepo) DeleteExpiredBefore(_ context.Context, before time.Time) ([]model.Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []model.Platform
	for p, snap := range r.snapshots {
		if snap.ValidUntil.Before(before) {
			delete(r.snapshots, p)
			deleted = append(deleted, p)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	return deleted, nil
}

func (r *MemorySnapshotRepo) List(_ context.Context) ([]*model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]*model.Snapshot, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		snaps = append(snaps, snap.Clone())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Platform < snaps[j].Platform })
	return snaps, nil
}

var _ SnapshotRepository = (*MemorySnapshotRepo)(nil)
