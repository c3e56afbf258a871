package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/trendlens/internal/model"
)

// MemoryPreferenceRepo はプロセス内メモリに保持する設定リポジトリ。
type MemoryPreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]*model.Preference
}

// NewMemoryPreferenceRepo はMemoryPreferenceRepoを生成する。
func NewMemoryPreferenceRepo() *MemoryPreferenceRepo {
	return &MemoryPreferenceRepo{
		prefs: make(map[string]*model.Preference),
	}
}

func (r *MemoryPreferenceRepo) Find(_ context.Context, id string) (*model.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.prefs[id]; ok {
		return p.Clone(), nil
	}
	return model.NewPreference(id), nil
}

func (r *MemoryPreferenceRepo) Update(_ context.Context, id string, fn func(p *model.Preference) error) (*model.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := model.NewPreference(id)
	if p, ok := r.prefs[id]; ok {
		current = p.Clone()
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	r.prefs[id] = current.Clone()
	return current, nil
}

var _ PreferenceRepository = (*MemoryPreferenceRepo)(nil)
