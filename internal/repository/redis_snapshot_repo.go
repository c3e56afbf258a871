package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/trendlens/internal/model"
)

const (
	redisKeyPrefix = "trendlens:snapshot:"
	redisIndexKey  = "trendlens:snapshots"
)

// RedisSnapshotRepo はRedisを使用したスナップショットリポジトリ。
// スナップショットはJSONで文字列キーに格納し、格納済みプラットフォームをSETで管理する。
// 期限切れでも304応答の再利用に必要なため、キーにTTLは設定しない。
type RedisSnapshotRepo struct {
	client *redis.Client

	// afterList はDeleteExpiredBeforeが一覧取得を終えた直後に呼ばれる。テスト用。
	afterList func()
}

// NewRedisSnapshotRepo はRedisSnapshotRepoを生成する。
func NewRedisSnapshotRepo(client *redis.Client) *RedisSnapshotRepo {
	return &RedisSnapshotRepo{client: client}
}

// snapshotKey はプラットフォームのスナップショットを格納するキーを返す。
func snapshotKey(platform model.Platform) string {
	return redisKeyPrefix + string(platform)
}

func (r *RedisSnapshotRepo) FindByPlatform(ctx context.Context, platform model.Platform) (*model.Snapshot, error) {
	b, err := r.client.Get(ctx, snapshotKey(platform)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}
	return decodeSnapshot(b)
}

func (r *RedisSnapshotRepo) Save(ctx context.Context, snapshot *model.Snapshot) error {
	b, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(snapshot.Platform), b, 0)
		pipe.SAdd(ctx, redisIndexKey, string(snapshot.Platform))
		return nil
	})
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepo) DeleteByPlatform(ctx context.Context, platform model.Platform) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, snapshotKey(platform))
		pipe.SRem(ctx, redisIndexKey, string(platform))
		return nil
	})
	if err != nil {
		return fmt.Errorf("スナップショットの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteExpiredBefore は一覧で期限切れと判定したキーごとにWATCHを張り、
// 削除直前に有効期限を読み直す。別プロセスが一覧取得後に新しいスナップショットを保存した場合は削除しない。
func (r *RedisSnapshotRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) ([]model.Platform, error) {
	snaps, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if r.afterList != nil {
		r.afterList()
	}

	var deleted []model.Platform
	for _, snap := range snaps {
		if !snap.ValidUntil.Before(before) {
			continue
		}
		ok, err := r.deleteIfExpired(ctx, snap.Platform, before)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, snap.Platform)
		}
	}
	return deleted, nil
}

// deleteIfExpired はキーの現在値がまだbeforeより前に失効している場合のみ削除する。
// WATCH中にキーが書き換えられた場合は削除せずfalseを返す。
func (r *RedisSnapshotRepo) deleteIfExpired(ctx context.Context, platform model.Platform, before time.Time) (bool, error) {
	key := snapshotKey(platform)
	deleted := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		expired, err := expiredBefore(b, before)
		if err != nil || !expired {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, redisIndexKey, string(platform))
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("期限切れスナップショットの削除に失敗しました: %w", err)
	}
	return deleted, nil
}

// expiredBefore は格納値のValidUntilがbeforeより前かを判定する。
func expiredBefore(b []byte, before time.Time) (bool, error) {
	snap, err := decodeSnapshot(b)
	if err != nil {
		return false, err
	}
	return snap.ValidUntil.Before(before), nil
}

func (r *RedisSnapshotRepo) List(ctx context.Context) ([]*model.Snapshot, error) {
	members, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("スナップショット一覧の取得に失敗しました: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = snapshotKey(model.Platform(m))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("スナップショット一覧の取得に失敗しました: %w", err)
	}

	snaps := make([]*model.Snapshot, 0, len(values))
	for _, v := range values {
		// SETに残っていてもキーが消えている場合はnil
		s, ok := v.(string)
		if !ok {
			continue
		}
		snap, err := decodeSnapshot([]byte(s))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func encodeSnapshot(snapshot *model.Snapshot) ([]byte, error) {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("スナップショットのエンコードに失敗しました: %w", err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	if err := json.Unmarshal(b, snap); err != nil {
		return nil, fmt.Errorf("スナップショットのデコードに失敗しました: %w", err)
	}
	return snap, nil
}

var _ SnapshotRepository = (*RedisSnapshotRepo)(nil)
