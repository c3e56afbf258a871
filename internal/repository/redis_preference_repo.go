package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/trendlens/internal/model"
)

const (
	redisPreferencePrefix = "trendlens:preference:"
	// maxPreferenceRetries はWATCH競合時に更新をやり直す回数。
	maxPreferenceRetries = 5
)

// RedisPreferenceRepo はRedisを使用した設定リポジトリ。
// 設定はJSONで文字列キーに格納し、更新はWATCHによる楽観ロックで行う。
type RedisPreferenceRepo struct {
	client *redis.Client
}

// NewRedisPreferenceRepo はRedisPreferenceRepoを生成する。
func NewRedisPreferenceRepo(client *redis.Client) *RedisPreferenceRepo {
	return &RedisPreferenceRepo{client: client}
}

func preferenceKey(id string) string {
	return redisPreferencePrefix + id
}

func (r *RedisPreferenceRepo) Find(ctx context.Context, id string) (*model.Preference, error) {
	p, err := loadPreference(ctx, r.client, id)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	return p, nil
}

func (r *RedisPreferenceRepo) Update(ctx context.Context, id string, fn func(p *model.Preference) error) (*model.Preference, error) {
	key := preferenceKey(id)
	var updated *model.Preference

	txf := func(tx *redis.Tx) error {
		p, err := loadPreference(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		b, err := encodePreference(p)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err == nil {
			updated = p
		}
		return err
	}

	for range maxPreferenceRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: id=%s", model.ErrPreferenceConflict, id)
}

// stringGetter は*redis.Clientと*redis.Txに共通するGET操作。
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// loadPreference はキーから設定を読み込む。キーがなければ空の設定を返す。
func loadPreference(ctx context.Context, c stringGetter, id string) (*model.Preference, error) {
	b, err := c.Get(ctx, preferenceKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewPreference(id), nil
	}
	if err != nil {
		return nil, err
	}
	return decodePreference(b)
}

func encodePreference(p *model.Preference) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("設定のエンコードに失敗しました: %w", err)
	}
	return b, nil
}

func decodePreference(b []byte) (*model.Preference, error) {
	p := &model.Preference{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗しました: %w", err)
	}
	if p.FavoriteTopicIDs == nil {
		p.FavoriteTopicIDs = []string{}
	}
	if p.BlockedKeywords == nil {
		p.BlockedKeywords = []string{}
	}
	return p, nil
}

var _ PreferenceRepository = (*RedisPreferenceRepo)(nil)
