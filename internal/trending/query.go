package trending

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hitoshi/trendlens/internal/model"
)

// Aggregated は指定プラットフォーム（空の場合は全プラットフォーム）の話題を1つの一覧にまとめ、orderで並べる。
// 取得はFetchManyと同じ方針で行い、1つでも失敗すれば全体を失敗とする。
// タイトルにブロックキーワードを含む話題は除外する。
func (c *Coordinator) Aggregated(ctx context.Context, platforms []model.Platform, order model.SortOrder, forceRefresh bool) ([]model.Topic, error) {
	if len(platforms) == 0 {
		platforms = model.AllPlatforms()
	}

	snapshots, err := c.FetchMany(ctx, platforms, forceRefresh)
	if err != nil {
		return nil, err
	}

	keywords, err := c.blockedKeywords(ctx)
	if err != nil {
		return nil, err
	}

	var topics []model.Topic
	for _, s := range snapshots {
		topics = append(topics, model.FilterBlocked(s.Topics, keywords)...)
	}
	SortTopics(topics, order)
	return topics, nil
}

// blockedKeywords はブロックキーワードを返す。Blocklist未設定の場合はnil。
func (c *Coordinator) blockedKeywords(ctx context.Context) ([]string, error) {
	if c.blocklist == nil {
		return nil, nil
	}
	keywords, err := c.blocklist.BlockedKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("ブロックキーワードの読み取りに失敗: %w", err)
	}
	return keywords, nil
}

// SortTopics はtopicsをorderに従って安定ソートする。
func SortTopics(topics []model.Topic, order model.SortOrder) {
	switch order {
	case model.SortByTime:
		slices.SortStableFunc(topics, func(a, b model.Topic) int {
			return b.FetchedAt.Compare(a.FetchedAt)
		})
	case model.SortByPlatform:
		slices.SortStableFunc(topics, func(a, b model.Topic) int {
			return cmp.Compare(a.Platform.DisplayName(), b.Platform.DisplayName())
		})
	default:
		slices.SortStableFunc(topics, func(a, b model.Topic) int {
			return cmp.Compare(b.HeatValue, a.HeatValue)
		})
	}
}

// SearchTopics はキャッシュ済みスナップショットから、タイトルにqueryを含む話題を熱度の降順で返す。
// 大文字小文字は区別しない。Remote Sourceは呼ばない。ブロックキーワードを含む話題は返さない。
// platformsが空の場合は全プラットフォームを対象とする。
func (c *Coordinator) SearchTopics(ctx context.Context, query string, platforms []model.Platform) ([]model.Topic, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []model.Topic{}, nil
	}

	allowed := make(map[model.Platform]bool, len(platforms))
	for _, p := range platforms {
		allowed[p] = true
	}

	snapshots, err := c.cache.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("キャッシュの読み取りに失敗: %w", err)
	}

	keywords, err := c.blockedKeywords(ctx)
	if err != nil {
		return nil, err
	}

	results := []model.Topic{}
	for _, s := range snapshots {
		if len(allowed) > 0 && !allowed[s.Platform] {
			continue
		}
		for _, t := range s.Topics {
			if !strings.Contains(strings.ToLower(t.Title), needle) {
				continue
			}
			if model.ContainsBlockedKeyword(t.Title, keywords) {
				continue
			}
			results = append(results, t)
		}
	}
	SortTopics(results, model.SortByHeat)
	return results, nil
}

// TopicByID はキャッシュ済みスナップショットから話題を探す。見つからない場合はnilを返す。
func (c *Coordinator) TopicByID(ctx context.Context, id string) (*model.Topic, error) {
	snapshots, err := c.cache.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("キャッシュの読み取りに失敗: %w", err)
	}

	for _, s := range snapshots {
		for _, t := range s.Topics {
			if t.ID == id {
				found := t
				return &found, nil
			}
		}
	}
	return nil, nil
}
