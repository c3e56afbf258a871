// Package compare は複数プラットフォームの熱榜比較（共通話題・独自話題の抽出）を提供する。
package compare

import (
	"sort"

	"github.com/hitoshi/trendlens/internal/model"
	"github.com/hitoshi/trendlens/internal/similarity"
)

// DefaultThreshold はタイトルを同一話題とみなす既定の類似度閾値。
const DefaultThreshold = 0.8

// Group はトピックを類似度でグループ化する。
// 入力順に各トピックを走査し、作成順に既存グループを調べて、
// 代表（先頭）メンバーとの類似度が閾値以上で、かつ同じプラットフォームの
// メンバーをまだ含まない最初のグループに加える。該当がなければ新しいグループを作る。
// 代表メンバーとのみ比較するため、推移的なクラスタリングではない。
func Group(topics []model.Topic, threshold float64) [][]model.Topic {
	var groups [][]model.Topic

	for _, topic := range topics {
		joined := false
		for i, group := range groups {
			if containsPlatform(group, topic.Platform) {
				continue
			}
			if similarity.Score(topic.Title, group[0].Title) >= threshold {
				groups[i] = append(groups[i], topic)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, []model.Topic{topic})
		}
	}

	return groups
}

// Intersection は指定された全プラットフォームに1件ずつ現れる話題グループを返す。
// スナップショットは到着順ではなくplatformsの順に連結するため、結果は到着順に依存しない。
// 結果は平均熱度の降順（同値は入力順）で並ぶ。
func Intersection(snapshots []*model.Snapshot, platforms []model.Platform, threshold float64) []model.ComparisonResult {
	platforms = model.UniquePlatforms(platforms)
	topics := concatTopics(snapshots, platforms)

	var results []model.ComparisonResult
	for _, group := range Group(topics, threshold) {
		if !coversExactly(group, platforms) {
			continue
		}
		results = append(results, toComparisonResult(group, platforms))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AverageHeat > results[j].AverageHeat
	})

	return results
}

// Unique はtargetのうち、othersのいずれのトピックとも類似度が閾値未満のものを返す。
// 結果は熱度の降順（同値は入力順）で並ぶ。
func Unique(target []model.Topic, others []model.Topic, threshold float64) []model.Topic {
	result := make([]model.Topic, 0, len(target))

	for _, t := range target {
		shared := false
		for _, o := range others {
			if similarity.Score(t.Title, o.Title) >= threshold {
				shared = true
				break
			}
		}
		if !shared {
			result = append(result, t)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].HeatValue > result[j].HeatValue
	})

	return result
}

// concatTopics はplatformsの順にスナップショットのトピックを連結する。
func concatTopics(snapshots []*model.Snapshot, platforms []model.Platform) []model.Topic {
	byPlatform := make(map[model.Platform]*model.Snapshot, len(snapshots))
	for _, s := range snapshots {
		if s != nil {
			byPlatform[s.Platform] = s
		}
	}

	var topics []model.Topic
	for _, p := range platforms {
		if s, ok := byPlatform[p]; ok {
			topics = append(topics, s.Topics...)
		}
	}
	return topics
}

// coversExactly はグループのメンバーが各プラットフォームからちょうど1件ずつで構成されるかを返す。
func coversExactly(group []model.Topic, platforms []model.Platform) bool {
	if len(group) != len(platforms) {
		return false
	}
	for _, p := range platforms {
		if !containsPlatform(group, p) {
			return false
		}
	}
	return true
}

func containsPlatform(group []model.Topic, p model.Platform) bool {
	for _, t := range group {
		if t.Platform == p {
			return true
		}
	}
	return false
}

// toComparisonResult はグループをComparisonResultに変換する。
// 平均熱度は切り捨ての整数除算。
func toComparisonResult(group []model.Topic, platforms []model.Platform) model.ComparisonResult {
	sum := 0
	for _, t := range group {
		sum += t.HeatValue
	}

	members := make([]model.Topic, len(group))
	copy(members, group)

	return model.ComparisonResult{
		Title:       group[0].Title,
		Topics:      members,
		Platforms:   append([]model.Platform(nil), platforms...),
		AverageHeat: sum / len(group),
	}
}
