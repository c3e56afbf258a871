package model

import (
	"slices"
	"strings"
	"time"
)

// DefaultPreferenceID はプロセス全体で共有する設定のID。
// 利用者ごとの設定は持たず、この1件だけを読み書きする。
const DefaultPreferenceID = "default"

// 設定値の上限。
const (
	MaxFavoriteTopics  = 500
	MaxBlockedKeywords = 200
	MaxTopicIDLength   = 255
	MaxKeywordLength   = 64
)

// Preference はお気に入り話題とブロックキーワードの設定。
type Preference struct {
	ID               string    `json:"id"`
	FavoriteTopicIDs []string  `json:"favorite_topic_ids"`
	BlockedKeywords  []string  `json:"blocked_keywords"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewPreference は空の設定を返す。
func NewPreference(id string) *Preference {
	return &Preference{
		ID:               id,
		FavoriteTopicIDs: []string{},
		BlockedKeywords:  []string{},
	}
}

// Clone はスライスを共有しないコピーを返す。
func (p *Preference) Clone() *Preference {
	if p == nil {
		return nil
	}
	c := *p
	c.FavoriteTopicIDs = append([]string{}, p.FavoriteTopicIDs...)
	c.BlockedKeywords = append([]string{}, p.BlockedKeywords...)
	return &c
}

// AddFavorite は話題IDをお気に入りの末尾に追加する。既に含まれていればfalseを返す。
func (p *Preference) AddFavorite(topicID string) bool {
	if slices.Contains(p.FavoriteTopicIDs, topicID) {
		return false
	}
	p.FavoriteTopicIDs = append(p.FavoriteTopicIDs, topicID)
	return true
}

// RemoveFavorite は話題IDをお気に入りから外す。含まれていなければfalseを返す。
func (p *Preference) RemoveFavorite(topicID string) bool {
	before := len(p.FavoriteTopicIDs)
	p.FavoriteTopicIDs = slices.DeleteFunc(p.FavoriteTopicIDs, func(id string) bool { return id == topicID })
	return len(p.FavoriteTopicIDs) != before
}

// IsFavorite は話題IDがお気に入りに含まれるかを返す。
func (p *Preference) IsFavorite(topicID string) bool {
	return slices.Contains(p.FavoriteTopicIDs, topicID)
}

// AddBlockedKeyword はキーワードを追加する。大文字小文字を無視して重複していればfalseを返す。
func (p *Preference) AddBlockedKeyword(keyword string) bool {
	if p.HasBlockedKeyword(keyword) {
		return false
	}
	p.BlockedKeywords = append(p.BlockedKeywords, keyword)
	return true
}

// RemoveBlockedKeyword はキーワードを大文字小文字を無視して削除する。
func (p *Preference) RemoveBlockedKeyword(keyword string) bool {
	before := len(p.BlockedKeywords)
	p.BlockedKeywords = slices.DeleteFunc(p.BlockedKeywords, func(k string) bool {
		return strings.EqualFold(k, keyword)
	})
	return len(p.BlockedKeywords) != before
}

// HasBlockedKeyword はキーワードが登録済みかを大文字小文字を無視して返す。
func (p *Preference) HasBlockedKeyword(keyword string) bool {
	return slices.ContainsFunc(p.BlockedKeywords, func(k string) bool {
		return strings.EqualFold(k, keyword)
	})
}

// ContainsBlockedKeyword はtextがいずれかのキーワードを部分文字列として含むかを返す。
// 大文字小文字は区別しない。空のキーワードは無視する。
func ContainsBlockedKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// FilterBlocked はタイトルにブロックキーワードを含む話題を除いた新しいスライスを返す。
func FilterBlocked(topics []Topic, keywords []string) []Topic {
	if len(keywords) == 0 {
		return topics
	}
	kept := make([]Topic, 0, len(topics))
	for _, t := range topics {
		if !ContainsBlockedKeyword(t.Title, keywords) {
			kept = append(kept, t)
		}
	}
	return kept
}
