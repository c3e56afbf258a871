package model

import "time"

// RankChangeKind は順位変動の種類を表す。
type RankChangeKind string

const (
	// RankChangeNew は新規ランクイン。
	RankChangeNew RankChangeKind = "new"
	// RankChangeUp は順位上昇。
	RankChangeUp RankChangeKind = "up"
	// RankChangeDown は順位下降。
	RankChangeDown RankChangeKind = "down"
	// RankChangeUnchanged は順位変動なし。
	RankChangeUnchanged RankChangeKind = "unchanged"
)

// RankChange は前回スナップショットからの順位変動を表す。
// DeltaはUp/Downの場合のみ意味を持ち、常に1以上。
type RankChange struct {
	Kind  RankChangeKind `json:"kind"`
	Delta int            `json:"delta,omitempty"`
}

// RankNew は新規ランクインを表すRankChangeを返す。
func RankNew() RankChange { return RankChange{Kind: RankChangeNew} }

// RankUnchanged は変動なしを表すRankChangeを返す。
func RankUnchanged() RankChange { return RankChange{Kind: RankChangeUnchanged} }

// RankUp はn位上昇を表すRankChangeを返す。nが1未満の場合は1とする。
func RankUp(n int) RankChange { return RankChange{Kind: RankChangeUp, Delta: max(n, 1)} }

// RankDown はn位下降を表すRankChangeを返す。nが1未満の場合は1とする。
func RankDown(n int) RankChange { return RankChange{Kind: RankChangeDown, Delta: max(n, 1)} }

// Value は順位変動を符号付き整数で返す（上昇は正、下降は負、それ以外は0）。
func (r RankChange) Value() int {
	switch r.Kind {
	case RankChangeUp:
		return r.Delta
	case RankChangeDown:
		return -r.Delta
	default:
		return 0
	}
}

// HeatDataPoint はある時点での熱度の記録。
// 表示層のみが使用し、コア処理ではそのまま運搬する。
type HeatDataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	HeatValue int       `json:"heat_value"`
	Rank      *int      `json:"rank,omitempty"`
}

// Topic は熱榜の1エントリを表す。
// Remote Sourceがフェッチ時に生成し、以降は変更しない。
type Topic struct {
	ID          string          `json:"id"`
	Platform    Platform        `json:"platform"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Link        string          `json:"link,omitempty"`
	HeatValue   int             `json:"heat_value"`
	Rank        int             `json:"rank"`
	RankChange  RankChange      `json:"rank_change"`
	Tags        []string        `json:"tags,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
	HeatHistory []HeatDataPoint `json:"heat_history,omitempty"`
}

// Clone はスライスを共有しないTopicのコピーを返す。
func (t Topic) Clone() Topic {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.HeatHistory != nil {
		c.HeatHistory = make([]HeatDataPoint, len(t.HeatHistory))
		for i, p := range t.HeatHistory {
			c.HeatHistory[i] = p
			if p.Rank != nil {
				r := *p.Rank
				c.HeatHistory[i].Rank = &r
			}
		}
	}
	return c
}
