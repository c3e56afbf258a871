package model

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CurrentSchemaVersion は現在のスナップショットのスキーマバージョン。
const CurrentSchemaVersion = 1

// Snapshot はあるプラットフォームのある時点での熱榜を表す。
// 更新時は丸ごと置き換え、フィールド単位では変更しない。
type Snapshot struct {
	ID            string    `json:"id"`
	Platform      Platform  `json:"platform"`
	FetchedAt     time.Time `json:"fetched_at"`
	ValidUntil    time.Time `json:"valid_until"`
	ContentHash   string    `json:"content_hash"`
	Validator     string    `json:"validator,omitempty"` // ETag等の再検証トークン
	SchemaVersion int       `json:"schema_version"`
	Topics        []Topic   `json:"topics"`
}

// IsValid はnow時点でスナップショットが有効期限内かどうかを返す。
// now == ValidUntil の場合は有効とする。
func (s *Snapshot) IsValid(now time.Time) bool {
	return !now.After(s.ValidUntil)
}

// Clone はトピックを含めたディープコピーを返す。
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Topics != nil {
		c.Topics = make([]Topic, len(s.Topics))
		for i, t := range s.Topics {
			c.Topics[i] = t.Clone()
		}
	}
	return &c
}

// WithValidity は有効期限のみを差し替えたコピーを返す。
func (s *Snapshot) WithValidity(validUntil time.Time) *Snapshot {
	c := s.Clone()
	c.ValidUntil = validUntil
	return c
}

// ContentHash はトピック一覧のダイジェストを16進文字列で返す。
// 再検証トークンとは独立にコンテンツの変化を検出するために使用する。
// トピックの順序、タイトル、熱度、順位が同じであれば同じ値になる。
func ContentHash(topics []Topic) string {
	d := xxhash.New()
	for _, t := range topics {
		d.WriteString(t.Title)
		d.WriteString("\x1f")
		d.WriteString(strconv.Itoa(t.HeatValue))
		d.WriteString("\x1f")
		d.WriteString(strconv.Itoa(t.Rank))
		d.WriteString("\x1e")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
