package model

// ComparisonResult は複数プラットフォームに共通する話題のグループ。
// 比較クエリのたびに算出され、永続化しない。
type ComparisonResult struct {
	Title       string     `json:"title"` // 代表トピックのタイトル
	Topics      []Topic    `json:"topics"`
	Platforms   []Platform `json:"platforms"`
	AverageHeat int        `json:"average_heat"`
}

// HasPlatform はグループが指定プラットフォームを含むかどうかを返す。
func (r ComparisonResult) HasPlatform(p Platform) bool {
	for _, rp := range r.Platforms {
		if rp == p {
			return true
		}
	}
	return false
}

// SortOrder は集約一覧の並び順。
type SortOrder string

const (
	// SortByHeat は熱度の降順。
	SortByHeat SortOrder = "heat"
	// SortByTime はフェッチ時刻の降順。
	SortByTime SortOrder = "time"
	// SortByPlatform はプラットフォーム表示名の昇順。
	SortByPlatform SortOrder = "platform"
)

// ParseSortOrder は文字列をSortOrderに変換する。空文字列や未知の値はSortByHeatとする。
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortByTime:
		return SortByTime
	case SortByPlatform:
		return SortByPlatform
	default:
		return SortByHeat
	}
}
