// Package similarity は話題タイトルの類似度計算を提供する。
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Score は2つの文字列の類似度を[0,1]で返す。
// 両者を小文字化・前後の空白除去で正規化した後、
// 1 - 編集距離 / 長い方のルーン数 を計算する。
// 正規化後に両方とも空の場合は0を返す。
func Score(a, b string) float64 {
	na := normalize(a)
	nb := normalize(b)

	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if maxLen == 0 {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	d := levenshtein.ComputeDistance(na, nb)
	return 1.0 - float64(d)/float64(maxLen)
}

// normalize は比較用に文字列を正規化する。
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
