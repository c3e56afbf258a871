package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部ソースから取り込んだ話題のタイトルや概要を平文に変換する。
// 熱榜の話題は平文として扱うため、HTMLタグはすべて除去する。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、実体参照をデコードし、連続する空白を1つにまとめる。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// bluemondayのPolicyは生成後の並行利用が安全。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは&等をエスケープして返すため、平文に戻す
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}
