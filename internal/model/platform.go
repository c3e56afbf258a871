// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// Platform は熱榜を提供するコンテンツプラットフォームを表す。
// 固定の列挙値であり、マップのキーとして使用する。
type Platform string

const (
	PlatformWeibo       Platform = "weibo"
	PlatformXiaohongshu Platform = "xiaohongshu"
	PlatformBilibili    Platform = "bilibili"
	PlatformDouyin      Platform = "douyin"
	PlatformX           Platform = "x"
	PlatformZhihu       Platform = "zhihu"
)

// AllPlatforms はサポートする全プラットフォームを定義順で返す。
func AllPlatforms() []Platform {
	return []Platform{
		PlatformWeibo,
		PlatformXiaohongshu,
		PlatformBilibili,
		PlatformDouyin,
		PlatformX,
		PlatformZhihu,
	}
}

// displayNames はプラットフォームの表示名。
var displayNames = map[Platform]string{
	PlatformWeibo:       "微博",
	PlatformXiaohongshu: "小红书",
	PlatformBilibili:    "哔哩哔哩",
	PlatformDouyin:      "抖音",
	PlatformX:           "X",
	PlatformZhihu:       "知乎",
}

// ParsePlatform は文字列をPlatformに変換する。
// 大文字小文字と前後の空白は無視する。未知の値の場合はErrUnknownPlatformを返す。
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
	return p, nil
}

// ParsePlatformList はカンマ区切りのプラットフォーム一覧を解析する。
// 空要素は無視し、重複は最初の出現のみを残す。
func ParsePlatformList(s string) ([]Platform, error) {
	var platforms []Platform
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePlatform(part)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return UniquePlatforms(platforms), nil
}

// UniquePlatforms は重複を除いたプラットフォーム一覧を入力順で返す。
func UniquePlatforms(platforms []Platform) []Platform {
	seen := make(map[Platform]bool, len(platforms))
	result := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}

// Valid はPlatformが既知の値かどうかを返す。
func (p Platform) Valid() bool {
	_, ok := displayNames[p]
	return ok
}

// DisplayName はプラットフォームの表示名を返す。
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// String はfmt.Stringerを実装する。
func (p Platform) String() string {
	return string(p)
}
