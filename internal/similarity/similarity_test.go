package similarity

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestScore_IdenticalStrings(t *testing.T) {
	for _, s := range []string{"a", "Breaking News Today", "微博热搜", "  padded  "} {
		if got := Score(s, s); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestScore_EmptyPairIsZero(t *testing.T) {
	if got := Score("", ""); got != 0.0 {
		t.Errorf(`Score("", "") = %v, want 0.0`, got)
	}
	// 空白のみは正規化後に空になる
	if got := Score("   ", "\t"); got != 0.0 {
		t.Errorf("空白のみの組み合わせ = %v, want 0.0", got)
	}
}

func TestScore_OneEmpty(t *testing.T) {
	if got := Score("abc", ""); got != 0.0 {
		t.Errorf(`Score("abc", "") = %v, want 0.0`, got)
	}
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"Breaking News", "breaking news today"},
		{"热搜第一", "热搜第二名"},
		{"", "x"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if math.Abs(ab-ba) > epsilon {
			t.Errorf("Score(%q,%q)=%v と Score(%q,%q)=%v が一致しない", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScore_NormalizesCaseAndWhitespace(t *testing.T) {
	if got := Score("  Breaking NEWS ", "breaking news"); got != 1.0 {
		t.Errorf("正規化後に一致する文字列の類似度 = %v, want 1.0", got)
	}
}

func TestScore_LevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		// kitten -> sitting は距離3、長い方は7文字
		{"kitten", "sitting", 1.0 - 3.0/7.0},
		{"abcd", "abce", 0.75},
		{"abc", "xyz", 0.0},
		// ルーン単位で数える
		{"热搜第一", "热搜第二", 0.75},
	}
	for _, tt := range tests {
		got := Score(tt.a, tt.b)
		if math.Abs(got-tt.want) > epsilon {
			t.Errorf("Score(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScore_Range(t *testing.T) {
	pairs := [][2]string{
		{"a", "bbbbbbbb"},
		{"Unique Story X", "Totally Different Topic"},
		{"same", "same"},
	}
	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Score(%q,%q) = %v が[0,1]の範囲外", p[0], p[1], got)
		}
	}
}
