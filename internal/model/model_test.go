package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParsePlatform_KnownValues(t *testing.T) {
	for _, p := range AllPlatforms() {
		got, err := ParsePlatform(" " + string(p) + " ")
		if err != nil {
			t.Fatalf("ParsePlatform(%q) がエラーを返した: %v", p, err)
		}
		if got != p {
			t.Errorf("ParsePlatform(%q) = %q, want %q", p, got, p)
		}
	}
}

func TestParsePlatform_CaseInsensitive(t *testing.T) {
	got, err := ParsePlatform("Weibo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != PlatformWeibo {
		t.Errorf("ParsePlatform(Weibo) = %q, want %q", got, PlatformWeibo)
	}
}

func TestParsePlatform_Unknown(t *testing.T) {
	_, err := ParsePlatform("myspace")
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("err = %v, want ErrUnknownPlatform", err)
	}
}

func TestParsePlatformList_DeduplicatesAndSkipsEmpty(t *testing.T) {
	got, err := ParsePlatformList("weibo, zhihu,,weibo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Platform{PlatformWeibo, PlatformZhihu}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParsePlatformList_Empty(t *testing.T) {
	got, err := ParsePlatformList("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestPlatform_DisplayName(t *testing.T) {
	if PlatformZhihu.DisplayName() != "知乎" {
		t.Errorf("DisplayName = %q, want 知乎", PlatformZhihu.DisplayName())
	}
	if Platform("unknown").DisplayName() != "unknown" {
		t.Error("未知のプラットフォームは値そのものを表示名とするべき")
	}
}

func TestSnapshot_IsValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		validUntil time.Time
		want       bool
	}{
		{"過去", now.Add(-time.Minute), false},
		{"未来", now.Add(time.Minute), true},
		{"境界", now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Snapshot{ValidUntil: tt.validUntil}
			if got := s.IsValid(now); got != tt.want {
				t.Errorf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_CloneDoesNotShareTopics(t *testing.T) {
	rank := 3
	orig := &Snapshot{
		ID:       "s1",
		Platform: PlatformWeibo,
		Topics: []Topic{{
			ID:          "t1",
			Title:       "元のタイトル",
			Tags:        []string{"a"},
			HeatHistory: []HeatDataPoint{{HeatValue: 10, Rank: &rank}},
		}},
	}

	c := orig.Clone()
	c.Topics[0].Title = "変更"
	c.Topics[0].Tags[0] = "b"
	*c.Topics[0].HeatHistory[0].Rank = 9

	if orig.Topics[0].Title != "元のタイトル" {
		t.Error("Clone後の変更が元のタイトルに影響した")
	}
	if orig.Topics[0].Tags[0] != "a" {
		t.Error("Clone後の変更が元のタグに影響した")
	}
	if *orig.Topics[0].HeatHistory[0].Rank != 3 {
		t.Error("Clone後の変更が元の熱度履歴に影響した")
	}
}

func TestSnapshot_WithValidity(t *testing.T) {
	orig := &Snapshot{ID: "s1", ValidUntil: time.Unix(100, 0)}
	next := orig.WithValidity(time.Unix(200, 0))

	if !orig.ValidUntil.Equal(time.Unix(100, 0)) {
		t.Error("WithValidity は元のスナップショットを変更してはならない")
	}
	if !next.ValidUntil.Equal(time.Unix(200, 0)) || next.ID != "s1" {
		t.Errorf("next = %+v", next)
	}
}

func TestContentHash_StableAndSensitive(t *testing.T) {
	a := []Topic{{Title: "A", HeatValue: 1, Rank: 1}, {Title: "B", HeatValue: 2, Rank: 2}}
	b := []Topic{{Title: "A", HeatValue: 1, Rank: 1}, {Title: "B", HeatValue: 2, Rank: 2}}
	c := []Topic{{Title: "A", HeatValue: 1, Rank: 1}, {Title: "B", HeatValue: 3, Rank: 2}}

	if ContentHash(a) != ContentHash(b) {
		t.Error("同一内容のハッシュが一致しない")
	}
	if ContentHash(a) == ContentHash(c) {
		t.Error("熱度の変化がハッシュに反映されていない")
	}
}

func TestRankChange_Value(t *testing.T) {
	tests := []struct {
		rc   RankChange
		want int
	}{
		{RankNew(), 0},
		{RankUnchanged(), 0},
		{RankUp(3), 3},
		{RankDown(2), -2},
		{RankUp(0), 1},
	}
	for _, tt := range tests {
		if got := tt.rc.Value(); got != tt.want {
			t.Errorf("%+v.Value() = %d, want %d", tt.rc, got, tt.want)
		}
	}
}

func TestRankChange_JSON(t *testing.T) {
	data, err := json.Marshal(RankUp(4))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"kind":"up","delta":4}` {
		t.Errorf("json = %s", data)
	}
}

func TestRemoteError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("boom")
	err := NewRemoteError(RemoteServerError, PlatformX, 503, inner)

	if !errors.Is(err, inner) {
		t.Error("RemoteError は元のエラーをUnwrapできるべき")
	}

	var re *RemoteError
	if !errors.As(error(err), &re) || re.StatusCode != 503 {
		t.Errorf("errors.As で RemoteError を取得できない: %v", err)
	}
	want := "remote server_error (platform=x, status=503): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewTopicNotFoundError("t-1")
	if err.Error() != "[TOPIC_NOT_FOUND] 指定された話題が見つかりません: t-1" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseSortOrder(t *testing.T) {
	if ParseSortOrder("time") != SortByTime {
		t.Error("time")
	}
	if ParseSortOrder("platform") != SortByPlatform {
		t.Error("platform")
	}
	if ParseSortOrder("") != SortByHeat || ParseSortOrder("bogus") != SortByHeat {
		t.Error("既定値はheatであるべき")
	}
}
