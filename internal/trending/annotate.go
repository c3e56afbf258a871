package trending

import "github.com/hitoshi/trendlens/internal/model"

// maxHeatHistory は話題ごとに保持する熱度履歴の最大点数。
const maxHeatHistory = 24

// annotate は前回のスナップショットと比較して、各話題の順位変動と熱度履歴を設定する。
// 話題は話題IDで対応付ける。取得元が順位変動や履歴を返している場合はそれを優先する。
// 前回のスナップショットがない場合、順位変動はすべてUnchangedとする。
func annotate(fresh, previous *model.Snapshot) {
	var prevByID map[string]model.Topic
	if previous != nil {
		prevByID = make(map[string]model.Topic, len(previous.Topics))
		for _, t := range previous.Topics {
			prevByID[t.ID] = t
		}
	}

	for i := range fresh.Topics {
		t := &fresh.Topics[i]
		prev, seen := prevByID[t.ID]

		if t.RankChange.Kind == "" {
			t.RankChange = rankChange(previous != nil, seen, prev.Rank, t.Rank)
		}
		if seen && len(t.HeatHistory) == 0 {
			t.HeatHistory = extendHistory(prev)
		}
	}
}

func rankChange(hasPrevious, seen bool, prevRank, rank int) model.RankChange {
	switch {
	case !hasPrevious:
		return model.RankUnchanged()
	case !seen:
		return model.RankNew()
	case rank < prevRank:
		return model.RankUp(prevRank - rank)
	case rank > prevRank:
		return model.RankDown(rank - prevRank)
	default:
		return model.RankUnchanged()
	}
}

// extendHistory は前回の話題の履歴に前回時点の熱度を追記し、古い点を切り詰めて返す。
func extendHistory(prev model.Topic) []model.HeatDataPoint {
	history := make([]model.HeatDataPoint, 0, len(prev.HeatHistory)+1)
	history = append(history, prev.Clone().HeatHistory...)

	// 同じ時刻の点は重複して追記しない
	if n := len(history); n == 0 || !history[n-1].Timestamp.Equal(prev.FetchedAt) {
		rank := prev.Rank
		history = append(history, model.HeatDataPoint{
			Timestamp: prev.FetchedAt,
			HeatValue: prev.HeatValue,
			Rank:      &rank,
		})
	}

	if len(history) > maxHeatHistory {
		history = history[len(history)-maxHeatHistory:]
	}
	return history
}
