package analytics

import (
	"context"
	"math"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// TrackRank places a track inside the period's ordering. The upstream returns
// only a neighborhood window around the subject, so the population size is the
// estimate max(window length, rank).
func (e *Engine) TrackRank(ctx context.Context, id string, p model.Period) (model.RankResult, error) {
	window, err := e.stats.TrackRank(ctx, id, p)
	if err != nil {
		return model.RankResult{}, err
	}
	result := rankFromWindow(window)
	result.TrackName = subjectName(window)
	return result, nil
}

func (e *Engine) ArtistRank(ctx context.Context, id string, p model.Period) (model.RankResult, error) {
	window, err := e.stats.ArtistRank(ctx, id, p)
	if err != nil {
		return model.RankResult{}, err
	}
	result := rankFromWindow(window)
	result.ArtistName = subjectName(window)
	return result, nil
}

// rankFromWindow converts the zero-based window index into a one-based rank
// and derives the percentile from the estimated population. rank <= total
// holds by construction.
func rankFromWindow(window statsapi.RankWindow) model.RankResult {
	rank := window.Index + 1
	total := len(window.Results)
	if rank > total {
		total = rank
	}

	result := model.RankResult{Rank: rank, TotalPopulation: total}
	if window.Index >= 0 && window.Index < len(window.Results) {
		result.PlayCount = window.Results[window.Index].PlayCount
	}
	if total > 0 {
		result.Percentile = int(math.Round((1 - float64(rank)/float64(total)) * 100))
	}
	return result
}

func subjectName(window statsapi.RankWindow) string {
	if window.Index >= 0 && window.Index < len(window.Results) {
		return window.Results[window.Index].Name
	}
	return ""
}
