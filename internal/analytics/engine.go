// Package analytics derives normalized analytic results from the raw
// listening-history payloads: period aggregation, ranking, discovery
// heuristics, comparison and affinity scoring.
//
// The engine owns no state across calls; every operation is a pure function
// of its parameters and the upstream data at call time. Estimated values
// (duration from counts, plays from duration, affinity distribution) each go
// through one named helper in internal/model so they cannot be mistaken for
// measurements.
package analytics

import (
	"context"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

type Engine struct {
	stats *statsapi.Client
}

func NewEngine(stats *statsapi.Client) *Engine {
	return &Engine{stats: stats}
}

// TopTracks returns up to limit ranked tracks for the period, sorted by play
// count descending with upstream order preserved on ties.
func (e *Engine) TopTracks(ctx context.Context, p model.Period, limit, offset int) (model.TopTracksResult, error) {
	result, err := e.stats.TopSongs(ctx, p, limit, offset)
	if err != nil {
		return model.TopTracksResult{}, err
	}
	if limit > 0 && len(result.Items) > limit {
		result.Items = result.Items[:limit]
	}
	return result, nil
}

func (e *Engine) TopArtists(ctx context.Context, p model.Period, limit, offset int) (model.TopArtistsResult, error) {
	result, err := e.stats.TopArtists(ctx, p, limit, offset)
	if err != nil {
		return model.TopArtistsResult{}, err
	}
	if limit > 0 && len(result.Items) > limit {
		result.Items = result.Items[:limit]
	}
	return result, nil
}

func (e *Engine) TrackStats(ctx context.Context, id string) (model.TrackStats, error) {
	return e.stats.TrackStats(ctx, id)
}

func (e *Engine) ArtistStats(ctx context.Context, id string) (model.ArtistStats, error) {
	return e.stats.ArtistStats(ctx, id)
}

func (e *Engine) Profile(ctx context.Context) (model.UserProfile, error) {
	return e.stats.Me(ctx)
}
