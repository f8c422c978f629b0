package analytics

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// Compare builds a snapshot for each period and reports absolute and
// percentage deltas, second relative to first. Both snapshots must succeed.
func (e *Engine) Compare(ctx context.Context, first, second model.Period) (model.Comparison, error) {
	var firstSnap, secondSnap model.PeriodSnapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		firstSnap, err = e.snapshot(gctx, first)
		return err
	})
	g.Go(func() error {
		var err error
		secondSnap, err = e.snapshot(gctx, second)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Comparison{}, err
	}

	return model.Comparison{
		First:              firstSnap,
		Second:             secondSnap,
		PlaysChange:        secondSnap.TotalPlays - firstSnap.TotalPlays,
		PlaysChangePercent: percentChange(firstSnap.TotalPlays, secondSnap.TotalPlays),
		DurationChange:     secondSnap.TotalDuration - firstSnap.TotalDuration,
		DurationChangePct:  percentChange(firstSnap.TotalDuration, secondSnap.TotalDuration),
	}, nil
}

// snapshot condenses one period: authoritative play total from the top-songs
// grand total, duration summed from the daily series, plus the leading track
// and artist.
func (e *Engine) snapshot(ctx context.Context, p model.Period) (model.PeriodSnapshot, error) {
	var (
		topSongs   model.TopTracksResult
		topArtists model.TopArtistsResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topSongs, err = e.stats.TopSongs(gctx, p, 1, 0)
		return err
	})
	g.Go(func() error {
		var err error
		topArtists, err = e.stats.TopArtists(gctx, p, 1, 0)
		return err
	})

	var totalDuration int64
	g.Go(func() error {
		slices, err := e.stats.TimePer(gctx, p, statsapi.SplitDay)
		if err != nil {
			return err
		}
		for _, slice := range slices {
			totalDuration += slice.DurationMS
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.PeriodSnapshot{}, err
	}

	snap := model.PeriodSnapshot{
		Period:        p,
		TotalPlays:    topSongs.GrandTotal,
		TotalDuration: totalDuration,
	}
	if len(topSongs.Items) > 0 {
		snap.TopTrack = &topSongs.Items[0]
	}
	if len(topArtists.Items) > 0 {
		snap.TopArtist = &topArtists.Items[0]
	}
	return snap, nil
}

// percentChange is the relative change of to against from, rounded to one
// decimal. A zero base yields 0, never infinity.
func percentChange(from, to int64) float64 {
	if from == 0 {
		return 0
	}
	return math.Round(float64(to-from)/float64(from)*1000) / 10
}
