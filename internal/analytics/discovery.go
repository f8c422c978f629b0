package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tunescope/internal/model"
)

const discoveryScanWindow = 30

// Discoveries surfaces probable new finds in the period: entries in the top
// window whose play count sits at or below the discovery threshold. Heuristic
// only; the upstream has no first-listen signal.
func (e *Engine) Discoveries(ctx context.Context, p model.Period) (model.DiscoveryReport, error) {
	var (
		topSongs   model.TopTracksResult
		topArtists model.TopArtistsResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topSongs, err = e.stats.TopSongs(gctx, p, discoveryScanWindow, 0)
		return err
	})
	g.Go(func() error {
		var err error
		topArtists, err = e.stats.TopArtists(gctx, p, discoveryScanWindow, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.DiscoveryReport{}, err
	}

	report := model.DiscoveryReport{Period: p, Threshold: model.DiscoveryPlayThreshold}
	for _, item := range topSongs.Items {
		if item.PlayCount > 0 && item.PlayCount <= model.DiscoveryPlayThreshold {
			report.Tracks = append(report.Tracks, item)
		}
	}
	for _, item := range topArtists.Items {
		if item.PlayCount > 0 && item.PlayCount <= model.DiscoveryPlayThreshold {
			report.Artists = append(report.Artists, item)
		}
	}
	return report, nil
}
