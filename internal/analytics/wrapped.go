package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// maxWrappedDays is inclusive and tolerates leap years: a full calendar year
// always fits.
const maxWrappedDays = 366

const (
	wrappedTopTracks  = 10
	wrappedTopArtists = 10
	wrappedTopAlbums  = 5
)

// Wrapped builds the custom-period aggregate report. The five upstream
// fetches run concurrently; any failure aborts the whole report, there are
// no partial Wrapped results.
func (e *Engine) Wrapped(ctx context.Context, p model.Period) (model.WrappedReport, error) {
	if days := p.Days(); days > maxWrappedDays {
		return model.WrappedReport{}, model.Invalid("period", "spans %d days; wrapped reports cover at most %d", days, maxWrappedDays)
	}

	var (
		topSongs   model.TopTracksResult
		topArtists model.TopArtistsResult
		topAlbums  model.TopAlbumsResult
		hourSlices []statsapi.DurationBucket
		daySlices  []statsapi.DurationBucket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topSongs, err = e.stats.TopSongs(gctx, p, wrappedTopTracks, 0)
		return err
	})
	g.Go(func() error {
		var err error
		topArtists, err = e.stats.TopArtists(gctx, p, wrappedTopArtists, 0)
		return err
	})
	g.Go(func() error {
		var err error
		topAlbums, err = e.stats.TopAlbums(gctx, p, wrappedTopAlbums, 0)
		return err
	})
	g.Go(func() error {
		var err error
		hourSlices, err = e.stats.TimePer(gctx, p, statsapi.SplitHour)
		return err
	})
	g.Go(func() error {
		var err error
		daySlices, err = e.stats.TimePer(gctx, p, statsapi.SplitDay)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.WrappedReport{}, err
	}

	report := model.WrappedReport{
		Period:     p,
		TopTracks:  topSongs.Items,
		TopArtists: topArtists.Items,
		TopAlbums:  topAlbums.Items,
		// The grand total attached to the top-songs response is the
		// authoritative play count; the dedicated total-plays endpoint
		// miscounts and is never called.
		TotalTrackPlays: topSongs.GrandTotal,
	}

	for _, slice := range hourSlices {
		if slice.HasHour && slice.Hour >= 0 && slice.Hour < 24 {
			report.HourHistogram[slice.Hour] += slice.DurationMS
		}
	}
	for _, slice := range daySlices {
		report.TotalDuration += slice.DurationMS
		// Weekday comes from local calendar math on the slice date, not from
		// any upstream-provided weekday field.
		if wd, ok := weekdayOf(slice.Date); ok {
			report.DayHistogram[wd] += slice.DurationMS
		}
	}

	report.PeakHour = peakHourLabel(report.HourHistogram)
	report.PeakDay = peakDayLabel(report.DayHistogram)
	report.UniqueTracks, report.UniqueArtists = uniqueCounts(topSongs, topArtists, topAlbums)
	report.NewTracks, report.NewArtists = discoveryCounts(topSongs.Items, topArtists.Items)
	return report, nil
}

func weekdayOf(date string) (time.Weekday, bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, false
	}
	return t.Weekday(), true
}

// peakHourLabel returns the arg-max bucket as "HH:00", or "Unknown" when
// every bucket is zero.
func peakHourLabel(hist [24]int64) string {
	best, bestIdx := int64(0), -1
	for i, v := range hist {
		if v > best {
			best, bestIdx = v, i
		}
	}
	if bestIdx < 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%02d:00", bestIdx)
}

func peakDayLabel(hist [7]int64) string {
	best, bestIdx := int64(0), -1
	for i, v := range hist {
		if v > best {
			best, bestIdx = v, i
		}
	}
	if bestIdx < 0 {
		return "Unknown"
	}
	return time.Weekday(bestIdx).String()
}

// uniqueCounts counts distinct ids across the fetched top windows. Best
// effort: the upstream exposes no distinct-count endpoint, so this is a lower
// bound derived from the data already in hand.
func uniqueCounts(tracks model.TopTracksResult, artists model.TopArtistsResult, albums model.TopAlbumsResult) (int, int) {
	trackIDs := map[string]struct{}{}
	artistIDs := map[string]struct{}{}
	for _, item := range tracks.Items {
		if item.Track.ID != "" {
			trackIDs[item.Track.ID] = struct{}{}
		}
		for _, a := range item.Track.Artists {
			if a.ID != "" {
				artistIDs[a.ID] = struct{}{}
			}
		}
	}
	for _, item := range artists.Items {
		if item.Artist.ID != "" {
			artistIDs[item.Artist.ID] = struct{}{}
		}
	}
	for _, item := range albums.Items {
		if item.Artist.ID != "" {
			artistIDs[item.Artist.ID] = struct{}{}
		}
	}
	return len(trackIDs), len(artistIDs)
}

// discoveryCounts applies the low-play-count heuristic to the fetched
// windows. May be zero when the window holds no low-count entries.
func discoveryCounts(tracks []model.TrackPlays, artists []model.ArtistPlays) (int, int) {
	newTracks, newArtists := 0, 0
	for _, item := range tracks {
		if item.PlayCount > 0 && item.PlayCount <= model.DiscoveryPlayThreshold {
			newTracks++
		}
	}
	for _, item := range artists {
		if item.PlayCount > 0 && item.PlayCount <= model.DiscoveryPlayThreshold {
			newArtists++
		}
	}
	return newTracks, newArtists
}
