package analytics

import (
	"context"
	"encoding/csv"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

const exportWindow = 30

// Export assembles a period bundle in one of three shapes: "summary" carries
// totals only, "full" carries the track and artist windows, "csv" renders the
// track window as RFC 4180 text. Cell values are quoted by the encoder, so
// names containing commas or quotes survive a round trip.
func (e *Engine) Export(ctx context.Context, p model.Period, shape string) (model.ExportBundle, error) {
	switch shape {
	case "summary", "full", "csv":
	default:
		return model.ExportBundle{}, model.Invalid("shape", "must be one of summary, full, csv")
	}

	var (
		topSongs      model.TopTracksResult
		topArtists    model.TopArtistsResult
		totalDuration int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topSongs, err = e.stats.TopSongs(gctx, p, exportWindow, 0)
		return err
	})
	g.Go(func() error {
		var err error
		topArtists, err = e.stats.TopArtists(gctx, p, exportWindow, 0)
		return err
	})
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
		return model.ExportBundle{}, err
	}

	bundle := model.ExportBundle{
		Period:        p,
		Shape:         shape,
		TotalPlays:    topSongs.GrandTotal,
		TotalDuration: totalDuration,
	}

	switch shape {
	case "full":
		bundle.Tracks = topSongs.Items
		bundle.Artists = topArtists.Items
	case "csv":
		csvText, err := tracksCSV(topSongs.Items)
		if err != nil {
			return model.ExportBundle{}, err
		}
		bundle.CSV = csvText
	}
	return bundle, nil
}

func tracksCSV(items []model.TrackPlays) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"rank", "track_id", "track_name", "artists", "album", "play_count"}); err != nil {
		return "", err
	}
	for i, item := range items {
		names := make([]string, 0, len(item.Track.Artists))
		for _, a := range item.Track.Artists {
			names = append(names, a.Name)
		}
		row := []string{
			strconv.Itoa(i + 1),
			item.Track.ID,
			item.Track.Name,
			strings.Join(names, "; "),
			item.Track.Album.Name,
			strconv.FormatInt(item.PlayCount, 10),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
