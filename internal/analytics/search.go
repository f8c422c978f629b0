package analytics

import (
	"context"
	"errors"
	"strings"

	"tunescope/internal/model"
)

// minArtistQueryLen is the upstream's minimum for the artist-search endpoint.
// Shorter queries skip the endpoint entirely and fall through to filtering.
const minArtistQueryLen = 3

const searchScanWindow = 30

// SearchHistory finds tracks, artists or albums in the listening history whose
// name matches the query. The upstream has no general history search, so this
// filters the period's top window case-insensitively; for artists, the
// dedicated search endpoint is tried first and its hits joined against the
// window by id or name.
func (e *Engine) SearchHistory(ctx context.Context, query, kind string, p model.Period) (model.SearchHistoryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.SearchHistoryResult{}, model.Invalid("query", "must not be empty")
	}

	switch kind {
	case "track":
		return e.searchTracks(ctx, query, p)
	case "artist":
		return e.searchArtists(ctx, query, p)
	case "album":
		return e.searchAlbums(ctx, query, p)
	default:
		return model.SearchHistoryResult{}, model.Invalid("type", "must be one of track, artist, album")
	}
}

func (e *Engine) searchTracks(ctx context.Context, query string, p model.Period) (model.SearchHistoryResult, error) {
	window, err := e.stats.TopSongs(ctx, p, searchScanWindow, 0)
	if err != nil {
		return model.SearchHistoryResult{}, err
	}

	result := model.SearchHistoryResult{Query: query, Type: "track"}
	needle := strings.ToLower(query)
	for _, item := range window.Items {
		if strings.Contains(strings.ToLower(item.Track.Name), needle) || anyArtistMatches(item.Track.Artists, needle) {
			result.Tracks = append(result.Tracks, item)
		}
	}
	result.Total = len(result.Tracks)
	return result, nil
}

func (e *Engine) searchArtists(ctx context.Context, query string, p model.Period) (model.SearchHistoryResult, error) {
	window, err := e.stats.TopArtists(ctx, p, searchScanWindow, 0)
	if err != nil {
		return model.SearchHistoryResult{}, err
	}

	// Hits from the dedicated endpoint are joined against the window by id or
	// exact name. The substring filter below stands on its own, so endpoint
	// failures and empty candidate sets degrade silently.
	matchedIDs := map[string]struct{}{}
	matchedNames := map[string]struct{}{}
	if len([]rune(query)) >= minArtistQueryLen {
		hits, err := e.stats.SearchArtists(ctx, query)
		switch {
		case err == nil:
			for _, a := range hits {
				matchedIDs[a.ID] = struct{}{}
				matchedNames[strings.ToLower(a.Name)] = struct{}{}
			}
		case !isUpstream(err):
			return model.SearchHistoryResult{}, err
		}
	}

	result := model.SearchHistoryResult{Query: query, Type: "artist"}
	needle := strings.ToLower(query)
	for _, item := range window.Items {
		name := strings.ToLower(item.Artist.Name)
		_, idHit := matchedIDs[item.Artist.ID]
		_, nameHit := matchedNames[name]
		if idHit || nameHit || strings.Contains(name, needle) {
			result.Artists = append(result.Artists, item)
		}
	}
	result.Total = len(result.Artists)
	return result, nil
}

func (e *Engine) searchAlbums(ctx context.Context, query string, p model.Period) (model.SearchHistoryResult, error) {
	window, err := e.stats.TopAlbums(ctx, p, searchScanWindow, 0)
	if err != nil {
		return model.SearchHistoryResult{}, err
	}

	result := model.SearchHistoryResult{Query: query, Type: "album"}
	needle := strings.ToLower(query)
	for _, item := range window.Items {
		if strings.Contains(strings.ToLower(item.Album.Name), needle) ||
			strings.Contains(strings.ToLower(item.Artist.Name), needle) {
			result.Albums = append(result.Albums, item)
		}
	}
	result.Total = len(result.Albums)
	return result, nil
}

func anyArtistMatches(artists []model.Artist, needle string) bool {
	for _, a := range artists {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return true
		}
	}
	return false
}

func isUpstream(err error) bool {
	var ue *model.UpstreamError
	return errors.As(err, &ue)
}
