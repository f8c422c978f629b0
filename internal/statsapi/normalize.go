package statsapi

import (
	"encoding/json"
	"fmt"
	"sort"

	"tunescope/internal/model"
)

// The upstream payload shapes drifted across API versions: identifiers appear
// as "id" or "_id", durations as "duration_ms" or "duration", timestamps in
// snake or camel case. Each raw struct declares every key it has been observed
// under and the normalizer picks the first populated one, substituting an
// explicit zero value when all are absent. Missing optional fields never fail
// normalization; only malformed caller input does, and that is rejected long
// before a payload exists.

type rawArtist struct {
	ID     string   `json:"id"`
	AltID  string   `json:"_id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type rawAlbum struct {
	ID         string `json:"id"`
	AltID      string `json:"_id"`
	Name       string `json:"name"`
	Release    string `json:"release_date"`
	AltRelease string `json:"releaseDate"`
}

type rawTrack struct {
	ID          string      `json:"id"`
	AltID       string      `json:"_id"`
	Name        string      `json:"name"`
	DurationMS  float64     `json:"duration_ms"`
	AltDuration float64     `json:"duration"`
	Explicit    bool        `json:"explicit"`
	Artists     []rawArtist `json:"artists"`
	Album       *rawAlbum   `json:"album"`
}

type rawTopSong struct {
	Count      float64    `json:"count"`
	TotalCount float64    `json:"total_count"`
	Track      rawTrack   `json:"track"`
	Artist     *rawArtist `json:"artist"`
	Album      *rawAlbum  `json:"album"`
}

type rawTopArtist struct {
	Count  float64   `json:"count"`
	Artist rawArtist `json:"artist"`
}

type rawTopAlbum struct {
	Count  float64    `json:"count"`
	Album  rawAlbum   `json:"album"`
	Artist *rawArtist `json:"artist"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeArtist(r rawArtist) model.Artist {
	return model.Artist{
		ID:     firstNonEmpty(r.ID, r.AltID),
		Name:   r.Name,
		Genres: r.Genres,
	}
}

func normalizeAlbum(r rawAlbum) model.Album {
	return model.Album{
		ID:          firstNonEmpty(r.ID, r.AltID),
		Name:        r.Name,
		ReleaseDate: firstNonEmpty(r.Release, r.AltRelease),
	}
}

func normalizeTrack(r rawTrack) model.Track {
	id := firstNonEmpty(r.ID, r.AltID)

	artists := make([]model.Artist, 0, len(r.Artists))
	for _, a := range r.Artists {
		artists = append(artists, normalizeArtist(a))
	}

	var album model.Album
	if r.Album != nil {
		album = normalizeAlbum(*r.Album)
	}

	duration := int64(r.DurationMS)
	if duration <= 0 {
		duration = int64(r.AltDuration)
	}
	if duration < 0 {
		duration = 0
	}

	return model.Track{
		ID:       id,
		Name:     r.Name,
		Artists:  artists,
		Album:    album,
		Duration: duration,
		Explicit: r.Explicit,
		URI:      model.TrackURI(id),
	}
}

// normalizeTopSongs maps the top-songs page, keeping the grand-total field the
// upstream attaches to each row. Sorting is by play count descending with the
// upstream order preserved for ties.
func normalizeTopSongs(raw []rawTopSong) model.TopTracksResult {
	result := model.TopTracksResult{Items: make([]model.TrackPlays, 0, len(raw))}
	for _, row := range raw {
		track := normalizeTrack(row.Track)
		// Some API versions hoist the primary artist/album out of the track.
		if len(track.Artists) == 0 && row.Artist != nil {
			track.Artists = []model.Artist{normalizeArtist(*row.Artist)}
		}
		if track.Album.ID == "" && track.Album.Name == "" && row.Album != nil {
			track.Album = normalizeAlbum(*row.Album)
		}
		result.Items = append(result.Items, model.TrackPlays{Track: track, PlayCount: int64(row.Count)})
		if gt := int64(row.TotalCount); gt > result.GrandTotal {
			result.GrandTotal = gt
		}
	}
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].PlayCount > result.Items[j].PlayCount
	})
	return result
}

func normalizeTopArtists(raw []rawTopArtist) model.TopArtistsResult {
	result := model.TopArtistsResult{Items: make([]model.ArtistPlays, 0, len(raw))}
	for _, row := range raw {
		result.Items = append(result.Items, model.ArtistPlays{Artist: normalizeArtist(row.Artist), PlayCount: int64(row.Count)})
	}
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].PlayCount > result.Items[j].PlayCount
	})
	return result
}

func normalizeTopAlbums(raw []rawTopAlbum) model.TopAlbumsResult {
	result := model.TopAlbumsResult{Items: make([]model.AlbumPlays, 0, len(raw))}
	for _, row := range raw {
		item := model.AlbumPlays{Album: normalizeAlbum(row.Album), PlayCount: int64(row.Count)}
		if row.Artist != nil {
			item.Artist = normalizeArtist(*row.Artist)
		}
		result.Items = append(result.Items, item)
	}
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].PlayCount > result.Items[j].PlayCount
	})
	return result
}

// rawBucket is one slice of a time series. The _id key is either an object of
// calendar parts or a plain date string depending on the API version.
type rawBucket struct {
	ID          json.RawMessage `json:"_id"`
	Count       float64         `json:"count"`
	DurationMS  float64         `json:"duration_ms"`
	AltDuration float64         `json:"duration"`
}

type rawBucketKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Week  int `json:"week"`
}

// CountBucket is a normalized play-count time slice.
type CountBucket struct {
	Date    string
	Hour    int
	HasHour bool
	Count   int64
}

// DurationBucket is a normalized listening-duration time slice.
type DurationBucket struct {
	Date       string
	Hour       int
	HasHour    bool
	DurationMS int64
}

func parseBucketKey(raw json.RawMessage) (date string, hour int, hasHour bool) {
	if len(raw) == 0 {
		return "", 0, false
	}

	var key rawBucketKey
	if err := json.Unmarshal(raw, &key); err == nil && key.Year != 0 {
		switch {
		case key.Day != 0:
			date = fmt.Sprintf("%04d-%02d-%02d", key.Year, key.Month, key.Day)
		case key.Week != 0:
			date = fmt.Sprintf("%04d-W%02d", key.Year, key.Week)
		case key.Month != 0:
			date = fmt.Sprintf("%04d-%02d", key.Year, key.Month)
		default:
			date = fmt.Sprintf("%04d", key.Year)
		}
		// An hour key may legitimately be 0 (midnight); detect presence by
		// re-decoding into a loose map.
		var loose map[string]json.RawMessage
		if err := json.Unmarshal(raw, &loose); err == nil {
			if _, ok := loose["hour"]; ok {
				return date, key.Hour, true
			}
		}
		return date, 0, false
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, 0, false
	}
	return "", 0, false
}

func normalizeCountBuckets(raw []rawBucket) []CountBucket {
	out := make([]CountBucket, 0, len(raw))
	for _, b := range raw {
		date, hour, hasHour := parseBucketKey(b.ID)
		out = append(out, CountBucket{Date: date, Hour: hour, HasHour: hasHour, Count: int64(b.Count)})
	}
	return out
}

func normalizeDurationBuckets(raw []rawBucket) []DurationBucket {
	out := make([]DurationBucket, 0, len(raw))
	for _, b := range raw {
		date, hour, hasHour := parseBucketKey(b.ID)
		duration := int64(b.DurationMS)
		if duration <= 0 {
			duration = int64(b.AltDuration)
		}
		if duration < 0 {
			duration = 0
		}
		out = append(out, DurationBucket{Date: date, Hour: hour, HasHour: hasHour, DurationMS: duration})
	}
	return out
}

type rawPeakDay struct {
	Date    string  `json:"date"`
	AltDate string  `json:"_id"`
	Count   float64 `json:"count"`
}

type rawTrackStats struct {
	Track       rawTrack   `json:"track"`
	TotalCount  float64    `json:"total_count"`
	AltCount    float64    `json:"count"`
	FirstPlayed string     `json:"first_played"`
	AltFirst    string     `json:"firstPlayed"`
	LastPlayed  string     `json:"last_played"`
	AltLast     string     `json:"lastPlayed"`
	PeakDay     rawPeakDay `json:"peak_day"`
}

func normalizeTrackStats(raw rawTrackStats) model.TrackStats {
	track := normalizeTrack(raw.Track)
	plays := int64(raw.TotalCount)
	if plays <= 0 {
		plays = int64(raw.AltCount)
	}

	// Total duration is plays x the track's own length; the estimation
	// constant only steps in when the payload carried no duration at all.
	perPlay := track.Duration
	if perPlay <= 0 {
		perPlay = model.AverageTrackLengthMS
	}

	return model.TrackStats{
		Track:         track,
		TotalPlays:    plays,
		TotalDuration: plays * perPlay,
		FirstPlayed:   firstNonEmpty(raw.FirstPlayed, raw.AltFirst),
		LastPlayed:    firstNonEmpty(raw.LastPlayed, raw.AltLast),
		PeakDay:       firstNonEmpty(raw.PeakDay.Date, raw.PeakDay.AltDate),
		PeakDayPlays:  int64(raw.PeakDay.Count),
	}
}

type rawArtistStats struct {
	Artist      rawArtist    `json:"artist"`
	TotalCount  float64      `json:"total_count"`
	AltCount    float64      `json:"count"`
	FirstPlayed string       `json:"first_played"`
	AltFirst    string       `json:"firstPlayed"`
	LastPlayed  string       `json:"last_played"`
	AltLast     string       `json:"lastPlayed"`
	TopTracks   []rawTopSong `json:"top_tracks"`
}

const artistTopTracksLimit = 10

func normalizeArtistStats(raw rawArtistStats) model.ArtistStats {
	plays := int64(raw.TotalCount)
	if plays <= 0 {
		plays = int64(raw.AltCount)
	}

	top := normalizeTopSongs(raw.TopTracks).Items
	if len(top) > artistTopTracksLimit {
		top = top[:artistTopTracksLimit]
	}

	// The artist endpoint reports counts only, so total duration and hours are
	// estimated from the average-track-length constant.
	duration := model.EstimatedDurationFromPlays(plays)

	return model.ArtistStats{
		Artist:         normalizeArtist(raw.Artist),
		TotalPlays:     plays,
		TotalDuration:  duration,
		FirstPlayed:    firstNonEmpty(raw.FirstPlayed, raw.AltFirst),
		LastPlayed:     firstNonEmpty(raw.LastPlayed, raw.AltLast),
		TopTracks:      top,
		ListeningHours: model.ListeningHours(duration),
	}
}

type rawRank struct {
	Index   int `json:"index"`
	Results []struct {
		ID    string  `json:"id"`
		AltID string  `json:"_id"`
		Name  string  `json:"name"`
		Count float64 `json:"count"`
	} `json:"results"`
}

func normalizeRank(raw rawRank) RankWindow {
	window := RankWindow{Index: raw.Index, Results: make([]RankEntry, 0, len(raw.Results))}
	for _, r := range raw.Results {
		window.Results = append(window.Results, RankEntry{
			ID:        firstNonEmpty(r.ID, r.AltID),
			Name:      r.Name,
			PlayCount: int64(r.Count),
		})
	}
	return window
}

type rawAffinityRow struct {
	Track  rawTrack           `json:"track"`
	Score  float64            `json:"score"`
	Counts map[string]float64 `json:"counts"`
}

func normalizeAffinityRows(raw []rawAffinityRow) []AffinityRow {
	rows := make([]AffinityRow, 0, len(raw))
	for _, r := range raw {
		row := AffinityRow{Track: normalizeTrack(r.Track), Score: r.Score}
		if len(r.Counts) > 0 {
			row.PlaysByUser = make(map[string]int64, len(r.Counts))
			for user, count := range r.Counts {
				row.PlaysByUser[user] = int64(count)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

type rawProfile struct {
	ID       string `json:"id"`
	AltID    string `json:"_id"`
	Username string `json:"username"`
}
