package model

import "math"

const (
	// AverageTrackLengthMS is the fixed constant used whenever an upstream
	// payload carries only a play count and no measured duration. Totals
	// derived from it are approximations, not measurements.
	AverageTrackLengthMS = 210_000

	// MaxCountParam is the hard ceiling the analytics upstream applies to any
	// result-count parameter. Values above it are silently capped server-side,
	// so callers clamp locally to keep requested and effective limits equal.
	MaxCountParam = 30

	// DiscoveryPlayThreshold marks a track or artist as a probable discovery
	// when its play count within the period does not exceed it. Heuristic: the
	// upstream has no first-listen signal.
	DiscoveryPlayThreshold = 3
)

type Track struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Artists  []Artist `json:"artists"`
	Album    Album    `json:"album"`
	Duration int64    `json:"duration_ms"`
	Explicit bool     `json:"explicit"`
	URI      string   `json:"uri"`
}

type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// TrackPlays pairs a track with its play count for a period.
type TrackPlays struct {
	Track     Track `json:"track"`
	PlayCount int64 `json:"play_count"`
}

// ArtistPlays pairs an artist with its play count for a period.
type ArtistPlays struct {
	Artist    Artist `json:"artist"`
	PlayCount int64  `json:"play_count"`
}

// AlbumPlays pairs an album with its play count for a period.
type AlbumPlays struct {
	Album     Album  `json:"album"`
	Artist    Artist `json:"artist"`
	PlayCount int64  `json:"play_count"`
}

// TopTracksResult is a page of ranked tracks plus the grand total of plays the
// upstream attaches to the top-songs response. The grand total is the
// authoritative play count for the period; the dedicated total-plays endpoint
// is known to report incorrectly and is never consulted.
type TopTracksResult struct {
	Items      []TrackPlays `json:"items"`
	GrandTotal int64        `json:"grand_total"`
}

type TopArtistsResult struct {
	Items []ArtistPlays `json:"items"`
}

type TopAlbumsResult struct {
	Items []AlbumPlays `json:"items"`
}

type TrackStats struct {
	Track         Track  `json:"track"`
	TotalPlays    int64  `json:"total_plays"`
	TotalDuration int64  `json:"total_duration_ms"`
	FirstPlayed   string `json:"first_played"`
	LastPlayed    string `json:"last_played"`
	PeakDay       string `json:"peak_day"`
	PeakDayPlays  int64  `json:"peak_day_plays"`
}

type ArtistStats struct {
	Artist         Artist       `json:"artist"`
	TotalPlays     int64        `json:"total_plays"`
	TotalDuration  int64        `json:"total_duration_ms"`
	FirstPlayed    string       `json:"first_played"`
	LastPlayed     string       `json:"last_played"`
	TopTracks      []TrackPlays `json:"top_tracks"`
	ListeningHours float64      `json:"listening_hours"`
}

// WrappedReport is the custom-period aggregate summary. Histograms are duration
// milliseconds per bucket; discovery counts are best-effort and may be zero
// when the upstream data cannot support the heuristic.
type WrappedReport struct {
	Period          Period        `json:"period"`
	TotalDuration   int64         `json:"total_duration_ms"`
	TotalTrackPlays int64         `json:"total_track_plays"`
	UniqueTracks    int           `json:"unique_tracks"`
	UniqueArtists   int           `json:"unique_artists"`
	TopTracks       []TrackPlays  `json:"top_tracks"`
	TopArtists      []ArtistPlays `json:"top_artists"`
	TopAlbums       []AlbumPlays  `json:"top_albums"`
	HourHistogram   [24]int64     `json:"hour_histogram"`
	DayHistogram    [7]int64      `json:"day_histogram"`
	PeakHour        string        `json:"peak_hour"`
	PeakDay         string        `json:"peak_day"`
	NewTracks       int           `json:"new_tracks"`
	NewArtists      int           `json:"new_artists"`
}

// RankResult places a subject inside the upstream ordering. The upstream only
// returns a neighborhood window around the subject, so TotalPopulation is the
// estimate max(window length, rank) and always satisfies rank <= total.
type RankResult struct {
	TrackName       string `json:"track_name,omitempty"`
	ArtistName      string `json:"artist_name,omitempty"`
	Rank            int    `json:"rank"`
	TotalPopulation int    `json:"total_population"`
	PlayCount       int64  `json:"play_count"`
	Percentile      int    `json:"percentile"`
}

// AffinityTrack is one shared track with its combined score and, when upstream
// supplies them, the per-user play counts behind it.
type AffinityTrack struct {
	Track        Track            `json:"track"`
	Score        float64          `json:"score"`
	PlaysByUser  map[string]int64 `json:"plays_by_user,omitempty"`
	Approximated bool             `json:"approximated,omitempty"`
}

type AffinityResult struct {
	UserIDs        []string        `json:"user_ids"`
	Mode           string          `json:"mode"`
	Tracks         []AffinityTrack `json:"tracks"`
	OverlapPercent float64         `json:"overlap_percent,omitempty"`
}

// TimelinePoint is one bucket of the listening timeline. Plays is estimated
// from duration when the upstream series carries duration only.
type TimelinePoint struct {
	Label      string `json:"label"`
	DurationMS int64  `json:"duration_ms"`
	Plays      int64  `json:"plays"`
	Estimated  bool   `json:"estimated"`
}

type Timeline struct {
	Period      Period          `json:"period"`
	Granularity string          `json:"granularity"`
	Points      []TimelinePoint `json:"points"`
}

type PatternBucket struct {
	Label      string `json:"label"`
	DurationMS int64  `json:"duration_ms"`
}

type PatternReport struct {
	PatternType string          `json:"pattern_type"`
	Period      Period          `json:"period"`
	Buckets     []PatternBucket `json:"buckets"`
	PeakBucket  string          `json:"peak_bucket"`
}

type PeriodSnapshot struct {
	Period        Period       `json:"period"`
	TotalPlays    int64        `json:"total_plays"`
	TotalDuration int64        `json:"total_duration_ms"`
	TopTrack      *TrackPlays  `json:"top_track,omitempty"`
	TopArtist     *ArtistPlays `json:"top_artist,omitempty"`
}

// Comparison holds absolute and percentage deltas between two periods. A
// percentage change over a zero base is reported as 0, never infinity.
type Comparison struct {
	First              PeriodSnapshot `json:"first"`
	Second             PeriodSnapshot `json:"second"`
	PlaysChange        int64          `json:"plays_change"`
	PlaysChangePercent float64        `json:"plays_change_percent"`
	DurationChange     int64          `json:"duration_change_ms"`
	DurationChangePct  float64        `json:"duration_change_percent"`
}

type DiscoveryReport struct {
	Period    Period        `json:"period"`
	Threshold int64         `json:"threshold"`
	Tracks    []TrackPlays  `json:"tracks"`
	Artists   []ArtistPlays `json:"artists"`
}

type SearchHistoryResult struct {
	Query   string        `json:"query"`
	Type    string        `json:"type"`
	Total   int           `json:"total"`
	Tracks  []TrackPlays  `json:"tracks,omitempty"`
	Artists []ArtistPlays `json:"artists,omitempty"`
	Albums  []AlbumPlays  `json:"albums,omitempty"`
}

type ExportBundle struct {
	Period        Period        `json:"period"`
	Shape         string        `json:"shape"`
	TotalPlays    int64         `json:"total_plays"`
	TotalDuration int64         `json:"total_duration_ms"`
	Tracks        []TrackPlays  `json:"tracks,omitempty"`
	Artists       []ArtistPlays `json:"artists,omitempty"`
	CSV           string        `json:"csv,omitempty"`
}

type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EstimatedDurationFromPlays derives a total listening duration from a bare
// play count. Approximation rule: plays x AverageTrackLengthMS.
func EstimatedDurationFromPlays(plays int64) int64 {
	if plays <= 0 {
		return 0
	}
	return plays * AverageTrackLengthMS
}

// EstimatedPlaysFromDuration derives a play count from a duration sum.
// Approximation rule: duration / AverageTrackLengthMS, rounded to nearest.
func EstimatedPlaysFromDuration(durationMS int64) int64 {
	if durationMS <= 0 {
		return 0
	}
	return int64(math.Round(float64(durationMS) / float64(AverageTrackLengthMS)))
}

// ListeningHours converts a millisecond total to hours rounded to 1 decimal.
func ListeningHours(durationMS int64) float64 {
	if durationMS <= 0 {
		return 0
	}
	return math.Round(float64(durationMS)/3_600_000*10) / 10
}
