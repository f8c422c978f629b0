package analytics

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// fakeStats is an in-memory analytics upstream. It counts requests per path
// prefix so tests can prove which endpoints were (or were not) called.
type fakeStats struct {
	mu                 sync.Mutex
	hits               map[string]int
	artistSearchStatus int
}

func newFakeStats() *fakeStats {
	return &fakeStats{hits: map[string]int{}, artistSearchStatus: http.StatusOK}
}

func (f *fakeStats) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for path, n := range f.hits {
		if strings.HasPrefix(path, prefix) {
			total += n
		}
	}
	return total
}

func (f *fakeStats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case path == "/spotify/top/songs":
		_, _ = w.Write([]byte(`[
			{"count": 10, "total_count": 100, "track": {"id": "aaaaaaaaaaaaaaaaaaaaaa", "name": "Track A, \"Live\"", "duration_ms": 200000, "artists": [{"id": "1aaaaaaaaaaaaaaaaaaaaa", "name": "Artist One"}]}},
			{"count": 25, "total_count": 100, "track": {"id": "bbbbbbbbbbbbbbbbbbbbbb", "name": "Track B", "duration_ms": 180000, "artists": [{"id": "2aaaaaaaaaaaaaaaaaaaaa", "name": "Artist Two"}]}},
			{"count": 2, "total_count": 100, "track": {"id": "cccccccccccccccccccccc", "name": "Fresh Find", "artists": [{"id": "3aaaaaaaaaaaaaaaaaaaaa", "name": "Newcomer"}]}}
		]`))
	case path == "/spotify/top/artists":
		_, _ = w.Write([]byte(`[
			{"count": 40, "artist": {"id": "1aaaaaaaaaaaaaaaaaaaaa", "name": "Artist One"}},
			{"count": 3, "artist": {"id": "3aaaaaaaaaaaaaaaaaaaaa", "name": "Newcomer"}}
		]`))
	case path == "/spotify/top/albums":
		_, _ = w.Write([]byte(`[{"count": 30, "album": {"id": "4aaaaaaaaaaaaaaaaaaaaa", "name": "Album"}, "artist": {"id": "1aaaaaaaaaaaaaaaaaaaaa", "name": "Artist One"}}]`))
	case path == "/spotify/songs_per":
		_, _ = w.Write([]byte(`[{"_id": {"year": 2024, "month": 3, "day": 15}, "count": 9}]`))
	case path == "/spotify/time_per":
		if r.URL.Query().Get("timeSplit") == "hour" {
			_, _ = w.Write([]byte(`[
				{"_id": {"year": 2024, "month": 3, "day": 15, "hour": 8}, "duration_ms": 600000},
				{"_id": {"year": 2024, "month": 3, "day": 15, "hour": 22}, "duration_ms": 2400000}
			]`))
		} else {
			_, _ = w.Write([]byte(`[
				{"_id": {"year": 2024, "month": 3, "day": 15}, "duration_ms": 1800000},
				{"_id": {"year": 2024, "month": 3, "day": 16}, "duration_ms": 1200000}
			]`))
		}
	case strings.HasSuffix(path, "/rank"):
		_, _ = w.Write([]byte(`{"index": 4, "results": [
			{"id": "r1aaaaaaaaaaaaaaaaaaaa", "name": "one", "count": 90},
			{"id": "r2aaaaaaaaaaaaaaaaaaaa", "name": "two", "count": 80},
			{"id": "r3aaaaaaaaaaaaaaaaaaaa", "name": "three", "count": 70},
			{"id": "r4aaaaaaaaaaaaaaaaaaaa", "name": "four", "count": 60},
			{"id": "r5aaaaaaaaaaaaaaaaaaaa", "name": "subject", "count": 50}
		]}`))
	case strings.HasPrefix(path, "/artist/search/"):
		if f.artistSearchStatus != http.StatusOK {
			w.WriteHeader(f.artistSearchStatus)
			return
		}
		_, _ = w.Write([]byte(`[{"id": "1aaaaaaaaaaaaaaaaaaaaa", "name": "Artist One"}]`))
	case path == "/spotify/collaborative/top":
		_, _ = w.Write([]byte(`[{"track": {"id": "aaaaaaaaaaaaaaaaaaaaaa", "name": "Shared"}, "score": 20}]`))
	case path == "/me":
		_, _ = w.Write([]byte(`{"_id": "user-1", "username": "listener"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeStats, func()) {
	t.Helper()
	fake := newFakeStats()
	srv := httptest.NewServer(fake)
	return NewEngine(statsapi.NewClient(srv.URL, "tok")), fake, srv.Close
}

func mustPeriod(t *testing.T, start, end string) model.Period {
	t.Helper()
	p, err := model.ParsePeriod(start, end)
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	return p
}

func TestTopTracksSortedByPlayCount(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	result, err := engine.TopTracks(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"), 2, 0)
	if err != nil {
		t.Fatalf("TopTracks: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want limit applied", len(result.Items))
	}
	if result.Items[0].PlayCount != 25 || result.Items[1].PlayCount != 10 {
		t.Fatalf("order = %d, %d; want descending", result.Items[0].PlayCount, result.Items[1].PlayCount)
	}
	if result.GrandTotal != 100 {
		t.Fatalf("grand total = %d", result.GrandTotal)
	}
}

func TestTopListsTolerateNonPositiveLimit(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	// The upstream clamps nb itself; a non-positive limit must not truncate
	// (and must not slice out of range).
	result, err := engine.TopTracks(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"), -1, 0)
	if err != nil {
		t.Fatalf("TopTracks: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d", len(result.Items))
	}

	artists, err := engine.TopArtists(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"), 0, 0)
	if err != nil {
		t.Fatalf("TopArtists: %v", err)
	}
	if len(artists.Items) != 2 {
		t.Fatalf("artists = %d", len(artists.Items))
	}
}

func TestTrackRankMath(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	rank, err := engine.TrackRank(context.Background(), "r5aaaaaaaaaaaaaaaaaaaa", mustPeriod(t, "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("TrackRank: %v", err)
	}
	if rank.Rank != 5 {
		t.Errorf("rank = %d, want 5 (zero-based index 4)", rank.Rank)
	}
	if rank.TotalPopulation != 5 {
		t.Errorf("total = %d, want max(window, rank)", rank.TotalPopulation)
	}
	if rank.PlayCount != 50 {
		t.Errorf("play count = %d", rank.PlayCount)
	}
	if rank.Percentile != 0 {
		t.Errorf("percentile = %d, want 0 for last of 5", rank.Percentile)
	}
	if rank.TrackName != "subject" {
		t.Errorf("name = %q", rank.TrackName)
	}
}

func TestCompareZeroBaseIsZeroPercent(t *testing.T) {
	if got := percentChange(0, 500); got != 0 {
		t.Fatalf("percentChange(0, 500) = %v, want 0", got)
	}
	if got := percentChange(100, 150); got != 50 {
		t.Fatalf("percentChange(100, 150) = %v, want 50", got)
	}
	if got := percentChange(100, 75); got != -25 {
		t.Fatalf("percentChange(100, 75) = %v, want -25", got)
	}
}

func TestCompareSnapshots(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	cmp, err := engine.Compare(context.Background(),
		mustPeriod(t, "2024-01-01", "2024-01-31"),
		mustPeriod(t, "2024-02-01", "2024-02-29"))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.First.TotalPlays != 100 || cmp.Second.TotalPlays != 100 {
		t.Errorf("snapshots = %+v / %+v", cmp.First, cmp.Second)
	}
	if cmp.PlaysChange != 0 || cmp.PlaysChangePercent != 0 {
		t.Errorf("identical periods should show no change, got %+v", cmp)
	}
	if cmp.First.TopTrack == nil || cmp.First.TopTrack.Track.Name != "Track B" {
		t.Errorf("top track = %+v", cmp.First.TopTrack)
	}
}

func TestAffinityRejectsBadUserSetsWithoutFetching(t *testing.T) {
	engine, fake, done := newTestEngine(t)
	defer done()

	p := mustPeriod(t, "2024-01-01", "2024-12-31")
	cases := [][]string{
		{"only-one"},
		{"dup", "dup"},
		{"", "other"},
		{"u1", "u2", "u3", "u4", "u5", "u6"},
	}
	for _, ids := range cases {
		_, err := engine.Affinity(context.Background(), ids, "average", 10, p)
		var vErr *model.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("ids %v: want ValidationError, got %v", ids, err)
		}
	}
	if n := fake.count("/spotify/collaborative"); n != 0 {
		t.Fatalf("invalid input reached the upstream %d times", n)
	}

	result, err := engine.Affinity(context.Background(), []string{"u1", "u2"}, "", 10, p)
	if err != nil {
		t.Fatalf("Affinity: %v", err)
	}
	if result.Mode != "average" {
		t.Errorf("default mode = %q", result.Mode)
	}
	// The fake omits per-user counts, so the split is approximated.
	if len(result.Tracks) != 1 || !result.Tracks[0].Approximated {
		t.Fatalf("tracks = %+v", result.Tracks)
	}
	if result.Tracks[0].PlaysByUser["u1"] != 10 {
		t.Errorf("even split = %v", result.Tracks[0].PlaysByUser)
	}
}

func TestSearchArtistShortQuerySkipsArtistSearch(t *testing.T) {
	engine, fake, done := newTestEngine(t)
	defer done()

	result, err := engine.SearchHistory(context.Background(), "ar", "artist", mustPeriod(t, "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("SearchHistory: %v", err)
	}
	if n := fake.count("/artist/search"); n != 0 {
		t.Fatalf("2-char query hit the artist-search endpoint %d times", n)
	}
	// Substring filtering over the top window still applies.
	if result.Total != 1 || result.Artists[0].Artist.Name != "Artist One" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSearchArtistEndpointFailureDegradesSilently(t *testing.T) {
	engine, fake, done := newTestEngine(t)
	defer done()
	fake.artistSearchStatus = http.StatusInternalServerError

	result, err := engine.SearchHistory(context.Background(), "artist", "artist", mustPeriod(t, "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("artist-search failure should not fail the operation: %v", err)
	}
	if n := fake.count("/artist/search"); n != 1 {
		t.Fatalf("artist-search hits = %d, want 1", n)
	}
	if result.Total != 1 || result.Artists[0].Artist.Name != "Artist One" {
		t.Fatalf("fallback result = %+v", result)
	}
}

func TestWrappedSpanLimit(t *testing.T) {
	engine, fake, done := newTestEngine(t)
	defer done()

	// 2024-01-01 to 2024-12-31 is 366 days inclusive and must be accepted.
	report, err := engine.Wrapped(context.Background(), mustPeriod(t, "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("366-day wrapped: %v", err)
	}
	if report.TotalTrackPlays != 100 {
		t.Errorf("total plays = %d, want the grand total", report.TotalTrackPlays)
	}
	if report.PeakHour != "22:00" {
		t.Errorf("peak hour = %q", report.PeakHour)
	}
	if report.TotalDuration != 3000000 {
		t.Errorf("total duration = %d", report.TotalDuration)
	}
	if report.NewTracks != 1 {
		t.Errorf("new tracks = %d, want the low-play-count entry", report.NewTracks)
	}

	before := fake.count("/")
	_, err = engine.Wrapped(context.Background(), mustPeriod(t, "2024-01-01", "2025-01-01"))
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("367-day wrapped: want ValidationError, got %v", err)
	}
	if after := fake.count("/"); after != before {
		t.Fatalf("over-long span reached the upstream (%d -> %d requests)", before, after)
	}
}

func TestPatternsDayAndTimeUnsupported(t *testing.T) {
	engine, fake, done := newTestEngine(t)
	defer done()

	_, err := engine.Patterns(context.Background(), "day_and_time", mustPeriod(t, "2024-01-01", "2024-01-31"))
	var uErr *model.UnsupportedError
	if !errors.As(err, &uErr) {
		t.Fatalf("want UnsupportedError, got %v", err)
	}
	if n := fake.count("/"); n != 0 {
		t.Fatalf("unsupported pattern reached the upstream %d times", n)
	}
}

func TestExportShapes(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()
	p := mustPeriod(t, "2024-03-01", "2024-03-31")

	summary, err := engine.Export(context.Background(), p, "summary")
	if err != nil {
		t.Fatalf("summary export: %v", err)
	}
	if summary.Tracks != nil || summary.Artists != nil || summary.CSV != "" {
		t.Errorf("summary shape must carry aggregates only: %+v", summary)
	}
	if summary.TotalPlays != 100 || summary.TotalDuration != 3000000 {
		t.Errorf("summary totals = %d / %d", summary.TotalPlays, summary.TotalDuration)
	}

	full, err := engine.Export(context.Background(), p, "full")
	if err != nil {
		t.Fatalf("full export: %v", err)
	}
	if len(full.Tracks) == 0 || len(full.Artists) == 0 {
		t.Errorf("full shape missing lists")
	}

	csvBundle, err := engine.Export(context.Background(), p, "csv")
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(csvBundle.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("csv does not round-trip: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(rows))
	}
	// The track name with a comma and quotes must survive quoting intact.
	found := false
	for _, row := range rows[1:] {
		if row[2] == `Track A, "Live"` {
			found = true
		}
	}
	if !found {
		t.Errorf("quoted track name lost in csv: %v", rows)
	}

	if _, err := engine.Export(context.Background(), p, "yaml"); err == nil {
		t.Error("unknown shape accepted")
	}
}

func TestDiscoveriesThreshold(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	report, err := engine.Discoveries(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"))
	if err != nil {
		t.Fatalf("Discoveries: %v", err)
	}
	if len(report.Tracks) != 1 || report.Tracks[0].Track.Name != "Fresh Find" {
		t.Errorf("discovery tracks = %+v", report.Tracks)
	}
	if len(report.Artists) != 1 || report.Artists[0].Artist.Name != "Newcomer" {
		t.Errorf("discovery artists = %+v", report.Artists)
	}
}

func TestTimelineJoinsCountsAndEstimatesGaps(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	timeline, err := engine.Timeline(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"), "day")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline.Points) != 2 {
		t.Fatalf("points = %d", len(timeline.Points))
	}

	// 2024-03-15 has a real count; 2024-03-16 is missing from the count
	// series and falls back to estimation.
	measured, estimated := timeline.Points[0], timeline.Points[1]
	if measured.Label != "2024-03-15" || measured.Plays != 9 || measured.Estimated {
		t.Errorf("measured point = %+v", measured)
	}
	if !estimated.Estimated {
		t.Error("gap bucket must be flagged as estimated")
	}
	if estimated.Plays != model.EstimatedPlaysFromDuration(estimated.DurationMS) {
		t.Errorf("estimated plays = %d for %dms", estimated.Plays, estimated.DurationMS)
	}

	if _, err := engine.Timeline(context.Background(), mustPeriod(t, "2024-03-01", "2024-03-31"), "hourly"); err == nil {
		t.Error("bad granularity accepted")
	}
}
