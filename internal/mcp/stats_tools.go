package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"tunescope/internal/model"
)

func periodArgs(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithString("start", mcp.Required(), mcp.Description("Period start date, YYYY-MM-DD")),
		mcp.WithString("end", mcp.Description("Period end date, YYYY-MM-DD; defaults to today")),
	}, opts...)
}

func pagingArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(30), mcp.DefaultNumber(10), mcp.Description("Number of results, 1 to 30")),
		mcp.WithNumber("offset", mcp.Min(0), mcp.DefaultNumber(0), mcp.Description("Results to skip before the first returned")),
	}
}

func newStatsTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

// Schema min/max are advisory only; out-of-range values still arrive at the
// handler and must be rejected here, before any upstream call.
func limitParam(request mcp.CallToolRequest, def int) (int, error) {
	limit := request.GetInt("limit", def)
	if limit < 1 || limit > model.MaxCountParam {
		return 0, model.Invalid("limit", "must be between 1 and %d", model.MaxCountParam)
	}
	return limit, nil
}

func pagingParams(request mcp.CallToolRequest, defLimit int) (limit, offset int, err error) {
	limit, err = limitParam(request, defLimit)
	if err != nil {
		return 0, 0, err
	}
	offset = request.GetInt("offset", 0)
	if offset < 0 {
		return 0, 0, model.Invalid("offset", "must not be negative")
	}
	return limit, offset, nil
}

func (s *Server) registerStatsTools() {
	s.inner.AddTool(newStatsTool("get_top_tracks",
		"Most-played tracks in a date range, with play counts and the period's total plays.",
		append(periodArgs(), pagingArgs()...)...,
	), s.handleTopTracks)

	s.inner.AddTool(newStatsTool("get_top_artists",
		"Most-played artists in a date range, with play counts.",
		append(periodArgs(), pagingArgs()...)...,
	), s.handleTopArtists)

	s.inner.AddTool(newStatsTool("get_track_stats",
		"Lifetime listening detail for one track: totals, first and last played, peak day.",
		mcp.WithString("id", mcp.Required(), mcp.Description("Track id (22-char) or spotify:track:... URI")),
	), s.handleTrackStats)

	s.inner.AddTool(newStatsTool("get_artist_stats",
		"Lifetime listening detail for one artist: totals, first and last played, top tracks.",
		mcp.WithString("id", mcp.Required(), mcp.Description("Artist id (22-char) or spotify:artist:... URI")),
	), s.handleArtistStats)

	s.inner.AddTool(newStatsTool("search_history",
		"Find tracks, artists or albums in the listening history by name.",
		append(periodArgs(
			mcp.WithString("query", mcp.Required(), mcp.Description("Name or name fragment to match, case-insensitive")),
			mcp.WithString("type", mcp.Required(), mcp.Description("What to search: track, artist or album")),
		), pagingArgs()...)...,
	), s.handleSearchHistory)

	s.inner.AddTool(newStatsTool("create_custom_wrapped",
		"Year-in-review style report for any period up to 366 days: totals, top lists, hour and weekday histograms, discoveries.",
		periodArgs()...,
	), s.handleWrapped)

	s.inner.AddTool(newStatsTool("get_listening_timeline",
		"Listening time series bucketed by day, week or month, with duration and play count per bucket. Buckets missing a count carry an estimate derived from duration, flagged as such.",
		periodArgs(
			mcp.WithString("granularity", mcp.DefaultString("day"), mcp.Description("Bucket size: day, week or month")),
		)...,
	), s.handleTimeline)

	s.inner.AddTool(newStatsTool("analyze_listening_patterns",
		"When the user listens: duration bucketed by hour_of_day, day_of_week, day, week or month, with the peak bucket.",
		periodArgs(
			mcp.WithString("pattern_type", mcp.Required(), mcp.Description("hour_of_day, day_of_week, day, week or month")),
		)...,
	), s.handlePatterns)

	s.inner.AddTool(newStatsTool("get_track_rank",
		"Where a track sits in the user's play-count ordering, with an estimated percentile.",
		mcp.WithString("id", mcp.Required(), mcp.Description("Track id or URI")),
		mcp.WithString("start", mcp.Description("Period start, YYYY-MM-DD; defaults to all time")),
		mcp.WithString("end", mcp.Description("Period end, YYYY-MM-DD; defaults to today")),
	), s.handleTrackRank)

	s.inner.AddTool(newStatsTool("get_artist_rank",
		"Where an artist sits in the user's play-count ordering, with an estimated percentile.",
		mcp.WithString("id", mcp.Required(), mcp.Description("Artist id or URI")),
		mcp.WithString("start", mcp.Description("Period start, YYYY-MM-DD; defaults to all time")),
		mcp.WithString("end", mcp.Description("Period end, YYYY-MM-DD; defaults to today")),
	), s.handleArtistRank)

	s.inner.AddTool(newStatsTool("get_discovery_insights",
		"Probable new finds in a period: tracks and artists at or below the low-play-count threshold. Heuristic.",
		periodArgs(
			mcp.WithNumber("limit", mcp.Min(1), mcp.Max(30), mcp.DefaultNumber(10), mcp.Description("Max entries per list")),
		)...,
	), s.handleDiscoveries)

	s.inner.AddTool(newStatsTool("compare_listening_periods",
		"Compare two date ranges: play and duration totals, top track and artist, absolute and percent change.",
		mcp.WithString("p1_start", mcp.Required(), mcp.Description("First period start, YYYY-MM-DD")),
		mcp.WithString("p1_end", mcp.Required(), mcp.Description("First period end, YYYY-MM-DD")),
		mcp.WithString("p2_start", mcp.Required(), mcp.Description("Second period start, YYYY-MM-DD")),
		mcp.WithString("p2_end", mcp.Required(), mcp.Description("Second period end, YYYY-MM-DD")),
	), s.handleCompare)

	s.inner.AddTool(newStatsTool("analyze_affinity",
		"Shared favorite tracks across 2 to 5 users of the same analytics instance, scored by combined plays.",
		mcp.WithArray("user_ids", mcp.Required(), mcp.Description("2 to 5 distinct user ids"), mcp.Items(map[string]interface{}{"type": "string"})),
		mcp.WithString("mode", mcp.DefaultString("average"), mcp.Description("Score combination: average or minima")),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(30), mcp.DefaultNumber(10), mcp.Description("Number of shared tracks")),
		mcp.WithString("start", mcp.Description("Period start, YYYY-MM-DD; defaults to all time")),
		mcp.WithString("end", mcp.Description("Period end, YYYY-MM-DD; defaults to today")),
	), s.handleAffinity)

	s.inner.AddTool(newStatsTool("export_listening_data",
		"Export a period's listening data: summary aggregates only, full JSON lists, or an RFC 4180 CSV of the top tracks.",
		periodArgs(
			mcp.WithString("shape", mcp.DefaultString("summary"), mcp.Description("summary, json or csv")),
			mcp.WithArray("include", mcp.Description("For json shape: restrict sections to tracks and/or artists"), mcp.Items(map[string]interface{}{"type": "string"})),
			mcp.WithNumber("limit", mcp.Min(1), mcp.Max(30), mcp.DefaultNumber(30), mcp.Description("Max rows per list")),
		)...,
	), s.handleExport)

	s.inner.AddTool(newStatsTool("get_profile",
		"Current user profile on the analytics instance; its id is what analyze_affinity expects.",
	), s.handleProfile)
}

func (s *Server) handleTopTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_top_tracks", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_top_tracks", err)
	}
	limit, offset, err := pagingParams(request, 10)
	if err != nil {
		return s.errorResult("get_top_tracks", err)
	}
	result, err := engine.TopTracks(ctx, p, limit, offset)
	if err != nil {
		return s.errorResult("get_top_tracks", err)
	}
	summary := fmt.Sprintf("%d top tracks for %s; %d track plays in the period overall.", len(result.Items), p, result.GrandTotal)
	return jsonResult(summary, result)
}

func (s *Server) handleTopArtists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_top_artists", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_top_artists", err)
	}
	limit, offset, err := pagingParams(request, 10)
	if err != nil {
		return s.errorResult("get_top_artists", err)
	}
	result, err := engine.TopArtists(ctx, p, limit, offset)
	if err != nil {
		return s.errorResult("get_top_artists", err)
	}
	return jsonResult(fmt.Sprintf("%d top artists for %s.", len(result.Items), p), result)
}

func (s *Server) handleTrackStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_track_stats", err)
	}
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return s.errorResult("get_track_stats", err)
	}
	stats, err := engine.TrackStats(ctx, id)
	if err != nil {
		return s.errorResult("get_track_stats", err)
	}
	summary := fmt.Sprintf("%q: %d plays, first heard %s, last heard %s.",
		stats.Track.Name, stats.TotalPlays, orUnknown(stats.FirstPlayed), orUnknown(stats.LastPlayed))
	return jsonResult(summary, stats)
}

func (s *Server) handleArtistStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_artist_stats", err)
	}
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return s.errorResult("get_artist_stats", err)
	}
	stats, err := engine.ArtistStats(ctx, id)
	if err != nil {
		return s.errorResult("get_artist_stats", err)
	}
	summary := fmt.Sprintf("%q: %d plays, roughly %.1f hours of listening.",
		stats.Artist.Name, stats.TotalPlays, stats.ListeningHours)
	return jsonResult(summary, stats)
}

func (s *Server) handleSearchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("search_history", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("search_history", err)
	}
	limit, offset, err := pagingParams(request, 10)
	if err != nil {
		return s.errorResult("search_history", err)
	}
	result, err := engine.SearchHistory(ctx, request.GetString("query", ""), request.GetString("type", ""), p)
	if err != nil {
		return s.errorResult("search_history", err)
	}
	result.Tracks = pageTracks(result.Tracks, limit, offset)
	result.Artists = pageArtists(result.Artists, limit, offset)
	result.Albums = pageAlbums(result.Albums, limit, offset)
	summary := fmt.Sprintf("%d %s matches for %q in %s.", result.Total, result.Type, result.Query, p)
	return jsonResult(summary, result)
}

func (s *Server) handleWrapped(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("create_custom_wrapped", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("create_custom_wrapped", err)
	}
	report, err := engine.Wrapped(ctx, p)
	if err != nil {
		return s.errorResult("create_custom_wrapped", err)
	}
	summary := fmt.Sprintf("Wrapped for %s: %d track plays, about %.1f hours, peak hour %s, peak day %s.",
		p, report.TotalTrackPlays, model.ListeningHours(report.TotalDuration), report.PeakHour, report.PeakDay)
	return jsonResult(summary, report)
}

func (s *Server) handleTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_listening_timeline", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_listening_timeline", err)
	}
	timeline, err := engine.Timeline(ctx, p, request.GetString("granularity", "day"))
	if err != nil {
		return s.errorResult("get_listening_timeline", err)
	}
	estimated := 0
	for _, point := range timeline.Points {
		if point.Estimated {
			estimated++
		}
	}
	summary := fmt.Sprintf("%d %s buckets for %s (%d with estimated play counts).",
		len(timeline.Points), timeline.Granularity, p, estimated)
	return jsonResult(summary, timeline)
}

func (s *Server) handlePatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("analyze_listening_patterns", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("analyze_listening_patterns", err)
	}
	report, err := engine.Patterns(ctx, request.GetString("pattern_type", ""), p)
	if err != nil {
		return s.errorResult("analyze_listening_patterns", err)
	}
	summary := fmt.Sprintf("%s pattern for %s; peak bucket %s.", report.PatternType, p, report.PeakBucket)
	return jsonResult(summary, report)
}

func (s *Server) handleTrackRank(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_track_rank", err)
	}
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return s.errorResult("get_track_rank", err)
	}
	p, err := model.ParseOptionalPeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_track_rank", err)
	}
	rank, err := engine.TrackRank(ctx, id, p)
	if err != nil {
		return s.errorResult("get_track_rank", err)
	}
	return jsonResult(rankSummary("track", rank.TrackName, rank), rank)
}

func (s *Server) handleArtistRank(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_artist_rank", err)
	}
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return s.errorResult("get_artist_rank", err)
	}
	p, err := model.ParseOptionalPeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_artist_rank", err)
	}
	rank, err := engine.ArtistRank(ctx, id, p)
	if err != nil {
		return s.errorResult("get_artist_rank", err)
	}
	return jsonResult(rankSummary("artist", rank.ArtistName, rank), rank)
}

func (s *Server) handleDiscoveries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_discovery_insights", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("get_discovery_insights", err)
	}
	limit, err := limitParam(request, 10)
	if err != nil {
		return s.errorResult("get_discovery_insights", err)
	}
	report, err := engine.Discoveries(ctx, p)
	if err != nil {
		return s.errorResult("get_discovery_insights", err)
	}
	report.Tracks = pageTracks(report.Tracks, limit, 0)
	report.Artists = pageArtists(report.Artists, limit, 0)
	summary := fmt.Sprintf("%d probable new tracks and %d probable new artists in %s (play count at most %d).",
		len(report.Tracks), len(report.Artists), p, report.Threshold)
	return jsonResult(summary, report)
}

func (s *Server) handleCompare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("compare_listening_periods", err)
	}
	first, err := model.ParsePeriod(request.GetString("p1_start", ""), request.GetString("p1_end", ""))
	if err != nil {
		return s.errorResult("compare_listening_periods", err)
	}
	second, err := model.ParsePeriod(request.GetString("p2_start", ""), request.GetString("p2_end", ""))
	if err != nil {
		return s.errorResult("compare_listening_periods", err)
	}
	cmp, err := engine.Compare(ctx, first, second)
	if err != nil {
		return s.errorResult("compare_listening_periods", err)
	}
	summary := fmt.Sprintf("Plays went from %d to %d (%+.1f%%); listening time changed %+.1f%%.",
		cmp.First.TotalPlays, cmp.Second.TotalPlays, cmp.PlaysChangePercent, cmp.DurationChangePct)
	return jsonResult(summary, cmp)
}

func (s *Server) handleAffinity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("analyze_affinity", err)
	}
	p, err := model.ParseOptionalPeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("analyze_affinity", err)
	}
	limit, err := limitParam(request, 10)
	if err != nil {
		return s.errorResult("analyze_affinity", err)
	}
	result, err := engine.Affinity(ctx,
		request.GetStringSlice("user_ids", nil),
		request.GetString("mode", "average"),
		limit,
		p,
	)
	if err != nil {
		return s.errorResult("analyze_affinity", err)
	}
	summary := fmt.Sprintf("%d shared tracks across %d users (%s mode).", len(result.Tracks), len(result.UserIDs), result.Mode)
	return jsonResult(summary, result)
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("export_listening_data", err)
	}
	p, err := model.ParsePeriod(request.GetString("start", ""), request.GetString("end", ""))
	if err != nil {
		return s.errorResult("export_listening_data", err)
	}
	// The tool vocabulary is summary|json|csv; "json" maps to the engine's
	// full shape, and anything else is rejected here so the guidance names
	// the caller-facing words.
	shape := request.GetString("shape", "summary")
	engineShape := shape
	switch shape {
	case "summary", "csv":
	case "json":
		engineShape = "full"
	default:
		return s.errorResult("export_listening_data", model.Invalid("shape", "must be one of summary, json, csv"))
	}
	limit, err := limitParam(request, 30)
	if err != nil {
		return s.errorResult("export_listening_data", err)
	}
	bundle, err := engine.Export(ctx, p, engineShape)
	if err != nil {
		return s.errorResult("export_listening_data", err)
	}
	bundle.Shape = shape

	bundle.Tracks = pageTracks(bundle.Tracks, limit, 0)
	bundle.Artists = pageArtists(bundle.Artists, limit, 0)
	if include := request.GetStringSlice("include", nil); len(include) > 0 {
		if !containsString(include, "tracks") {
			bundle.Tracks = nil
		}
		if !containsString(include, "artists") {
			bundle.Artists = nil
		}
	}
	summary := fmt.Sprintf("Export (%s) for %s: %d plays, about %.1f hours.",
		shape, p, bundle.TotalPlays, model.ListeningHours(bundle.TotalDuration))
	return jsonResult(summary, bundle)
}

func (s *Server) handleProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return s.errorResult("get_profile", err)
	}
	profile, err := engine.Profile(ctx)
	if err != nil {
		return s.errorResult("get_profile", err)
	}
	return jsonResult(fmt.Sprintf("Signed in as %s (id %s).", profile.Username, profile.ID), profile)
}

func rankSummary(kind, name string, rank model.RankResult) string {
	subject := kind
	if name != "" {
		subject = fmt.Sprintf("%s %q", kind, name)
	}
	return fmt.Sprintf("The %s is ranked #%d of at least %d (top %d%% estimated), with %d plays.",
		subject, rank.Rank, rank.TotalPopulation, 100-rank.Percentile, rank.PlayCount)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func pageTracks(items []model.TrackPlays, limit, offset int) []model.TrackPlays {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func pageArtists(items []model.ArtistPlays, limit, offset int) []model.ArtistPlays {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func pageAlbums(items []model.AlbumPlays, limit, offset int) []model.AlbumPlays {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
