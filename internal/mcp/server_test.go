package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"tunescope/internal/config"
	"tunescope/internal/model"
)

func newBareServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(config.Config{}, "test", logger)
}

// newStatsServer configures the analytics tier against an unreachable host;
// only argument validation paths, which never dial, should be exercised.
func newStatsServer() *Server {
	cfg := config.Config{}
	cfg.Stats.BaseURL = "http://127.0.0.1:1"
	cfg.Stats.Token = "tok"
	return New(cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newPlayerServer() *Server {
	cfg := config.Config{}
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"
	cfg.Spotify.RefreshToken = "refresh"
	return New(cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callArgs(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return text.Text
}

func decodeError(t *testing.T, res *mcp.CallToolResult) (code, message string) {
	t.Helper()
	if !res.IsError {
		t.Fatal("expected an error result")
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("error result is not structured JSON: %v", err)
	}
	return body.Code, body.Message
}

func TestUnconfiguredTierFailsFastWithGuidance(t *testing.T) {
	s := newBareServer()

	res, err := s.handleTopTracks(context.Background(), callArgs(map[string]interface{}{"start": "2024-01-01"}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	code, message := decodeError(t, res)
	if code != "CAPABILITY_UNAVAILABLE" {
		t.Errorf("code = %q", code)
	}
	if !strings.Contains(message, "TUNESCOPE_STATS_TOKEN") {
		t.Errorf("message %q does not name the missing credential", message)
	}

	res, err = s.handlePause(context.Background(), callArgs(nil))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	code, message = decodeError(t, res)
	if code != "CAPABILITY_UNAVAILABLE" {
		t.Errorf("code = %q", code)
	}
	if !strings.Contains(message, "TUNESCOPE_SPOTIFY_CLIENT_ID") {
		t.Errorf("message %q does not name the missing credentials", message)
	}
}

func TestInvalidInputIsStructuredError(t *testing.T) {
	s := newStatsServer()

	res, err := s.handleTopTracks(context.Background(), callArgs(map[string]interface{}{"start": "01/02/2024"}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	code, message := decodeError(t, res)
	if code != "INVALID_INPUT" {
		t.Errorf("code = %q", code)
	}
	if !strings.Contains(message, "YYYY-MM-DD") {
		t.Errorf("message %q lacks corrective guidance", message)
	}
}

func TestOutOfRangePagingIsRejectedLocally(t *testing.T) {
	s := newStatsServer()

	for _, args := range []map[string]interface{}{
		{"start": "2024-01-01", "limit": -1},
		{"start": "2024-01-01", "limit": 0},
		{"start": "2024-01-01", "limit": 31},
		{"start": "2024-01-01", "offset": -2},
	} {
		res, err := s.handleTopTracks(context.Background(), callArgs(args))
		if err != nil {
			t.Fatalf("handler returned protocol fault for %v: %v", args, err)
		}
		code, _ := decodeError(t, res)
		if code != "INVALID_INPUT" {
			t.Errorf("args %v: code = %q", args, code)
		}
	}

	res, err := s.handleExport(context.Background(), callArgs(map[string]interface{}{"start": "2024-01-01", "limit": -5}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	if code, _ := decodeError(t, res); code != "INVALID_INPUT" {
		t.Errorf("export limit code = %q", code)
	}

	res, err = s.handleDiscoveries(context.Background(), callArgs(map[string]interface{}{"start": "2024-01-01", "limit": 99}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	if code, _ := decodeError(t, res); code != "INVALID_INPUT" {
		t.Errorf("discoveries limit code = %q", code)
	}
}

func TestExportShapeVocabulary(t *testing.T) {
	s := newStatsServer()

	// "full" is an internal spelling, not part of the tool vocabulary.
	for _, shape := range []string{"blob", "full"} {
		res, err := s.handleExport(context.Background(), callArgs(map[string]interface{}{"start": "2024-01-01", "shape": shape}))
		if err != nil {
			t.Fatalf("handler returned protocol fault for %q: %v", shape, err)
		}
		code, message := decodeError(t, res)
		if code != "INVALID_INPUT" {
			t.Errorf("shape %q: code = %q", shape, code)
		}
		if !strings.Contains(message, "json") || strings.Contains(message, "full") {
			t.Errorf("shape %q: guidance %q must name json, not full", shape, message)
		}
	}
}

func TestStreamingPagingIsRejectedLocally(t *testing.T) {
	s := newPlayerServer()

	res, err := s.handleListPlaylists(context.Background(), callArgs(map[string]interface{}{"limit": -1}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	if code, _ := decodeError(t, res); code != "INVALID_INPUT" {
		t.Errorf("list_playlists limit code = %q", code)
	}

	res, err = s.handleListPlaylists(context.Background(), callArgs(map[string]interface{}{"offset": -3}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	if code, _ := decodeError(t, res); code != "INVALID_INPUT" {
		t.Errorf("list_playlists offset code = %q", code)
	}

	res, err = s.handleSearchCatalog(context.Background(), callArgs(map[string]interface{}{"query": "x", "limit": 99}))
	if err != nil {
		t.Fatalf("handler returned protocol fault: %v", err)
	}
	if code, _ := decodeError(t, res); code != "INVALID_INPUT" {
		t.Errorf("search_catalog limit code = %q", code)
	}
}

func TestJSONResultCarriesSummaryAndData(t *testing.T) {
	res, err := jsonResult("two items.", map[string]int{"count": 2})
	if err != nil {
		t.Fatalf("jsonResult: %v", err)
	}
	if res.IsError {
		t.Fatal("success result marked as error")
	}
	var body struct {
		Summary string         `json:"summary"`
		Data    map[string]int `json:"data"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Summary != "two items." || body.Data["count"] != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestPagingHelpers(t *testing.T) {
	items := []model.TrackPlays{
		{PlayCount: 5}, {PlayCount: 4}, {PlayCount: 3}, {PlayCount: 2},
	}
	if got := pageTracks(items, 2, 0); len(got) != 2 || got[0].PlayCount != 5 {
		t.Errorf("limit page = %+v", got)
	}
	if got := pageTracks(items, 2, 3); len(got) != 1 || got[0].PlayCount != 2 {
		t.Errorf("offset page = %+v", got)
	}
	if got := pageTracks(items, 2, 10); got != nil {
		t.Errorf("out-of-range offset = %+v", got)
	}
	if got := pageTracks(items, 2, -1); len(got) != 2 {
		t.Errorf("negative offset = %+v", got)
	}
}

func TestRankSummaryWording(t *testing.T) {
	summary := rankSummary("track", "subject", model.RankResult{
		Rank: 1, TotalPopulation: 100, PlayCount: 90, Percentile: 99,
	})
	if !strings.Contains(summary, "#1") || !strings.Contains(summary, "top 1%") {
		t.Errorf("summary = %q", summary)
	}
}
