package statsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tunescope/internal/model"
)

func testPeriod(t *testing.T) model.Period {
	t.Helper()
	p, err := model.ParsePeriod("2024-01-01", "2024-12-31")
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	return p
}

func TestTopSongsRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"count": 3, "total_count": 42, "track": {"id": "aaaaaaaaaaaaaaaaaaaaaa", "name": "A"}}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret-token")
	result, err := client.TopSongs(context.Background(), testPeriod(t), 500, 10)
	if err != nil {
		t.Fatalf("TopSongs: %v", err)
	}

	if gotPath != "/spotify/top/songs" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if got := gotQuery["nb"]; len(got) != 1 || got[0] != "30" {
		t.Errorf("nb should be clamped to 30, got %v", got)
	}
	if got := gotQuery["offset"]; len(got) != 1 || got[0] != "10" {
		t.Errorf("offset = %v", got)
	}
	if got := gotQuery["start"]; len(got) != 1 || got[0] != "2024-01-01" {
		t.Errorf("start = %v", got)
	}
	if result.GrandTotal != 42 || len(result.Items) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status        int
		wantRetryable bool
		wantHint      string
	}{
		{http.StatusUnauthorized, false, "token"},
		{http.StatusForbidden, false, "token"},
		{http.StatusNotFound, false, "not found"},
		{http.StatusTooManyRequests, true, "rate limit"},
		{http.StatusInternalServerError, true, "status 500"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(srv.URL, "secret-token")
		_, err := client.Me(context.Background())
		srv.Close()

		var uErr *model.UpstreamError
		if !errors.As(err, &uErr) {
			t.Fatalf("status %d: want UpstreamError, got %v", tc.status, err)
		}
		if uErr.StatusCode != tc.status {
			t.Errorf("status %d: recorded %d", tc.status, uErr.StatusCode)
		}
		if uErr.Retryable != tc.wantRetryable {
			t.Errorf("status %d: retryable = %v", tc.status, uErr.Retryable)
		}
		if !strings.Contains(uErr.Message, tc.wantHint) {
			t.Errorf("status %d: message %q missing %q", tc.status, uErr.Message, tc.wantHint)
		}
		if strings.Contains(uErr.Error(), "secret-token") {
			t.Errorf("status %d: error message leaks the token", tc.status)
		}
	}
}

func TestRankWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rank") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"index": 2, "results": [
			{"id": "aaaaaaaaaaaaaaaaaaaaaa", "name": "first", "count": 90},
			{"_id": "bbbbbbbbbbbbbbbbbbbbbb", "name": "second", "count": 80},
			{"id": "cccccccccccccccccccccc", "name": "subject", "count": 70}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	window, err := client.TrackRank(context.Background(), "cccccccccccccccccccccc", testPeriod(t))
	if err != nil {
		t.Fatalf("TrackRank: %v", err)
	}
	if window.Index != 2 || len(window.Results) != 3 {
		t.Fatalf("window = %+v", window)
	}
	if window.Results[1].ID != "bbbbbbbbbbbbbbbbbbbbbb" {
		t.Errorf("_id fallback failed in rank entries")
	}
	if window.Results[2].PlayCount != 70 {
		t.Errorf("play count = %d", window.Results[2].PlayCount)
	}
}

func TestCollaborativeTopQuery(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[{"track": {"id": "aaaaaaaaaaaaaaaaaaaaaa", "name": "Shared"}, "score": 12.5, "counts": {"u1": 10, "u2": 15}}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	rows, err := client.CollaborativeTop(context.Background(), []string{"u1", "u2"}, 1, 10, testPeriod(t))
	if err != nil {
		t.Fatalf("CollaborativeTop: %v", err)
	}
	if got := gotQuery["otherIds"]; len(got) != 1 || got[0] != "u1,u2" {
		t.Errorf("otherIds = %v", got)
	}
	if got := gotQuery["mode"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("mode = %v", got)
	}
	if len(rows) != 1 || rows[0].Score != 12.5 || rows[0].PlaysByUser["u2"] != 15 {
		t.Errorf("rows = %+v", rows)
	}
}
