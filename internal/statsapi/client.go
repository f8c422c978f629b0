// Package statsapi is the client for the self-hosted listening-history
// service: a token-authenticated REST API serving play counts, rankings and
// time series. Responses are normalized into canonical records before they
// leave this package.
package statsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tunescope/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	serviceName    = "analytics"

	// Fixed minimum spacing between requests; the upstream tolerates ~5/sec.
	requestInterval = 200 * time.Millisecond
)

// TimeSplit selects the bucket granularity of the time-series endpoints.
type TimeSplit string

const (
	SplitHour  TimeSplit = "hour"
	SplitDay   TimeSplit = "day"
	SplitWeek  TimeSplit = "week"
	SplitMonth TimeSplit = "month"
)

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	// All requests pass through the limiter, including concurrent sub-fetches
	// issued by a single engine operation.
	limiter *rate.Limiter
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:      strings.TrimSpace(token),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// ClampCount caps a result-count parameter to the upstream ceiling. The server
// silently caps anyway; clamping locally keeps requested and effective limits
// in agreement.
func ClampCount(nb int) int {
	if nb > model.MaxCountParam {
		return model.MaxCountParam
	}
	if nb < 1 {
		return 1
	}
	return nb
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "request canceled while waiting for rate limiter", Cause: err}
	}

	if query == nil {
		query = url.Values{}
	}
	reqURL := c.BaseURL + path
	if encoded := query.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "request failed", Retryable: true, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "failed to read response", Retryable: true, Cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return mapAPIError(resp.StatusCode)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// mapAPIError converts a non-2xx status into a normalized message. The message
// never contains the token.
func mapAPIError(statusCode int) error {
	e := &model.UpstreamError{Service: serviceName, StatusCode: statusCode}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Message = "authentication failed; check your analytics token and regenerate it if needed"
	case statusCode == http.StatusNotFound:
		e.Message = "resource not found"
	case statusCode == http.StatusTooManyRequests:
		e.Message = "rate limit exceeded"
		e.Retryable = true
	case statusCode >= http.StatusInternalServerError:
		e.Message = fmt.Sprintf("service error (status %d)", statusCode)
		e.Retryable = true
	default:
		e.Message = fmt.Sprintf("request rejected (status %d)", statusCode)
	}
	return e
}

func periodQuery(p model.Period) url.Values {
	q := url.Values{}
	q.Set("start", p.StartString())
	q.Set("end", p.EndString())
	return q
}

// TopSongs fetches the ranked tracks for a period. nb is clamped to the
// upstream ceiling.
func (c *Client) TopSongs(ctx context.Context, p model.Period, nb, offset int) (model.TopTracksResult, error) {
	q := periodQuery(p)
	q.Set("nb", strconv.Itoa(ClampCount(nb)))
	q.Set("offset", strconv.Itoa(offset))

	var raw []rawTopSong
	if err := c.get(ctx, "/spotify/top/songs", q, &raw); err != nil {
		return model.TopTracksResult{}, err
	}
	return normalizeTopSongs(raw), nil
}

func (c *Client) TopArtists(ctx context.Context, p model.Period, nb, offset int) (model.TopArtistsResult, error) {
	q := periodQuery(p)
	q.Set("nb", strconv.Itoa(ClampCount(nb)))
	q.Set("offset", strconv.Itoa(offset))

	var raw []rawTopArtist
	if err := c.get(ctx, "/spotify/top/artists", q, &raw); err != nil {
		return model.TopArtistsResult{}, err
	}
	return normalizeTopArtists(raw), nil
}

func (c *Client) TopAlbums(ctx context.Context, p model.Period, nb, offset int) (model.TopAlbumsResult, error) {
	q := periodQuery(p)
	q.Set("nb", strconv.Itoa(ClampCount(nb)))
	q.Set("offset", strconv.Itoa(offset))

	var raw []rawTopAlbum
	if err := c.get(ctx, "/spotify/top/albums", q, &raw); err != nil {
		return model.TopAlbumsResult{}, err
	}
	return normalizeTopAlbums(raw), nil
}

// SongsPer fetches play counts bucketed by the requested granularity.
func (c *Client) SongsPer(ctx context.Context, p model.Period, split TimeSplit) ([]CountBucket, error) {
	q := periodQuery(p)
	q.Set("timeSplit", string(split))

	var raw []rawBucket
	if err := c.get(ctx, "/spotify/songs_per", q, &raw); err != nil {
		return nil, err
	}
	return normalizeCountBuckets(raw), nil
}

// TimePer fetches listening duration (ms) bucketed by the requested
// granularity.
func (c *Client) TimePer(ctx context.Context, p model.Period, split TimeSplit) ([]DurationBucket, error) {
	q := periodQuery(p)
	q.Set("timeSplit", string(split))

	var raw []rawBucket
	if err := c.get(ctx, "/spotify/time_per", q, &raw); err != nil {
		return nil, err
	}
	return normalizeDurationBuckets(raw), nil
}

func (c *Client) TrackStats(ctx context.Context, id string) (model.TrackStats, error) {
	var raw rawTrackStats
	if err := c.get(ctx, "/track/"+url.PathEscape(id)+"/stats", nil, &raw); err != nil {
		return model.TrackStats{}, err
	}
	return normalizeTrackStats(raw), nil
}

func (c *Client) ArtistStats(ctx context.Context, id string) (model.ArtistStats, error) {
	var raw rawArtistStats
	if err := c.get(ctx, "/artist/"+url.PathEscape(id)+"/stats", nil, &raw); err != nil {
		return model.ArtistStats{}, err
	}
	return normalizeArtistStats(raw), nil
}

// SearchArtists looks artists up by name. The upstream requires at least 3
// characters; callers enforce that before getting here.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]model.Artist, error) {
	var raw []rawArtist
	if err := c.get(ctx, "/artist/search/"+url.PathEscape(query), nil, &raw); err != nil {
		return nil, err
	}
	artists := make([]model.Artist, 0, len(raw))
	for _, r := range raw {
		artists = append(artists, normalizeArtist(r))
	}
	return artists, nil
}

// RankWindow is the raw neighborhood response: a zero-based index of the
// subject within a small window of results, not the full ordering.
type RankWindow struct {
	Index   int
	Results []RankEntry
}

type RankEntry struct {
	ID        string
	Name      string
	PlayCount int64
}

func (c *Client) TrackRank(ctx context.Context, id string, p model.Period) (RankWindow, error) {
	var raw rawRank
	if err := c.get(ctx, "/track/"+url.PathEscape(id)+"/rank", periodQuery(p), &raw); err != nil {
		return RankWindow{}, err
	}
	return normalizeRank(raw), nil
}

func (c *Client) ArtistRank(ctx context.Context, id string, p model.Period) (RankWindow, error) {
	var raw rawRank
	if err := c.get(ctx, "/artist/"+url.PathEscape(id)+"/rank", periodQuery(p), &raw); err != nil {
		return RankWindow{}, err
	}
	return normalizeRank(raw), nil
}

// AffinityRow is one track shared by the participant set.
type AffinityRow struct {
	Track       model.Track
	Score       float64
	PlaysByUser map[string]int64
}

// CollaborativeTop fetches the cross-user affinity ranking. modeFlag is the
// upstream's numeric selector (0=average, 1=minima); the mapping is asserted
// by the upstream changelog, not its documentation, and is passed through
// without local re-derivation.
func (c *Client) CollaborativeTop(ctx context.Context, userIDs []string, modeFlag, nb int, p model.Period) ([]AffinityRow, error) {
	q := periodQuery(p)
	q.Set("otherIds", strings.Join(userIDs, ","))
	q.Set("mode", strconv.Itoa(modeFlag))
	q.Set("nb", strconv.Itoa(ClampCount(nb)))

	var raw []rawAffinityRow
	if err := c.get(ctx, "/spotify/collaborative/top", q, &raw); err != nil {
		return nil, err
	}
	return normalizeAffinityRows(raw), nil
}

func (c *Client) Me(ctx context.Context) (model.UserProfile, error) {
	var raw rawProfile
	if err := c.get(ctx, "/me", nil, &raw); err != nil {
		return model.UserProfile{}, err
	}
	return model.UserProfile{ID: firstNonEmpty(raw.ID, raw.AltID), Username: raw.Username}, nil
}
