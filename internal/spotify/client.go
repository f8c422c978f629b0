// Package spotify is the client for the OAuth-protected streaming platform:
// playback transport, queueing, playlists and catalog search.
package spotify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tunescope/internal/model"
)

const (
	defaultAPIBaseURL      = "https://api.spotify.com"
	defaultAccountsBaseURL = "https://accounts.spotify.com"
	defaultTimeout         = 30 * time.Second
	serviceName            = "spotify"

	// Refilling quota of roughly 180 requests per minute with a small burst.
	quotaInterval = time.Minute / 180
	quotaBurst    = 5
)

type Client struct {
	APIBaseURL      string
	AccountsBaseURL string
	HTTPClient      *http.Client

	clientID     string
	clientSecret string

	// Token state is the only mutable field. refreshToken rotates when the
	// accounts endpoint returns a new one; both survive for process lifetime
	// only.
	mu           sync.Mutex
	accessToken  string
	refreshToken string

	limiter *rate.Limiter
}

func NewClient(clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		APIBaseURL:      defaultAPIBaseURL,
		AccountsBaseURL: defaultAccountsBaseURL,
		HTTPClient:      &http.Client{Timeout: defaultTimeout},
		clientID:        strings.TrimSpace(clientID),
		clientSecret:    strings.TrimSpace(clientSecret),
		refreshToken:    strings.TrimSpace(refreshToken),
		limiter:         rate.NewLimiter(rate.Every(quotaInterval), quotaBurst),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshAccessToken exchanges the held refresh token for a fresh access
// token, adopting a rotated refresh token when the upstream returns one.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AccountsBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "failed to build token request", Cause: err}
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "token refresh failed", Retryable: true, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "failed to read token response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &model.UpstreamError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Message:    "token refresh rejected; check your client credentials and refresh token",
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return &model.UpstreamError{Service: serviceName, Message: "malformed token response", Cause: err}
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// do issues one API request with the held access token. On 401 it refreshes
// the token and retries exactly once; every other failure maps straight to a
// normalized error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.UpstreamError{Service: serviceName, Message: "request canceled while waiting for rate limiter", Cause: err}
	}

	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}
	}

	status, body, err := c.issue(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}
		status, body, err = c.issue(ctx, method, path, query, payload)
		if err != nil {
			return err
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return mapAPIError(status)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.UpstreamError{Service: serviceName, StatusCode: status, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func (c *Client) issue(ctx context.Context, method, path string, query url.Values, payload interface{}) (int, []byte, error) {
	reqURL := c.APIBaseURL + path
	if query != nil {
		if encoded := query.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, &model.UpstreamError{Service: serviceName, Message: "failed to encode request", Cause: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return 0, nil, &model.UpstreamError{Service: serviceName, Message: "failed to build request", Cause: err}
	}
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	c.mu.Unlock()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, &model.UpstreamError{Service: serviceName, Message: "request failed", Retryable: true, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &model.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "failed to read response", Retryable: true, Cause: err}
	}
	return resp.StatusCode, respBody, nil
}

func mapAPIError(statusCode int) error {
	e := &model.UpstreamError{Service: serviceName, StatusCode: statusCode}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Message = "authentication failed; reauthorize the app to get a new refresh token"
	case statusCode == http.StatusNotFound:
		e.Message = "no active device or resource not found"
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

// Playback is the subset of the player state the tools expose.
type Playback struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int64  `json:"progress_ms"`
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	DeviceName string `json:"device_name"`
	VolumePct  int    `json:"volume_percent"`
}

type rawPlayback struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMS int64 `json:"progress_ms"`
	Item       *struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"item"`
	Device *struct {
		Name      string `json:"name"`
		VolumePct int    `json:"volume_percent"`
	} `json:"device"`
}

func (c *Client) CurrentPlayback(ctx context.Context) (Playback, error) {
	var raw rawPlayback
	if err := c.do(ctx, http.MethodGet, "/v1/me/player", nil, nil, &raw); err != nil {
		return Playback{}, err
	}
	pb := Playback{IsPlaying: raw.IsPlaying, ProgressMS: raw.ProgressMS}
	if raw.Item != nil {
		pb.TrackID = raw.Item.ID
		pb.TrackName = raw.Item.Name
		if len(raw.Item.Artists) > 0 {
			pb.ArtistName = raw.Item.Artists[0].Name
		}
	}
	if raw.Device != nil {
		pb.DeviceName = raw.Device.Name
		pb.VolumePct = raw.Device.VolumePct
	}
	return pb, nil
}

// Play resumes playback, optionally starting the given URIs.
func (c *Client) Play(ctx context.Context, uris []string) error {
	var payload interface{}
	if len(uris) > 0 {
		payload = map[string]interface{}{"uris": uris}
	}
	return c.do(ctx, http.MethodPut, "/v1/me/player/play", nil, payload, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/v1/me/player/pause", nil, nil, nil)
}

func (c *Client) Next(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/me/player/next", nil, nil, nil)
}

func (c *Client) Previous(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/me/player/previous", nil, nil, nil)
}

func (c *Client) Seek(ctx context.Context, positionMS int64) error {
	q := url.Values{}
	q.Set("position_ms", strconv.FormatInt(positionMS, 10))
	return c.do(ctx, http.MethodPut, "/v1/me/player/seek", q, nil, nil)
}

func (c *Client) SetVolume(ctx context.Context, percent int) error {
	q := url.Values{}
	q.Set("volume_percent", strconv.Itoa(percent))
	return c.do(ctx, http.MethodPut, "/v1/me/player/volume", q, nil, nil)
}

func (c *Client) AddToQueue(ctx context.Context, uri string) error {
	q := url.Values{}
	q.Set("uri", uri)
	return c.do(ctx, http.MethodPost, "/v1/me/player/queue", q, nil, nil)
}

type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

type rawPlaylistPage struct {
	Items []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
		Tracks      struct {
			Total int `json:"total"`
		} `json:"tracks"`
	} `json:"items"`
	Total int `json:"total"`
}

func (c *Client) ListPlaylists(ctx context.Context, limit, offset int) ([]Playlist, int, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var raw rawPlaylistPage
	if err := c.do(ctx, http.MethodGet, "/v1/me/playlists", q, nil, &raw); err != nil {
		return nil, 0, err
	}
	playlists := make([]Playlist, 0, len(raw.Items))
	for _, item := range raw.Items {
		playlists = append(playlists, Playlist{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			TrackCount:  item.Tracks.Total,
			Public:      item.Public,
		})
	}
	return playlists, raw.Total, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (Playlist, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/me", nil, nil, &me); err != nil {
		return Playlist{}, err
	}

	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"public":      public,
	}
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(me.ID)+"/playlists", nil, payload, &created); err != nil {
		return Playlist{}, err
	}
	return Playlist{ID: created.ID, Name: created.Name, Description: description, Public: public}, nil
}

func (c *Client) UpdatePlaylist(ctx context.Context, id, name, description string) error {
	payload := map[string]interface{}{}
	if name != "" {
		payload["name"] = name
	}
	if description != "" {
		payload["description"] = description
	}
	return c.do(ctx, http.MethodPut, "/v1/playlists/"+url.PathEscape(id), nil, payload, nil)
}

func (c *Client) AddPlaylistTracks(ctx context.Context, id string, uris []string) error {
	payload := map[string]interface{}{"uris": uris}
	return c.do(ctx, http.MethodPost, "/v1/playlists/"+url.PathEscape(id)+"/tracks", nil, payload, nil)
}

func (c *Client) RemovePlaylistTracks(ctx context.Context, id string, uris []string) error {
	tracks := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, map[string]string{"uri": uri})
	}
	payload := map[string]interface{}{"tracks": tracks}
	return c.do(ctx, http.MethodDelete, "/v1/playlists/"+url.PathEscape(id)+"/tracks", nil, payload, nil)
}

// CatalogItem is one search hit from the streaming catalog.
type CatalogItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistName string `json:"artist_name,omitempty"`
	URI        string `json:"uri"`
	Type       string `json:"type"`
}

type rawSearchResponse struct {
	Tracks  *rawSearchPage `json:"tracks"`
	Artists *rawSearchPage `json:"artists"`
	Albums  *rawSearchPage `json:"albums"`
}

type rawSearchPage struct {
	Items []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		URI     string `json:"uri"`
		Type    string `json:"type"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"items"`
}

func (c *Client) Search(ctx context.Context, query, itemType string, limit int) ([]CatalogItem, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", itemType)
	q.Set("limit", strconv.Itoa(limit))

	var raw rawSearchResponse
	if err := c.do(ctx, http.MethodGet, "/v1/search", q, nil, &raw); err != nil {
		return nil, err
	}

	var items []CatalogItem
	for _, page := range []*rawSearchPage{raw.Tracks, raw.Artists, raw.Albums} {
		if page == nil {
			continue
		}
		for _, item := range page.Items {
			hit := CatalogItem{ID: item.ID, Name: item.Name, URI: item.URI, Type: item.Type}
			if len(item.Artists) > 0 {
				hit.ArtistName = item.Artists[0].Name
			}
			items = append(items, hit)
		}
	}
	return items, nil
}
