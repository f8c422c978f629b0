package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tunescope/internal/model"
)

// maxStreamingPage mirrors the streaming API's page-size ceiling. Schema
// min/max are advisory, so handlers re-check before calling upstream.
const maxStreamingPage = 50

func (s *Server) registerPlaylistTools() {
	s.inner.AddTool(mcp.NewTool("list_playlists",
		mcp.WithDescription("The user's playlists with track counts."),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(50), mcp.DefaultNumber(20), mcp.Description("Playlists per page")),
		mcp.WithNumber("offset", mcp.Min(0), mcp.DefaultNumber(0), mcp.Description("Playlists to skip")),
	), s.handleListPlaylists)

	s.inner.AddTool(mcp.NewTool("create_playlist",
		mcp.WithDescription("Create a new playlist for the current user."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Playlist name")),
		mcp.WithString("description", mcp.Description("Playlist description")),
		mcp.WithBoolean("public", mcp.Description("Whether the playlist is public; private by default")),
	), s.handleCreatePlaylist)

	s.inner.AddTool(mcp.NewTool("update_playlist",
		mcp.WithDescription("Rename a playlist or change its description."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Playlist id or URI")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("description", mcp.Description("New description")),
	), s.handleUpdatePlaylist)

	s.inner.AddTool(mcp.NewTool("add_playlist_tracks",
		mcp.WithDescription("Add tracks to a playlist."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Playlist id or URI")),
		mcp.WithArray("uris", mcp.Required(), mcp.Description("Track ids or spotify:track:... URIs"), mcp.Items(map[string]interface{}{"type": "string"})),
	), s.handleAddPlaylistTracks)

	s.inner.AddTool(mcp.NewTool("remove_playlist_tracks",
		mcp.WithDescription("Remove tracks from a playlist."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Playlist id or URI")),
		mcp.WithArray("uris", mcp.Required(), mcp.Description("Track ids or spotify:track:... URIs"), mcp.Items(map[string]interface{}{"type": "string"})),
	), s.handleRemovePlaylistTracks)

	s.inner.AddTool(mcp.NewTool("search_catalog",
		mcp.WithDescription("Search the streaming catalog for tracks, artists or albums. Returns URIs usable with playback and playlist tools."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query")),
		mcp.WithString("type", mcp.DefaultString("track"), mcp.Description("track, artist or album")),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(50), mcp.DefaultNumber(10), mcp.Description("Max hits")),
	), s.handleSearchCatalog)
}

func (s *Server) handleListPlaylists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("list_playlists", err)
	}
	limit, offset := request.GetInt("limit", 20), request.GetInt("offset", 0)
	if limit < 1 || limit > maxStreamingPage {
		return s.errorResult("list_playlists", model.Invalid("limit", "must be between 1 and %d", maxStreamingPage))
	}
	if offset < 0 {
		return s.errorResult("list_playlists", model.Invalid("offset", "must not be negative"))
	}
	playlists, total, err := player.ListPlaylists(ctx, limit, offset)
	if err != nil {
		return s.errorResult("list_playlists", err)
	}
	payload := map[string]interface{}{"playlists": playlists, "total": total}
	return jsonResult(fmt.Sprintf("%d of %d playlists.", len(playlists), total), payload)
}

func (s *Server) handleCreatePlaylist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("create_playlist", err)
	}
	name := request.GetString("name", "")
	if name == "" {
		return s.errorResult("create_playlist", model.Invalid("name", "must not be empty"))
	}
	playlist, err := player.CreatePlaylist(ctx, name, request.GetString("description", ""), request.GetBool("public", false))
	if err != nil {
		return s.errorResult("create_playlist", err)
	}
	return jsonResult(fmt.Sprintf("Created playlist %q (id %s).", playlist.Name, playlist.ID), playlist)
}

func (s *Server) handleUpdatePlaylist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("update_playlist", err)
	}
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return s.errorResult("update_playlist", err)
	}
	name, description := request.GetString("name", ""), request.GetString("description", "")
	if name == "" && description == "" {
		return s.errorResult("update_playlist", model.Invalid("name", "provide a new name and/or description"))
	}
	if err := player.UpdatePlaylist(ctx, id, name, description); err != nil {
		return s.errorResult("update_playlist", err)
	}
	return jsonResult(fmt.Sprintf("Playlist %s updated.", id), nil)
}

func (s *Server) handleAddPlaylistTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("add_playlist_tracks", err)
	}
	id, uris, err := playlistTrackArgs(request)
	if err != nil {
		return s.errorResult("add_playlist_tracks", err)
	}
	if err := player.AddPlaylistTracks(ctx, id, uris); err != nil {
		return s.errorResult("add_playlist_tracks", err)
	}
	return jsonResult(fmt.Sprintf("Added %d tracks to playlist %s.", len(uris), id), nil)
}

func (s *Server) handleRemovePlaylistTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("remove_playlist_tracks", err)
	}
	id, uris, err := playlistTrackArgs(request)
	if err != nil {
		return s.errorResult("remove_playlist_tracks", err)
	}
	if err := player.RemovePlaylistTracks(ctx, id, uris); err != nil {
		return s.errorResult("remove_playlist_tracks", err)
	}
	return jsonResult(fmt.Sprintf("Removed %d tracks from playlist %s.", len(uris), id), nil)
}

// playlistTrackArgs validates the shared id + uris argument pair, normalizing
// every entry to a canonical track URI before any upstream call.
func playlistTrackArgs(request mcp.CallToolRequest) (string, []string, error) {
	id, err := model.NormalizeID("id", request.GetString("id", ""))
	if err != nil {
		return "", nil, err
	}
	raw := request.GetStringSlice("uris", nil)
	if len(raw) == 0 {
		return "", nil, model.Invalid("uris", "must contain at least one track")
	}
	uris := make([]string, 0, len(raw))
	for _, entry := range raw {
		trackID, err := model.NormalizeID("uris", entry)
		if err != nil {
			return "", nil, err
		}
		uris = append(uris, model.TrackURI(trackID))
	}
	return id, uris, nil
}

func (s *Server) handleSearchCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("search_catalog", err)
	}
	query := request.GetString("query", "")
	if query == "" {
		return s.errorResult("search_catalog", model.Invalid("query", "must not be empty"))
	}
	itemType := request.GetString("type", "track")
	switch itemType {
	case "track", "artist", "album":
	default:
		return s.errorResult("search_catalog", model.Invalid("type", "must be one of track, artist, album"))
	}
	limit := request.GetInt("limit", 10)
	if limit < 1 || limit > maxStreamingPage {
		return s.errorResult("search_catalog", model.Invalid("limit", "must be between 1 and %d", maxStreamingPage))
	}
	items, err := player.Search(ctx, query, itemType, limit)
	if err != nil {
		return s.errorResult("search_catalog", err)
	}
	payload := map[string]interface{}{"items": items}
	return jsonResult(fmt.Sprintf("%d %s hits for %q.", len(items), itemType, query), payload)
}
