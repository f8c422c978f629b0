package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tunescope/internal/model"
)

func (s *Server) registerPlayerTools() {
	s.inner.AddTool(mcp.NewTool("get_current_playback",
		mcp.WithDescription("What is playing right now: track, artist, progress, device and volume."),
	), s.handleCurrentPlayback)

	s.inner.AddTool(mcp.NewTool("resume_playback",
		mcp.WithDescription("Resume playback on the active device, or start a specific track."),
		mcp.WithString("uri", mcp.Description("Optional track id or spotify:track:... URI to start instead of resuming")),
	), s.handleResume)

	s.inner.AddTool(mcp.NewTool("pause_playback",
		mcp.WithDescription("Pause playback on the active device."),
	), s.handlePause)

	s.inner.AddTool(mcp.NewTool("next_track",
		mcp.WithDescription("Skip to the next track."),
	), s.handleNext)

	s.inner.AddTool(mcp.NewTool("previous_track",
		mcp.WithDescription("Go back to the previous track."),
	), s.handlePrevious)

	s.inner.AddTool(mcp.NewTool("seek_position",
		mcp.WithDescription("Seek within the current track."),
		mcp.WithNumber("position_ms", mcp.Required(), mcp.Min(0), mcp.Description("Position in milliseconds from the start")),
	), s.handleSeek)

	s.inner.AddTool(mcp.NewTool("set_volume",
		mcp.WithDescription("Set the active device volume."),
		mcp.WithNumber("percent", mcp.Required(), mcp.Min(0), mcp.Max(100), mcp.Description("Volume percent, 0 to 100")),
	), s.handleVolume)

	s.inner.AddTool(mcp.NewTool("add_to_queue",
		mcp.WithDescription("Append a track to the playback queue."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Track id or spotify:track:... URI")),
	), s.handleQueue)
}

func (s *Server) handleCurrentPlayback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("get_current_playback", err)
	}
	pb, err := player.CurrentPlayback(ctx)
	if err != nil {
		return s.errorResult("get_current_playback", err)
	}
	summary := "Nothing is playing."
	if pb.TrackName != "" {
		state := "Paused on"
		if pb.IsPlaying {
			state = "Playing"
		}
		summary = fmt.Sprintf("%s %q by %s on %s.", state, pb.TrackName, pb.ArtistName, orUnknown(pb.DeviceName))
	}
	return jsonResult(summary, pb)
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("resume_playback", err)
	}
	var uris []string
	if raw := request.GetString("uri", ""); raw != "" {
		id, err := model.NormalizeID("uri", raw)
		if err != nil {
			return s.errorResult("resume_playback", err)
		}
		uris = []string{model.TrackURI(id)}
	}
	if err := player.Play(ctx, uris); err != nil {
		return s.errorResult("resume_playback", err)
	}
	if len(uris) > 0 {
		return jsonResult(fmt.Sprintf("Started %s.", uris[0]), nil)
	}
	return jsonResult("Playback resumed.", nil)
}

func (s *Server) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("pause_playback", err)
	}
	if err := player.Pause(ctx); err != nil {
		return s.errorResult("pause_playback", err)
	}
	return jsonResult("Playback paused.", nil)
}

func (s *Server) handleNext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("next_track", err)
	}
	if err := player.Next(ctx); err != nil {
		return s.errorResult("next_track", err)
	}
	return jsonResult("Skipped to the next track.", nil)
}

func (s *Server) handlePrevious(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("previous_track", err)
	}
	if err := player.Previous(ctx); err != nil {
		return s.errorResult("previous_track", err)
	}
	return jsonResult("Went back to the previous track.", nil)
}

func (s *Server) handleSeek(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("seek_position", err)
	}
	position := int64(request.GetInt("position_ms", -1))
	if position < 0 {
		return s.errorResult("seek_position", model.Invalid("position_ms", "must be a non-negative millisecond offset"))
	}
	if err := player.Seek(ctx, position); err != nil {
		return s.errorResult("seek_position", err)
	}
	return jsonResult(fmt.Sprintf("Seeked to %dms.", position), nil)
}

func (s *Server) handleVolume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("set_volume", err)
	}
	percent := request.GetInt("percent", -1)
	if percent < 0 || percent > 100 {
		return s.errorResult("set_volume", model.Invalid("percent", "must be between 0 and 100"))
	}
	if err := player.SetVolume(ctx, percent); err != nil {
		return s.errorResult("set_volume", err)
	}
	return jsonResult(fmt.Sprintf("Volume set to %d%%.", percent), nil)
}

func (s *Server) handleQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := s.requirePlayer()
	if err != nil {
		return s.errorResult("add_to_queue", err)
	}
	id, err := model.NormalizeID("uri", request.GetString("uri", ""))
	if err != nil {
		return s.errorResult("add_to_queue", err)
	}
	uri := model.TrackURI(id)
	if err := player.AddToQueue(ctx, uri); err != nil {
		return s.errorResult("add_to_queue", err)
	}
	return jsonResult(fmt.Sprintf("Queued %s.", uri), nil)
}
