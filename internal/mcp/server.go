// Package mcp exposes the analytics engine and the streaming client as MCP
// tools over stdio. Tools register unconditionally; a tier whose credentials
// are missing answers every call with a capability error naming the fix.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"tunescope/internal/analytics"
	"tunescope/internal/config"
	"tunescope/internal/model"
	"tunescope/internal/spotify"
	"tunescope/internal/statsapi"
)

const serverName = "tunescope"

const instructions = `tunescope bridges a personal listening-history service and a streaming platform.
Analytics tools (get_top_tracks, create_custom_wrapped, get_track_rank, ...) answer questions
about what the user listened to; streaming tools control playback and playlists.
Dates are ISO (YYYY-MM-DD); periods are inclusive and end defaults to today.
Play counts derived from durations are estimates based on an average track length.`

type Server struct {
	logger *slog.Logger
	inner  *server.MCPServer

	// Either field is nil when its tier's credentials were not supplied.
	engine *analytics.Engine
	player *spotify.Client
}

func New(cfg config.Config, version string, logger *slog.Logger) *Server {
	s := &Server{
		logger: logger,
		inner: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(true),
			server.WithInstructions(instructions),
			server.WithRecovery(),
		),
	}
	if cfg.HasStats() {
		s.engine = analytics.NewEngine(statsapi.NewClient(cfg.Stats.BaseURL, cfg.Stats.Token))
	}
	if cfg.HasSpotify() {
		s.player = spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RefreshToken)
	}

	s.registerStatsTools()
	s.registerPlayerTools()
	s.registerPlaylistTools()
	return s
}

// Serve runs the stdio transport until the client disconnects. Stdout carries
// protocol framing only; all logging goes to stderr.
func (s *Server) Serve() error {
	s.logger.Info("serving MCP over stdio",
		"analytics", s.engine != nil,
		"streaming", s.player != nil,
	)
	return server.ServeStdio(s.inner)
}

func (s *Server) requireEngine() (*analytics.Engine, error) {
	if s.engine == nil {
		return nil, &model.CapabilityError{
			Capability: "analytics",
			Message:    "listening-history tools are disabled; set TUNESCOPE_STATS_BASE_URL and TUNESCOPE_STATS_TOKEN",
		}
	}
	return s.engine, nil
}

func (s *Server) requirePlayer() (*spotify.Client, error) {
	if s.player == nil {
		return nil, &model.CapabilityError{
			Capability: "streaming",
			Message:    "streaming tools are disabled; set TUNESCOPE_SPOTIFY_CLIENT_ID, TUNESCOPE_SPOTIFY_CLIENT_SECRET and TUNESCOPE_SPOTIFY_REFRESH_TOKEN",
		}
	}
	return s.player, nil
}
