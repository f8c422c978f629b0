package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks what is present without requiring either upstream tier: a
// missing credential only disables its tools. At least one tier must be
// configured for the server to be useful.
func Validate(cfg *Config) error {
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}

	if cfg.Stats.BaseURL != "" {
		u, err := url.Parse(cfg.Stats.BaseURL)
		if err != nil || !strings.HasPrefix(u.Scheme, "http") || u.Host == "" {
			return fmt.Errorf("stats.base_url must be an http(s) URL, got %q", cfg.Stats.BaseURL)
		}
	}
	if cfg.Stats.BaseURL != "" && cfg.Stats.Token == "" {
		return fmt.Errorf("stats.base_url is set but stats.token is empty; set TUNESCOPE_STATS_TOKEN")
	}

	partial := cfg.Spotify.ClientID != "" || cfg.Spotify.ClientSecret != "" || cfg.Spotify.RefreshToken != ""
	if partial && !cfg.HasSpotify() {
		return fmt.Errorf("spotify credentials are incomplete; set all of TUNESCOPE_SPOTIFY_CLIENT_ID, TUNESCOPE_SPOTIFY_CLIENT_SECRET and TUNESCOPE_SPOTIFY_REFRESH_TOKEN")
	}

	if !cfg.HasStats() && !cfg.HasSpotify() {
		return fmt.Errorf("no upstream configured; set TUNESCOPE_STATS_* and/or TUNESCOPE_SPOTIFY_* credentials")
	}
	return nil
}
