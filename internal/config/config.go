// Package config assembles runtime settings from defaults, an optional YAML
// file, dotenv files, environment variables and CLI overrides, in that
// precedence order.
package config

import "log/slog"

const DefaultConfigPath = "tunescope.yaml"

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Stats   StatsConfig   `yaml:"stats"`
	Spotify SpotifyConfig `yaml:"spotify"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StatsConfig points at the self-hosted listening-history service. Token
// gates the whole analytics tool tier.
type StatsConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// SpotifyConfig holds the streaming platform OAuth credentials. All three
// fields gate the streaming tool tier together.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
	}
}

// HasStats reports whether the analytics tier is configured.
func (c *Config) HasStats() bool {
	return c.Stats.BaseURL != "" && c.Stats.Token != ""
}

// HasSpotify reports whether the streaming tier is configured.
func (c *Config) HasSpotify() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" && c.Spotify.RefreshToken != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
