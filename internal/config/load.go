package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options controls loading. Overrides apply last (flags > env > dotenv >
// file > defaults); nil means no CLI overrides.
type Options struct {
	ConfigPath   string
	SkipValidate bool
	Overrides    *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	StatsBaseURL *string
	StatsToken   *string
	LogLevel     *string
}

// Load builds the config. Dotenv files never override variables already set
// in the environment, so explicit env wins over .env.local wins over .env.
func Load(opts Options) (Config, error) {
	cfg := Default()

	for _, path := range []string{".env.local", ".env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return Config{}, fmt.Errorf("failed loading %s: %w", path, err)
			}
		}
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("cannot read config file %s: %w", configPath, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("malformed YAML in %s: %w", configPath, err)
	}

	applyEnv(&cfg)

	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TUNESCOPE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TUNESCOPE_STATS_BASE_URL"); v != "" {
		cfg.Stats.BaseURL = v
	}
	if v := os.Getenv("TUNESCOPE_STATS_TOKEN"); v != "" {
		cfg.Stats.Token = v
	}
	if v := os.Getenv("TUNESCOPE_SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("TUNESCOPE_SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := os.Getenv("TUNESCOPE_SPOTIFY_REFRESH_TOKEN"); v != "" {
		cfg.Spotify.RefreshToken = v
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.StatsBaseURL != nil {
		cfg.Stats.BaseURL = *o.StatsBaseURL
	}
	if o.StatsToken != nil {
		cfg.Stats.Token = *o.StatsToken
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
}
