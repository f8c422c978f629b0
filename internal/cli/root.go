package cli

import (
	"github.com/spf13/cobra"

	"tunescope/internal/config"
)

const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath   string
	LogLevel     string
	StatsBaseURL string
	StatsToken   string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "tunescope",
	Short: "MCP server for personal music analytics and playback control",
	Long: "tunescope exposes a self-hosted listening-history service and a streaming\n" +
		"platform as MCP tools, so an AI assistant can answer questions about what\n" +
		"you listen to and control playback.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StatsBaseURL, "stats-url", "", "analytics service base URL")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StatsToken, "stats-token", "", "analytics service API token")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command; exit code is set by RunE.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig applies CLI flags on top of env/file/defaults.
func loadConfig() (config.Config, error) {
	overrides := &config.Overrides{}
	if globalFlags.StatsBaseURL != "" {
		overrides.StatsBaseURL = &globalFlags.StatsBaseURL
	}
	if globalFlags.StatsToken != "" {
		overrides.StatsToken = &globalFlags.StatsToken
	}
	if globalFlags.LogLevel != "" {
		overrides.LogLevel = &globalFlags.LogLevel
	}
	return config.Load(config.Options{
		ConfigPath: globalFlags.ConfigPath,
		Overrides:  overrides,
	})
}
