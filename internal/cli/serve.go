package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"tunescope/internal/config"
	"tunescope/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio",
	Long: "Starts the MCP server on stdin/stdout for an AI assistant to connect to.\n" +
		"All diagnostics go to stderr; stdout carries protocol framing only.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitConfigInvalid)
	}

	logger := newLogger(cfg)
	srv := mcp.New(cfg, version, logger)
	if err := srv.Serve(); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	return nil
}

// newLogger builds the stderr slog logger. Stdout belongs to the MCP
// transport and must stay clean.
func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.Kitchen,
	}))
}
