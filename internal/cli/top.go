package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tunescope/internal/analytics"
	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// top is a debug command: it talks to the analytics upstream directly so a
// deployment can be checked without attaching an MCP client.
var (
	topLimit int
	topKind  string
)

var topCmd = &cobra.Command{
	Use:   "top [start] [end (optional)]",
	Short: "Print top tracks or artists for a period",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTop,
}

func init() {
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of rows (1-30)")
	topCmd.Flags().StringVar(&topKind, "kind", "tracks", "tracks or artists")
}

func runTop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitConfigInvalid)
	}
	if !cfg.HasStats() {
		return fmt.Errorf("analytics upstream not configured; set TUNESCOPE_STATS_BASE_URL and TUNESCOPE_STATS_TOKEN")
	}

	end := ""
	if len(args) == 2 {
		end = args[1]
	}
	p, err := model.ParsePeriod(args[0], end)
	if err != nil {
		return err
	}

	engine := analytics.NewEngine(statsapi.NewClient(cfg.Stats.BaseURL, cfg.Stats.Token))
	out := cmd.OutOrStdout()
	style := newStyles(os.Stdout)

	table := tablewriter.NewWriter(out)
	switch topKind {
	case "tracks":
		result, err := engine.TopTracks(cmd.Context(), p, topLimit, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, style.header(fmt.Sprintf("Top tracks %s", p)))
		table.Header([]string{"#", "Track", "Artist", "Plays"})
		for i, item := range result.Items {
			if err := table.Append([]string{
				strconv.Itoa(i + 1),
				item.Track.Name,
				artistNames(item.Track.Artists),
				strconv.FormatInt(item.PlayCount, 10),
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintln(out, style.dim(fmt.Sprintf("%d track plays in the period overall", result.GrandTotal)))
	case "artists":
		result, err := engine.TopArtists(cmd.Context(), p, topLimit, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, style.header(fmt.Sprintf("Top artists %s", p)))
		table.Header([]string{"#", "Artist", "Plays"})
		for i, item := range result.Items {
			if err := table.Append([]string{
				strconv.Itoa(i + 1),
				item.Artist.Name,
				strconv.FormatInt(item.PlayCount, 10),
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("--kind must be tracks or artists, got %q", topKind)
	}
	return nil
}

func artistNames(artists []model.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
