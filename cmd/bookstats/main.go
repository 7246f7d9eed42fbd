package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookstats/internal/app"
	"bookstats/internal/config"
	"bookstats/internal/models"
	"bookstats/internal/state"
)

var (
	// Global flags
	verbose bool
	dataDir string
	focus   string

	// View flags
	week       string
	publishers []string
	authors    []string
	titles     []string
	collane    []string
	format     string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bookstats",
	Short: "Weekly book-sales charts: rankings, trends and week-over-week heatmaps",
	Long: `bookstats reads one chart file per week (xlsx or csv, week number in the
file name) from a data directory and reports on them.

Configuration comes from the environment (and .env), optionally layered over
the YAML file named by BOOKSTATS_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		boot, err := app.NewLogger("info", verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		cfg, err = app.LoadConfig(boot)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if focus != "" {
			cfg.FocusPublisher = focus
		}

		logger, err = app.NewLogger(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",
	RunE:  runServe,
}

var weeksCmd = &cobra.Command{
	Use:   "weeks",
	Short: "List the loaded weeks and the files that were skipped",
	RunE:  runWeeks,
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Show the filtered rows of a week with the totals of each filter",
	RunE:  runRecords,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the top titles, authors and publishers",
	RunE:  runTop,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the week-over-week change of the focus publisher's titles",
	RunE:  runTrend,
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show the title × week percent-change heatmap",
	RunE:  runHeatmap,
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the filtered rows as CSV (default dati_filtrati.csv, - for stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Rebuild the consolidated snapshot of every week",
	RunE:  runSnapshot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Directory of weekly files (default: DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&focus, "focus", "", "Publisher followed by trend and heatmap (default: FOCUS_PUBLISHER)")

	for _, c := range []*cobra.Command{recordsCmd, topCmd, trendCmd, heatmapCmd, exportCmd} {
		c.Flags().StringVar(&week, "week", models.AllWeeks, "Week label, e.g. \"Settimana 3\"")
		c.Flags().StringSliceVar(&publishers, "publisher", nil, "Filter by publisher (repeatable)")
		c.Flags().StringSliceVar(&authors, "author", nil, "Filter by author (repeatable)")
		c.Flags().StringSliceVar(&titles, "title", nil, "Filter by title (repeatable)")
		c.Flags().StringSliceVar(&collane, "collana", nil, "Filter by series (repeatable)")
	}
	trendCmd.Flags().StringVar(&format, "format", "table", "Output format: table or csv")

	rootCmd.AddCommand(serveCmd, weeksCmd, recordsCmd, topCmd, trendCmd, heatmapCmd, exportCmd, snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dashboardFromFlags builds the view state from the command line
func dashboardFromFlags() state.Dashboard {
	d := state.Default()
	d.Week = week
	for dim, vals := range map[models.Dimension][]string{
		models.DimPublisher: publishers,
		models.DimAuthor:    authors,
		models.DimTitle:     titles,
		models.DimCollana:   collane,
	} {
		if len(vals) > 0 {
			d.Selection[dim] = vals
		}
	}
	return d
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
