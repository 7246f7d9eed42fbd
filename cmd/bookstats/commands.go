package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookstats/internal/app"
	"bookstats/internal/config"
	"bookstats/internal/dashboard"
	"bookstats/internal/models"
	"bookstats/internal/report"
)

func newService() (*dashboard.Service, func(), error) {
	db, err := app.OpenStorage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if db != nil {
			if err := db.Close(); err != nil {
				logger.Error("Error closing snapshot store", zap.Error(err))
			}
		}
	}
	return app.NewService(cfg, logger, db), closeFn, nil
}

// printViewError reports a view that cannot be shown. ErrNoData is not a failure.
func printViewError(w io.Writer, err error) error {
	var integrity *models.DataIntegrityError
	switch {
	case errors.Is(err, models.ErrNoData):
		fmt.Fprintln(w, "No data for this selection.")
		return nil
	case errors.As(err, &integrity):
		fmt.Fprintln(w, "Duplicate entries found; fix the source files and retry:")
		for _, k := range integrity.Keys {
			fmt.Fprintf(w, "  %s\n", k)
		}
		return integrity
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

func runWeeks(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	weeks, err := svc.Weeks(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	t := report.NewTable(fmt.Sprintf("%d weeks in %s", len(weeks), svc.DataDir()), "week", "label")
	for _, w := range weeks {
		t.AddRow(fmt.Sprint(w.Number), w.Label)
	}
	fmt.Fprint(out, t.Render(report.DefaultStyles()))
	for _, p := range svc.Problems() {
		fmt.Fprintf(out, "skipped: %v\n", p)
	}
	return nil
}

func runTop(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	tops, err := svc.Top(cmd.Context(), dashboardFromFlags())
	if err != nil {
		return printViewError(out, err)
	}

	styles := report.DefaultStyles()
	fmt.Fprintln(out, report.Ranking("Top titles", tops.Titles, styles))
	fmt.Fprintln(out, report.Ranking("Top authors", tops.Authors, styles))
	fmt.Fprintln(out, report.Ranking("Top publishers", tops.Publishers, styles))
	return nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	v, err := svc.View(cmd.Context(), dashboardFromFlags())
	if err != nil {
		return printViewError(out, err)
	}
	if len(v.Rows) == 0 {
		return printViewError(out, models.ErrNoData)
	}

	styles := report.DefaultStyles()
	fmt.Fprintf(out, "%s\n", styles.Title.Render(v.Dashboard.Week))
	fmt.Fprint(out, report.Records(v.Rows, v.HasCollana, styles))
	if len(v.Groups) > 0 {
		fmt.Fprint(out, report.Groups(v.Groups, v.Dashboard.Selection, styles))
	}
	return nil
}

func runTrend(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	rows, err := svc.Trend(cmd.Context(), dashboardFromFlags())
	if err != nil {
		return printViewError(out, err)
	}

	switch format {
	case "csv":
		return report.WriteTrendCSV(out, rows)
	case "table", "":
		fmt.Fprint(out, report.Trend(rows, report.DefaultStyles()))
		return nil
	}
	return fmt.Errorf("unknown format %q (want table or csv)", format)
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	h, err := svc.Heatmap(cmd.Context(), dashboardFromFlags())
	if err != nil {
		return printViewError(out, err)
	}
	fmt.Fprint(out, report.Heatmap(h, report.DefaultStyles()))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := svc.View(cmd.Context(), dashboardFromFlags())
	if err != nil {
		return printViewError(cmd.OutOrStdout(), err)
	}

	target := report.ExportFileName
	if len(args) == 1 {
		target = args[0]
	}
	if target == "-" {
		return report.WriteRecordsCSV(cmd.OutOrStdout(), v.Rows, v.HasCollana)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := report.WriteRecordsCSV(f, v.Rows, v.HasCollana); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	logger.Info("Exported rows", zap.String("file", target), zap.Int("rows", len(v.Rows)))
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	// Without a configured backend the snapshot goes to the parquet file
	if cfg.SnapshotBackend == config.BackendNone {
		cfg.SnapshotBackend = config.BackendParquet
	}

	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := svc.RebuildSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d records (%s backend)\n",
		snap.Fingerprint[:12], len(snap.Records), cfg.SnapshotBackend)
	return nil
}
