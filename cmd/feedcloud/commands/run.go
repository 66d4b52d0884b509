package commands

import (
	"context"
	"errors"
	"feedcloud/internal/archive"
	"feedcloud/internal/browser"
	"feedcloud/internal/capture"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"feedcloud/internal/pipeline"
	"feedcloud/internal/reduce"
	"feedcloud/internal/tags"
	"feedcloud/lib/serviceutil"
	libtelemetry "feedcloud/lib/telemetry"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config feedcloud.json5] [--db <path/to/archive.db>]",
	Short: "Scrolls the home feed in a running browser, fetches the tags of every recommended video and writes the reduced corpus.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()

		telem, err := libtelemetry.SetupFromEnv(ctx, "feedcloud")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := telem.Shutdown(shutdownCtx)
			if err != nil {
				slog.Warn("failed to shutdown telemetry", "err", err)
			}
		}()
		libtelemetry.InstrumentPerfStats(ctx, 15*time.Second)

		page, err := browser.Connect(ctx, cfg.ControlUrl)
		if err != nil {
			serviceutil.Fatal("failed to connect to browser", err)
		}
		defer page.Close()

		err = page.Navigate(ctx, cfg.TargetUrl)
		if err != nil {
			serviceutil.Fatal("failed to open target", err)
		}
		if !capture.OnFeedSite(cfg.TargetUrl) {
			title, err := page.Title(ctx)
			if err != nil {
				serviceutil.Fatal("failed to read page title", err)
			}
			slog.Info("target is not on the feed site, nothing to capture", "url", cfg.TargetUrl, "title", title)
			return
		}

		segmenter := newSegmenter(cfg.Segmenter)
		tel := telemetry.SlogAPI{}
		clock := chrono.NewStandardImpl()

		bar := newFetchProgress()
		fetchOpts := cfg.fetchOptions()
		fetchOpts.OnProgress = bar.update
		fetcher := tags.NewFetcher(fetchOpts, tel)

		p := pipeline.New(
			cfg.pipelineOptions(),
			fetcher,
			reduce.NewReducer(segmenter, reduce.DefaultPolicy(), tel),
			pipeline.FileRenderer{
				Dir:  cfg.Output.Dir,
				Name: cfg.Output.Name,
				Ext:  cfg.Output.Ext,
				Time: clock,
			},
			clock,
			tel,
		)

		startedAt := clock.Now()
		report, err := p.Run(ctx, page)
		bar.stop()
		if errors.Is(err, context.Canceled) {
			slog.Warn("run interrupted")
			return
		}
		if err != nil {
			serviceutil.Fatal("run failed", err)
		}

		switch report.Status {
		case pipeline.StatusNoCaptures:
			slog.Warn("no feed responses were captured", "scrolls", report.Scroll.Scrolls)
		case pipeline.StatusNoText:
			slog.Warn("no tags were found for the captured items", "items", len(report.URIs))
		case pipeline.StatusNoTokens:
			slog.Warn("every token was filtered out", "tags", len(report.Tags))
		case pipeline.StatusOK:
			slog.Info("corpus written", "path", report.Output)
		}
		printReport(report)

		if cfg.Archive != "" {
			archiveReport(ctx, cfg.Archive, startedAt, report)
		}
	},
}

func newSegmenter(kind string) reduce.Segmenter {
	if kind == "fields" {
		return reduce.FieldsSegmenter{}
	}
	segmenter, err := reduce.NewDictSegmenter()
	if err != nil {
		serviceutil.Fatal("failed to load segmentation dictionary", err)
	}
	return segmenter
}

func archiveReport(ctx context.Context, path string, startedAt time.Time, report pipeline.Report) {
	a, err := archive.Open(path)
	if err != nil {
		serviceutil.Fatal("failed to open archive", err)
	}
	defer a.Close()

	id, err := a.Save(ctx, archive.Run{
		StartedAt: startedAt,
		Status:    report.Status.String(),
		Scrolls:   report.Scroll.Scrolls,
		Captures:  len(report.Captures),
		URIs:      len(report.URIs),
		Tags:      len(report.Tags),
		Corpus:    report.Reduction.Corpus,
		Output:    report.Output,
		Tokens:    report.Reduction.Top(-1),
	})
	if err != nil {
		slog.Warn("failed to archive run", "err", err)
		return
	}
	slog.Info("run archived", "id", id, "archive", path)
}
