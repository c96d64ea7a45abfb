package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/baxromumarov/pagewatch/internal/config"
	"github.com/baxromumarov/pagewatch/internal/core"
	"github.com/baxromumarov/pagewatch/internal/httpx"
	"github.com/baxromumarov/pagewatch/internal/notify"
	"github.com/baxromumarov/pagewatch/internal/observability"
	"github.com/baxromumarov/pagewatch/internal/store"
	"github.com/baxromumarov/pagewatch/internal/urlutil"
)

const (
	exitOK      = 0
	exitAborted = 1
	exitUsage   = 2
)

const usageLine = "pagewatch <url> <snapshot-id> | pagewatch <url> <selector> <snapshot-id> [sink-url...]"

type options struct {
	snapshotDir string
	stdout      io.Writer
	stderr      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], options{
		snapshotDir: config.DefaultSnapshotDir,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, opts options) int {
	logger := slog.New(slog.NewJSONHandler(opts.stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	code := exitOK
	cmd := &cobra.Command{
		Use:                usageLine,
		Short:              "Report and forward changes to a web page since the last run",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromArgs(args)
			if err != nil {
				return err
			}
			if opts.snapshotDir != "" {
				cfg.SnapshotDir = opts.snapshotDir
			}
			code = watch(cmd.Context(), cfg, logger, opts.stdout)
			return nil
		},
	}
	// cobra reads os.Args when given nil
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(opts.stdout)
	cmd.SetErr(opts.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, config.ErrUsage) {
			fmt.Fprintf(opts.stderr, "%v\nUsage: %s\n", err, usageLine)
			return exitUsage
		}
		logger.Error("command failed", "error", err)
		return exitAborted
	}
	return code
}

func watch(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) int {
	fetcher := httpx.NewCollyFetcher(cfg.UserAgent, cfg.FetchTimeout).WithMaxBodySize(cfg.MaxPageBytes)
	snapshots := store.NewFileStore(cfg.SnapshotDir)

	client := httpx.NewPoliteClient(cfg.UserAgent, cfg.NotifyTimeout)
	sinks := make([]notify.Sink, 0, len(cfg.Sinks))
	for _, u := range cfg.Sinks {
		sinks = append(sinks, notify.NewWebhookSink(u, client))
	}

	logger.Info("starting run",
		"url", cfg.Target.URL,
		"selector", cfg.Target.Selector,
		"snapshot", cfg.Target.SnapshotID,
		"snapshot_dir", cfg.SnapshotDir,
		"sinks", redacted(cfg.Sinks),
	)

	pipeline := core.NewPipeline(fetcher, snapshots, notify.New(sinks...), logger)
	report, err := pipeline.Run(ctx, cfg.Target)
	logger.Info("run summary", "outcome", report.Outcome, "stats", observability.Snapshot())

	fmt.Fprintln(stdout, report.Headline())
	if report.Changed() {
		fmt.Fprintln(stdout, report.Diff.Render())
	}
	if err != nil {
		return exitAborted
	}
	return exitOK
}

func redacted(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, urlutil.Redact(u))
	}
	return out
}
