package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baxromumarov/pagewatch/internal/config"
	"github.com/baxromumarov/pagewatch/internal/content"
	"github.com/baxromumarov/pagewatch/internal/diff"
	"github.com/baxromumarov/pagewatch/internal/notify"
	"github.com/baxromumarov/pagewatch/internal/observability"
)

// Fetcher retrieves the page body for a URL as text.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// SnapshotStore persists the comparable content between runs. Load reports
// a snapshot that was never saved as found == false with a nil error.
type SnapshotStore interface {
	Load(ctx context.Context, id string) (content string, found bool, err error)
	Save(ctx context.Context, id, content string) error
}

// Pipeline runs fetch, extract, load, compare, notify and persist for one
// target. Only the pipeline decides whether a failure aborts the run.
type Pipeline struct {
	fetcher  Fetcher
	store    SnapshotStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewPipeline(fetcher Fetcher, store SnapshotStore, notifier *notify.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one watch cycle. The returned error is a *RunError when the
// run aborted; notification failures never abort.
func (p *Pipeline) Run(ctx context.Context, target config.Target) (Report, error) {
	log := p.logger.With("url", target.URL, "snapshot", target.SnapshotID)
	report := Report{Target: target}

	log.Debug("pipeline: stage", "stage", StageFetching)
	start := time.Now()
	raw, err := p.fetcher.FetchText(ctx, target.URL)
	if err != nil {
		return p.abort(log, report, StageFetching, err)
	}
	observability.IncPagesFetched()
	observability.ObserveFetchDuration(time.Since(start).Seconds())
	log.Debug("pipeline: fetched", "bytes", len(raw), "duration", time.Since(start))

	log.Debug("pipeline: stage", "stage", StageExtracting)
	extracted, err := content.Extract(raw, target.Selector)
	if err != nil {
		return p.abort(log, report, StageExtracting, err)
	}
	report.Matched = extracted.Matched
	if !extracted.Matched {
		log.Warn("pipeline: selector matched nothing, comparing empty content", "selector", target.Selector)
	}
	current := extracted.Text

	log.Debug("pipeline: stage", "stage", StageLoading)
	previous, found, err := p.store.Load(ctx, target.SnapshotID)
	if err != nil {
		return p.abort(log, report, StageLoading, err)
	}

	log.Debug("pipeline: stage", "stage", StageComparing)
	switch {
	case !found:
		report.FirstRun = true
		report.Outcome = OutcomeUnchanged
		log.Info("pipeline: no previous snapshot, recording baseline", "bytes", len(current))
	case previous == current:
		report.Outcome = OutcomeUnchanged
	default:
		report.Diff = diff.Lines(previous, current)
		report.Message = changeMessage(target, report.Diff)
		report.Outcome = p.notify(ctx, log, &report)
	}

	log.Debug("pipeline: stage", "stage", StagePersisting)
	if err := p.store.Save(ctx, target.SnapshotID, current); err != nil {
		return p.abort(log, report, StagePersisting, err)
	}

	report.Stage = StageDone
	observability.IncRun(string(report.Outcome))
	log.Info("pipeline: run complete",
		"outcome", report.Outcome,
		"first_run", report.FirstRun,
		"matched", report.Matched,
	)
	return report, nil
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, report *Report) Outcome {
	stats := report.Diff.Stats()
	log.Info("pipeline: content changed", "added_lines", stats.Added, "removed_lines", stats.Removed)

	if p.notifier.Len() == 0 {
		return OutcomeChanged
	}

	log.Debug("pipeline: stage", "stage", StageNotifying, "sinks", p.notifier.Len())
	report.Deliveries = p.notifier.Notify(ctx, report.Message)
	for _, o := range report.Deliveries {
		observability.IncDelivery(o.OK())
		if o.OK() {
			log.Info("pipeline: notification delivered", "sink", o.Sink)
			continue
		}
		observability.IncError(observability.Classify(o.Err), string(StageNotifying))
		log.Warn("pipeline: notification failed", "sink", o.Sink, "error", o.Err)
	}
	if notify.Failed(report.Deliveries) > 0 {
		return OutcomeChangedNotifyFailed
	}
	return OutcomeChanged
}

func (p *Pipeline) abort(log *slog.Logger, report Report, stage Stage, err error) (Report, error) {
	runErr := &RunError{Stage: stage, Err: err}
	report.Outcome = OutcomeAborted
	report.Stage = stage
	report.Err = runErr

	kind := observability.Classify(err)
	observability.IncError(kind, string(stage))
	observability.IncRun(string(OutcomeAborted))
	log.Error("pipeline: run aborted", "stage", stage, "error_type", kind, "error", err)
	return report, runErr
}

func changeMessage(target config.Target, d diff.Result) string {
	return fmt.Sprintf("Change detected on %s:\n%s", target.URL, d.Render())
}
