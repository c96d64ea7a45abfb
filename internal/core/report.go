package core

import (
	"fmt"

	"github.com/baxromumarov/pagewatch/internal/config"
	"github.com/baxromumarov/pagewatch/internal/diff"
	"github.com/baxromumarov/pagewatch/internal/notify"
)

type Stage string

const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageLoading    Stage = "loading"
	StageComparing  Stage = "comparing"
	StageNotifying  Stage = "notifying"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

type Outcome string

const (
	OutcomeUnchanged           Outcome = "unchanged"
	OutcomeChanged             Outcome = "changed"
	OutcomeChangedNotifyFailed Outcome = "changed_notify_failed"
	OutcomeAborted             Outcome = "aborted"
)

// RunError aborts a run. Stage is where the run stopped.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Report describes one run. Diff, Message and Deliveries are only set when
// a change was detected; they survive a later persisting failure.
type Report struct {
	Target     config.Target
	Outcome    Outcome
	Stage      Stage
	FirstRun   bool
	Matched    bool
	Diff       diff.Result
	Message    string
	Deliveries []notify.Outcome
	Err        error
}

func (r Report) Changed() bool {
	return r.Diff.Changed()
}

func (r Report) Aborted() bool {
	return r.Outcome == OutcomeAborted
}

// Headline is the single line shown to the operator for this run.
func (r Report) Headline() string {
	switch r.Outcome {
	case OutcomeUnchanged:
		return "No changes detected."
	case OutcomeChanged:
		return "Content has changed!"
	case OutcomeChangedNotifyFailed:
		return "Content has changed! (notification failed)"
	default:
		if r.Err != nil {
			return "Aborted: " + r.Err.Error()
		}
		return "Aborted."
	}
}
