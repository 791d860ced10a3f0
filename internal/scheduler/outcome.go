package scheduler

import "photovault/internal/metrics"

// Outcome is the result of running one stage on one item. The scheduler
// owns all flag transitions: stages report what happened and the
// scheduler decides whether the item is finished, retried, or retired.
type Outcome int

const (
	// Done means the stage completed and its flag can be raised.
	Done Outcome = iota
	// PermanentFailure means the item will never succeed; it is retired
	// from the pipeline.
	PermanentFailure
	// TransientFailure means the stage should be retried on a later
	// pass; no flags change.
	TransientFailure
	// Skipped means the stage does not apply to this item; its flag is
	// raised without doing work.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case PermanentFailure:
		return "permanent_failure"
	case TransientFailure:
		return "transient_failure"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func record(stage string, o Outcome) Outcome {
	metrics.StageOutcomesTotal.WithLabelValues(stage, o.String()).Inc()
	return o
}
