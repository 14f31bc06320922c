package clean

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// Outcome is one record's terminal result. Every attempted record gets
// exactly one.
type Outcome struct {
	Project *project.Project
	Kind    OutcomeKind

	// Bytes freed (Cleaned) or estimated (DryRun).
	Bytes int64

	// Reason is set for Skipped outcomes.
	Reason string

	// Err is set for Failed outcomes.
	Err error
}

// Report aggregates a batch. Outcomes are never silently dropped: the
// slice lists every attempted record.
type Report struct {
	RunID      string
	Outcomes   []Outcome
	Cleaned    int
	Failed     int
	Skipped    int
	DryRuns    int
	BytesFreed int64
	Duration   time.Duration

	// Err aggregates all per-record failures; nil when none failed.
	Err error
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Kind {
	case OutcomeCleaned:
		r.Cleaned++
		r.BytesFreed += o.Bytes
	case OutcomeDryRun:
		r.DryRuns++
		r.BytesFreed += o.Bytes
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
		r.Err = multierror.Append(r.Err, o.Err)
	}
}

// Failures returns the failed outcomes only.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed {
			out = append(out, o)
		}
	}
	return out
}
