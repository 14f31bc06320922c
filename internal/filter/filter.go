// Package filter decides keep-vs-eligible for discovered records based on
// the configured retention rules. The decision is pure except for the
// keep-size rule, which is the one place lazy size resolution is forced
// synchronously.
package filter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/purger/internal/project"
	"github.com/lakshaymaurya-felt/purger/internal/scan"
	"github.com/lakshaymaurya-felt/purger/internal/size"
)

// Keep reasons reported in decisions. First match wins; the externally
// observable effect is only keep-vs-eligible.
const (
	ReasonRecentlyBuilt = "recently-built"
	ReasonBelowSize     = "below-size-threshold"
	ReasonIgnoredPath   = "ignored-path"
	ReasonUnknownAge    = "unknown-age"
)

// Decision is the outcome for one record.
type Decision struct {
	Keep   bool
	Reason string
}

// Filter applies retention rules from a scan config.
type Filter struct {
	cfg scan.Config
	est *size.Estimator
	now func() time.Time
	log *logrus.Entry
}

// New creates a filter. The estimator is required only when KeepSize is
// configured; pass nil otherwise.
func New(cfg scan.Config, est *size.Estimator) *Filter {
	return &Filter{
		cfg: cfg,
		est: est,
		now: time.Now,
		log: logrus.WithField("component", "filter"),
	}
}

// Enabled reports whether any retention rule is configured at all.
func (f *Filter) Enabled() bool {
	return f.cfg.KeepDays > 0 || f.cfg.KeepSize > 0 || len(f.cfg.IgnorePaths) > 0
}

// Decide classifies one record. Records under an ignored path are always
// kept; then recency, then size.
func (f *Filter) Decide(ctx context.Context, p *project.Project) Decision {
	if len(f.cfg.IgnorePaths) > 0 && f.cfg.IsIgnoredPath(p.RootPath) {
		return Decision{Keep: true, Reason: ReasonIgnoredPath}
	}

	if f.cfg.KeepDays > 0 {
		if p.LastModified.IsZero() {
			if f.cfg.KeepUnknownAge {
				return Decision{Keep: true, Reason: ReasonUnknownAge}
			}
			// Cannot prove recency: eligible.
		} else {
			age := f.now().Sub(p.LastModified)
			if age < time.Duration(f.cfg.KeepDays)*24*time.Hour {
				return Decision{Keep: true, Reason: ReasonRecentlyBuilt}
			}
		}
	}

	// A record without an artifact resolves to 0 bytes, which is below
	// any threshold.
	if f.cfg.KeepSize > 0 {
		n, err := f.est.EnsureSize(ctx, p)
		if err != nil {
			// Size unresolvable: cannot prove it is below the threshold.
			f.log.WithField("project", p.RootPath).WithError(err).
				Debug("size unavailable for keep-size check, leaving eligible")
		} else if n < f.cfg.KeepSize {
			return Decision{Keep: true, Reason: ReasonBelowSize}
		}
	}

	return Decision{}
}

// Partition splits records into eligible and kept sets, preserving input
// order within each set.
func (f *Filter) Partition(ctx context.Context, records []*project.Project) (eligible, kept []*project.Project) {
	for _, p := range records {
		d := f.Decide(ctx, p)
		if d.Keep {
			f.log.WithFields(logrus.Fields{
				"project": p.RootPath,
				"reason":  d.Reason,
			}).Debug("keeping project")
			kept = append(kept, p)
		} else {
			eligible = append(eligible, p)
		}
	}
	return eligible, kept
}
