package pipeline

import (
	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

// Options tune the pipeline; the zero value picks the defaults.
type Options struct {
	TargetPostDays int
}

// Result carries the derived collections of one run. All three are
// fresh slices; the inputs are never mutated.
type Result struct {
	Periods  []models.MedicationPeriod
	Timeline []models.TimelineRecord
	Outcomes []models.OutcomeRecord
}

// Run executes the three pipeline stages over cohort-filtered tables:
// medication records are normalized into periods, observations are
// aligned to every period of their patient, and each (patient,
// medication, metric) group is resolved to at most one pre/post
// outcome. Every stage is a pure function and total over empty input,
// so an empty cohort flows through as empty collections rather than an
// error.
func Run(medications []models.MedicationRecord, observations []models.ObservationRecord, opts Options) Result {
	targetDays := opts.TargetPostDays
	if targetDays <= 0 {
		targetDays = DefaultTargetPostDays
	}

	periods := NormalizePeriods(medications)
	timeline := BuildTimeline(observations, periods)
	outcomes := ResolveOutcomes(timeline, targetDays)

	return Result{
		Periods:  periods,
		Timeline: timeline,
		Outcomes: outcomes,
	}
}
