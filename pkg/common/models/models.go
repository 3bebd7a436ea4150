package models

import (
	"math"
	"time"
)

// OpenEndedStop is the sentinel stop date assigned to medication records
// whose source row carries no stop date. Every normalized period has a
// defined stop, so downstream stages never branch on nil.
var OpenEndedStop = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Source table rows. All four tables are keyed by patient id and loaded
// once per run; rows are never mutated after loading.

type PatientRecord struct {
	ID        string `json:"patient"`
	BirthDate string `json:"birthdate,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Race      string `json:"race,omitempty"`
	Ethnicity string `json:"ethnicity,omitempty"`
}

type ConditionRecord struct {
	Patient     string    `json:"patient"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
}

type MedicationRecord struct {
	Patient           string     `json:"patient"`
	Code              string     `json:"code"`
	Description       string     `json:"description"`
	Start             time.Time  `json:"start"`
	Stop              *time.Time `json:"stop,omitempty"`
	ReasonDescription string     `json:"reasondescription,omitempty"`
}

type ObservationRecord struct {
	Patient     string    `json:"patient"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	// Value is NaN when the source cell did not parse as a number. The
	// record is kept either way; only outcome arithmetic cares.
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// MedicationPeriod is a MedicationRecord with a guaranteed stop date.
// Stop >= Start is not enforced; malformed source rows pass through.
type MedicationPeriod struct {
	Patient     string    `json:"patient"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
}

// TimelineRecord is one (medication period, observation) pairing for a
// patient, with the observation date expressed as a signed day offset
// from the medication start.
type TimelineRecord struct {
	Patient        string    `json:"patient"`
	MedCode        string    `json:"med_code"`
	MedDescription string    `json:"med_description"`
	MedStartDate   time.Time `json:"med_start_date"`
	ObsCode        string    `json:"obs_code"`
	ObsDescription string    `json:"obs_description"`
	ObsDate        time.Time `json:"obs_date"`
	DaysRelative   int       `json:"days_relative"`
	Value          float64   `json:"value"`
	Units          string    `json:"units"`
}

// OutcomeRecord is the resolved pre/post effect of one medication on one
// metric for one patient. Change and PercentChange are NaN when either
// endpoint value is non-numeric; PercentChange is additionally NaN when
// the pre value is zero.
type OutcomeRecord struct {
	Patient        string    `json:"patient"`
	MedCode        string    `json:"med_code"`
	MedDescription string    `json:"med_description"`
	ObsCode        string    `json:"obs_code"`
	ObsDescription string    `json:"obs_description"`
	PreValue       float64   `json:"pre_value"`
	PostValue      float64   `json:"post_value"`
	Change         float64   `json:"change"`
	PercentChange  float64   `json:"percent_change"`
	PreDate        time.Time `json:"pre_date"`
	PostDate       time.Time `json:"post_date"`
	DaysBetween    int       `json:"days_between"`
	Units          string    `json:"units"`
}

// Dataset bundles the four source tables for one run.
type Dataset struct {
	Patients     []PatientRecord
	Conditions   []ConditionRecord
	Medications  []MedicationRecord
	Observations []ObservationRecord
}

// DatasetSummary is the companion JSON record written next to the CSV
// outputs and cached for the service's summary endpoint.
type DatasetSummary struct {
	NumDiabeticPatients   int      `json:"num_diabetic_patients"`
	NumDiabetesConditions int      `json:"num_diabetes_conditions"`
	NumMedications        int      `json:"num_medications"`
	NumObservations       int      `json:"num_observations"`
	NumTimelineRecords    int      `json:"num_timeline_records"`
	NumMedicationOutcomes int      `json:"num_medication_outcomes"`
	GlucoseMetricsTracked []string `json:"glucose_metrics_tracked"`
	MedicationsAnalyzed   []string `json:"medications_analyzed"`
}

// RunEvent is the payload published to the event bus when a pipeline
// run completes.
type RunEvent struct {
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
	Patients    int       `json:"patients"`
	Timeline    int       `json:"timeline_records"`
	Outcomes    int       `json:"outcome_records"`
}

// IsMissing reports whether a value is the undefined/NaN marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
