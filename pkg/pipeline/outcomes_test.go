package pipeline

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

func missing() float64 { return math.NaN() }

func timelineRecord(patient string, days int, value float64) models.TimelineRecord {
	start := date(2020, time.January, 1)
	return models.TimelineRecord{
		Patient:        patient,
		MedCode:        "860975",
		MedDescription: "Metformin",
		MedStartDate:   start,
		ObsCode:        "4548-4",
		ObsDescription: "Hemoglobin A1c",
		ObsDate:        start.AddDate(0, 0, days),
		DaysRelative:   days,
		Value:          value,
		Units:          "%",
	}
}

func TestResolveOutcomesEndToEnd(t *testing.T) {
	stop := date(2020, time.December, 31)
	medications := []models.MedicationRecord{
		{Patient: "p1", Code: "860975", Description: "Metformin", Start: date(2020, time.January, 1), Stop: &stop},
	}
	observations := []models.ObservationRecord{
		{Patient: "p1", Code: "4548-4", Description: "Hemoglobin A1c", Date: date(2019, time.December, 1), Value: 9.0, Units: "%"},
		{Patient: "p1", Code: "4548-4", Description: "Hemoglobin A1c", Date: date(2020, time.July, 1), Value: 7.0, Units: "%"},
	}

	result := Run(medications, observations, Options{})
	if len(result.Outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(result.Outcomes))
	}

	outcome := result.Outcomes[0]
	if outcome.PreValue != 9.0 || outcome.PostValue != 7.0 {
		t.Fatalf("unexpected endpoint values: pre=%v post=%v", outcome.PreValue, outcome.PostValue)
	}
	if !outcome.PreDate.Equal(date(2019, time.December, 1)) || !outcome.PostDate.Equal(date(2020, time.July, 1)) {
		t.Fatalf("unexpected endpoint dates: pre=%v post=%v", outcome.PreDate, outcome.PostDate)
	}
	if outcome.Change != -2.0 {
		t.Fatalf("expected change -2.0, got %v", outcome.Change)
	}
	if math.Abs(outcome.PercentChange-(-22.222222)) > 0.001 {
		t.Fatalf("expected percent change near -22.22, got %v", outcome.PercentChange)
	}
	if outcome.DaysBetween != 182 {
		t.Fatalf("expected days between 182, got %d", outcome.DaysBetween)
	}
}

func TestResolveOutcomesRequiresTwoRecords(t *testing.T) {
	timeline := []models.TimelineRecord{timelineRecord("p1", -10, 8.0)}
	if outcomes := ResolveOutcomes(timeline, 0); len(outcomes) != 0 {
		t.Fatalf("expected no outcome for a single-record group, got %d", len(outcomes))
	}
}

func TestResolveOutcomesRequiresPreAndPost(t *testing.T) {
	onlyPost := []models.TimelineRecord{
		timelineRecord("p1", 10, 8.0),
		timelineRecord("p1", 170, 7.5),
	}
	if outcomes := ResolveOutcomes(onlyPost, 0); len(outcomes) != 0 {
		t.Fatalf("expected no outcome without a pre record, got %d", len(outcomes))
	}

	onlyPre := []models.TimelineRecord{
		timelineRecord("p1", -40, 8.0),
		timelineRecord("p1", -10, 7.5),
	}
	if outcomes := ResolveOutcomes(onlyPre, 0); len(outcomes) != 0 {
		t.Fatalf("expected no outcome without a post record, got %d", len(outcomes))
	}
}

func TestResolveOutcomesPicksMostRecentPre(t *testing.T) {
	timeline := []models.TimelineRecord{
		timelineRecord("p1", -90, 9.5),
		timelineRecord("p1", -5, 9.0),
		timelineRecord("p1", 0, 8.8),
		timelineRecord("p1", 170, 7.0),
	}
	outcomes := ResolveOutcomes(timeline, 0)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	// Day zero counts as pre; it is the closest offset at or before
	// the start.
	if outcomes[0].PreValue != 8.8 {
		t.Fatalf("expected day-zero record as pre, got value %v", outcomes[0].PreValue)
	}
}

func TestResolveOutcomesPostSelectionAndTieBreak(t *testing.T) {
	// Offsets 175 and 185 are both distance 5 from the 180-day
	// target; the first in ascending scan order wins.
	timeline := []models.TimelineRecord{
		timelineRecord("p1", -1, 9.0),
		timelineRecord("p1", 400, 6.0),
		timelineRecord("p1", 185, 7.2),
		timelineRecord("p1", 10, 8.9),
		timelineRecord("p1", 175, 7.4),
	}
	outcomes := ResolveOutcomes(timeline, 180)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].DaysBetween != 175 {
		t.Fatalf("expected post at offset 175, got %d", outcomes[0].DaysBetween)
	}
	if outcomes[0].PostValue != 7.4 {
		t.Fatalf("expected post value 7.4, got %v", outcomes[0].PostValue)
	}
}

func TestResolveOutcomesZeroPreValue(t *testing.T) {
	timeline := []models.TimelineRecord{
		timelineRecord("p1", -10, 0),
		timelineRecord("p1", 170, 5.0),
	}
	outcomes := ResolveOutcomes(timeline, 0)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Change != 5.0 {
		t.Fatalf("expected change 5.0, got %v", outcomes[0].Change)
	}
	if !models.IsMissing(outcomes[0].PercentChange) {
		t.Fatalf("expected undefined percent change for zero pre value, got %v", outcomes[0].PercentChange)
	}
}

func TestResolveOutcomesMissingValuesPropagate(t *testing.T) {
	timeline := []models.TimelineRecord{
		timelineRecord("p1", -10, missing()),
		timelineRecord("p1", 170, 5.0),
	}
	outcomes := ResolveOutcomes(timeline, 0)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if !models.IsMissing(outcomes[0].Change) || !models.IsMissing(outcomes[0].PercentChange) {
		t.Fatalf("expected undefined change and percent change, got %v / %v",
			outcomes[0].Change, outcomes[0].PercentChange)
	}
}

func TestResolveOutcomesGroupsByMedicationAndMetric(t *testing.T) {
	glucose := func(days int, value float64) models.TimelineRecord {
		record := timelineRecord("p1", days, value)
		record.ObsCode = "2339-0"
		record.ObsDescription = "Glucose"
		record.Units = "mg/dL"
		return record
	}
	timeline := []models.TimelineRecord{
		timelineRecord("p1", -10, 9.0),
		timelineRecord("p1", 170, 7.0),
		glucose(-5, 130),
		glucose(160, 110),
	}
	outcomes := ResolveOutcomes(timeline, 0)
	if len(outcomes) != 2 {
		t.Fatalf("expected one outcome per metric, got %d", len(outcomes))
	}
}

func TestResolveOutcomesDeterministic(t *testing.T) {
	timeline := []models.TimelineRecord{
		timelineRecord("p2", -10, 9.0),
		timelineRecord("p2", 170, 7.0),
		timelineRecord("p1", -3, 8.0),
		timelineRecord("p1", 200, 6.5),
	}
	first := ResolveOutcomes(timeline, 0)
	second := ResolveOutcomes(timeline, 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical output across reruns")
	}
	if first[0].Patient != "p1" || first[1].Patient != "p2" {
		t.Fatalf("expected groups in sorted key order, got %s then %s", first[0].Patient, first[1].Patient)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	result := Run(nil, nil, Options{})
	if len(result.Periods) != 0 || len(result.Timeline) != 0 || len(result.Outcomes) != 0 {
		t.Fatalf("expected empty result for empty inputs, got %+v", result)
	}
}

func TestDistinctDescriptions(t *testing.T) {
	outcomes := []models.OutcomeRecord{
		{MedDescription: "Metformin", ObsDescription: "Hemoglobin A1c"},
		{MedDescription: "Insulin", ObsDescription: "Glucose"},
		{MedDescription: "Metformin", ObsDescription: "Hemoglobin A1c"},
	}
	if got := MedicationDescriptions(outcomes); !reflect.DeepEqual(got, []string{"Metformin", "Insulin"}) {
		t.Fatalf("unexpected medication descriptions: %v", got)
	}
	if got := MetricDescriptions(outcomes); !reflect.DeepEqual(got, []string{"Hemoglobin A1c", "Glucose"}) {
		t.Fatalf("unexpected metric descriptions: %v", got)
	}
}
