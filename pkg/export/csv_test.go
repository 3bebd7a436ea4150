package export

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
	"github.com/veritas-health/medoutcomes/pkg/pipeline"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func readFile(dir, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, name))
}

func TestWriteTimelineCSV(t *testing.T) {
	timeline := []models.TimelineRecord{
		{
			Patient:        "p1",
			MedCode:        "860975",
			MedDescription: "Metformin",
			MedStartDate:   date(2020, time.January, 1),
			ObsCode:        "4548-4",
			ObsDescription: "Hemoglobin A1c",
			ObsDate:        date(2019, time.December, 1),
			DaysRelative:   -31,
			Value:          9.0,
			Units:          "%",
		},
		{
			Patient:      "p1",
			MedCode:      "860975",
			ObsCode:      "72166-2",
			ObsDate:      date(2020, time.March, 1),
			DaysRelative: 60,
			Value:        math.NaN(),
		},
	}

	var buf bytes.Buffer
	if err := WriteTimelineCSV(&buf, timeline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(TimelineColumns, ",") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "-31") || !strings.Contains(lines[1], "2019-12-01") {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
	// Missing value renders as an empty cell, not as NaN text.
	if strings.Contains(lines[2], "NaN") {
		t.Fatalf("missing value leaked into output: %s", lines[2])
	}
}

func TestWriteOutcomesCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutcomesCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if got != strings.Join(OutcomeColumns, ",") {
		t.Fatalf("expected bare header for empty collection, got %q", got)
	}
}

func TestWriteMedicationsCSVOpenEndedStop(t *testing.T) {
	stop := date(2020, time.June, 1)
	medications := []models.MedicationRecord{
		{Patient: "p1", Code: "860975", Description: "Metformin", Start: date(2020, time.January, 1)},
		{Patient: "p1", Code: "106892", Description: "Insulin", Start: date(2019, time.March, 15), Stop: &stop},
	}

	var buf bytes.Buffer
	if err := WriteMedicationsCSV(&buf, medications); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.Contains(lines[1], "2020-01-01,,") {
		t.Fatalf("expected empty stop cell, got %s", lines[1])
	}
	if !strings.Contains(lines[2], "2020-06-01") {
		t.Fatalf("expected stop date preserved, got %s", lines[2])
	}
}

func TestBuildSummaryAndJSON(t *testing.T) {
	filtered := models.Dataset{
		Patients: []models.PatientRecord{{ID: "p1"}},
		Conditions: []models.ConditionRecord{
			{Patient: "p1", Code: "44054006"},
		},
		Medications: []models.MedicationRecord{
			{Patient: "p1", Code: "860975", Start: date(2020, time.January, 1)},
		},
		Observations: []models.ObservationRecord{
			{Patient: "p1", Code: "4548-4", Date: date(2020, time.February, 1), Value: 7.4},
		},
	}
	result := pipeline.Result{
		Timeline: []models.TimelineRecord{{Patient: "p1"}},
		Outcomes: []models.OutcomeRecord{
			{Patient: "p1", MedDescription: "Metformin", ObsDescription: "Hemoglobin A1c"},
		},
	}

	summary := BuildSummary(filtered, result)
	if summary.NumDiabeticPatients != 1 || summary.NumMedicationOutcomes != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(summary.GlucoseMetricsTracked) != 1 || summary.GlucoseMetricsTracked[0] != "Hemoglobin A1c" {
		t.Fatalf("unexpected metrics: %v", summary.GlucoseMetricsTracked)
	}
	if len(summary.MedicationsAnalyzed) != 1 || summary.MedicationsAnalyzed[0] != "Metformin" {
		t.Fatalf("unexpected medications: %v", summary.MedicationsAnalyzed)
	}

	var buf bytes.Buffer
	if err := WriteSummaryJSON(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if decoded["num_medication_outcomes"] != float64(1) {
		t.Fatalf("unexpected outcome count in JSON: %v", decoded["num_medication_outcomes"])
	}
}

func TestSaveAllWritesEveryFile(t *testing.T) {
	dir := t.TempDir()
	filtered := models.Dataset{Patients: []models.PatientRecord{{ID: "p1"}}}
	result := pipeline.Result{}
	summary := BuildSummary(filtered, result)

	if err := SaveAll(dir, filtered, result, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{
		TimelineFile, OutcomesFile, SummaryFile,
		PatientsFile, ConditionsFile, MedicationsFile, ObservationsFile,
	} {
		if _, err := readFile(dir, name); err != nil {
			t.Fatalf("missing output file %s: %v", name, err)
		}
	}
}
