package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
	"github.com/veritas-health/medoutcomes/pkg/pipeline"
)

// Output file names inside the processed-data directory.
const (
	TimelineFile     = "observation_timeline.csv"
	OutcomesFile     = "medication_outcomes.csv"
	SummaryFile      = "dataset_summary.json"
	PatientsFile     = "patients_diabetic.csv"
	ConditionsFile   = "conditions_diabetic.csv"
	MedicationsFile  = "medications_diabetic.csv"
	ObservationsFile = "observations_diabetic.csv"
)

// BuildSummary derives the companion summary record for one run.
func BuildSummary(filtered models.Dataset, result pipeline.Result) models.DatasetSummary {
	return models.DatasetSummary{
		NumDiabeticPatients:   len(filtered.Patients),
		NumDiabetesConditions: len(filtered.Conditions),
		NumMedications:        len(filtered.Medications),
		NumObservations:       len(filtered.Observations),
		NumTimelineRecords:    len(result.Timeline),
		NumMedicationOutcomes: len(result.Outcomes),
		GlucoseMetricsTracked: pipeline.MetricDescriptions(result.Outcomes),
		MedicationsAnalyzed:   pipeline.MedicationDescriptions(result.Outcomes),
	}
}

// WriteSummaryJSON writes the summary as indented JSON.
func WriteSummaryJSON(w io.Writer, summary models.DatasetSummary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

// SaveAll persists the filtered tables, the derived collections and the
// summary under dir, creating it if needed.
func SaveAll(dir string, filtered models.Dataset, result pipeline.Result, summary models.DatasetSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{PatientsFile, func(w io.Writer) error { return WritePatientsCSV(w, filtered.Patients) }},
		{ConditionsFile, func(w io.Writer) error { return WriteConditionsCSV(w, filtered.Conditions) }},
		{MedicationsFile, func(w io.Writer) error { return WriteMedicationsCSV(w, filtered.Medications) }},
		{ObservationsFile, func(w io.Writer) error { return WriteObservationsCSV(w, filtered.Observations) }},
		{TimelineFile, func(w io.Writer) error { return WriteTimelineCSV(w, result.Timeline) }},
		{OutcomesFile, func(w io.Writer) error { return WriteOutcomesCSV(w, result.Outcomes) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummaryJSON(w, summary) }},
	}

	for _, file := range files {
		if err := writeFile(filepath.Join(dir, file.name), file.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
