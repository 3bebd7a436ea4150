package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

const dateLayout = "2006-01-02"

// TimelineColumns is the header of the observation timeline CSV.
var TimelineColumns = []string{
	"patient", "med_code", "med_description", "med_start_date",
	"obs_code", "obs_description", "obs_date", "days_relative",
	"value", "units",
}

// OutcomeColumns is the header of the medication outcomes CSV.
var OutcomeColumns = []string{
	"patient", "med_code", "med_description", "obs_code",
	"obs_description", "pre_value", "post_value", "change",
	"percent_change", "pre_date", "post_date", "days_between", "units",
}

// WriteTimelineCSV writes the timeline collection with a header row.
// Missing values render as empty cells.
func WriteTimelineCSV(w io.Writer, timeline []models.TimelineRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TimelineColumns); err != nil {
		return err
	}
	for _, record := range timeline {
		row := []string{
			record.Patient,
			record.MedCode,
			record.MedDescription,
			formatDate(record.MedStartDate),
			record.ObsCode,
			record.ObsDescription,
			formatDate(record.ObsDate),
			strconv.Itoa(record.DaysRelative),
			formatValue(record.Value),
			record.Units,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOutcomesCSV writes the outcome collection with a header row.
func WriteOutcomesCSV(w io.Writer, outcomes []models.OutcomeRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(OutcomeColumns); err != nil {
		return err
	}
	for _, outcome := range outcomes {
		row := []string{
			outcome.Patient,
			outcome.MedCode,
			outcome.MedDescription,
			outcome.ObsCode,
			outcome.ObsDescription,
			formatValue(outcome.PreValue),
			formatValue(outcome.PostValue),
			formatValue(outcome.Change),
			formatValue(outcome.PercentChange),
			formatDate(outcome.PreDate),
			formatDate(outcome.PostDate),
			strconv.Itoa(outcome.DaysBetween),
			outcome.Units,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePatientsCSV writes the cohort-filtered patients table.
func WritePatientsCSV(w io.Writer, patients []models.PatientRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"patient", "birthdate", "gender", "race", "ethnicity"}); err != nil {
		return err
	}
	for _, patient := range patients {
		row := []string{patient.ID, patient.BirthDate, patient.Gender, patient.Race, patient.Ethnicity}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteConditionsCSV writes the cohort-filtered conditions table.
func WriteConditionsCSV(w io.Writer, conditions []models.ConditionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"patient", "code", "description", "start"}); err != nil {
		return err
	}
	for _, condition := range conditions {
		row := []string{condition.Patient, condition.Code, condition.Description, formatDate(condition.Start)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMedicationsCSV writes the cohort-filtered medications table. An
// open-ended prescription keeps its empty stop cell.
func WriteMedicationsCSV(w io.Writer, medications []models.MedicationRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"patient", "code", "description", "start", "stop", "reasondescription"}); err != nil {
		return err
	}
	for _, medication := range medications {
		stop := ""
		if medication.Stop != nil {
			stop = formatDate(*medication.Stop)
		}
		row := []string{
			medication.Patient,
			medication.Code,
			medication.Description,
			formatDate(medication.Start),
			stop,
			medication.ReasonDescription,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteObservationsCSV writes the filtered observations table.
func WriteObservationsCSV(w io.Writer, observations []models.ObservationRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"patient", "code", "description", "date", "value", "units"}); err != nil {
		return err
	}
	for _, observation := range observations {
		row := []string{
			observation.Patient,
			observation.Code,
			observation.Description,
			formatDate(observation.Date),
			formatValue(observation.Value),
			observation.Units,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func formatValue(v float64) string {
	if models.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
