package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

// Source table file names inside the data directory.
const (
	PatientsFile     = "patients.csv"
	ConditionsFile   = "conditions.csv"
	MedicationsFile  = "medications.csv"
	ObservationsFile = "observations.csv"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Load reads the four source tables from dir. A missing file is an
// error; a malformed row is not. Rows without a usable patient id or
// required date are dropped so one bad export line cannot abort a run.
func Load(dir string) (models.Dataset, error) {
	var err error
	var dataset models.Dataset

	dataset.Patients, err = loadTable(dir, PatientsFile, ParsePatients)
	if err != nil {
		return models.Dataset{}, err
	}
	dataset.Conditions, err = loadTable(dir, ConditionsFile, ParseConditions)
	if err != nil {
		return models.Dataset{}, err
	}
	dataset.Medications, err = loadTable(dir, MedicationsFile, ParseMedications)
	if err != nil {
		return models.Dataset{}, err
	}
	dataset.Observations, err = loadTable(dir, ObservationsFile, ParseObservations)
	if err != nil {
		return models.Dataset{}, err
	}
	return dataset, nil
}

func loadTable[T any](dir, name string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	path := filepath.Join(dir, name)
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	rows, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return rows, nil
}

// ParsePatients parses a patients table.
func ParsePatients(r io.Reader) ([]models.PatientRecord, error) {
	var patients []models.PatientRecord
	err := forEachRow(r, func(row row) {
		id := row.get("patient")
		if id == "" {
			id = row.get("id")
		}
		if id == "" {
			return
		}
		patients = append(patients, models.PatientRecord{
			ID:        id,
			BirthDate: row.get("birthdate"),
			Gender:    row.get("gender"),
			Race:      row.get("race"),
			Ethnicity: row.get("ethnicity"),
		})
	})
	return patients, err
}

// ParseConditions parses a conditions table.
func ParseConditions(r io.Reader) ([]models.ConditionRecord, error) {
	var conditions []models.ConditionRecord
	err := forEachRow(r, func(row row) {
		patient := row.get("patient")
		start, ok := parseDate(row.get("start"))
		if patient == "" || !ok {
			return
		}
		conditions = append(conditions, models.ConditionRecord{
			Patient:     patient,
			Code:        row.get("code"),
			Description: row.get("description"),
			Start:       start,
		})
	})
	return conditions, err
}

// ParseMedications parses a medications table. An empty stop cell is a
// still-running prescription, kept as a nil stop for the normalizer to
// close with its sentinel.
func ParseMedications(r io.Reader) ([]models.MedicationRecord, error) {
	var medications []models.MedicationRecord
	err := forEachRow(r, func(row row) {
		patient := row.get("patient")
		start, ok := parseDate(row.get("start"))
		if patient == "" || !ok {
			return
		}
		var stop *time.Time
		if parsed, ok := parseDate(row.get("stop")); ok {
			stop = &parsed
		}
		medications = append(medications, models.MedicationRecord{
			Patient:           patient,
			Code:              row.get("code"),
			Description:       row.get("description"),
			Start:             start,
			Stop:              stop,
			ReasonDescription: row.get("reasondescription"),
		})
	})
	return medications, err
}

// ParseObservations parses an observations table. Values that do not
// parse as numbers become NaN, never an error; the row is kept.
func ParseObservations(r io.Reader) ([]models.ObservationRecord, error) {
	var observations []models.ObservationRecord
	err := forEachRow(r, func(row row) {
		patient := row.get("patient")
		date, ok := parseDate(row.get("date"))
		if patient == "" || !ok {
			return
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row.get("value")), 64)
		if err != nil {
			value = math.NaN()
		}
		observations = append(observations, models.ObservationRecord{
			Patient:     patient,
			Code:        row.get("code"),
			Description: row.get("description"),
			Date:        date,
			Value:       value,
			Units:       row.get("units"),
		})
	})
	return observations, err
}

type row struct {
	index  map[string]int
	fields []string
}

func (r row) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func forEachRow(r io.Reader, visit func(row)) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.ToLower(strings.TrimSpace(column))] = i
	}

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		visit(row{index: index, fields: fields})
	}
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
