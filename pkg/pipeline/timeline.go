package pipeline

import (
	"time"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

// BuildTimeline pairs every medication period of a patient with every
// observation of that patient and records the observation's signed day
// offset from the medication start. The full cross product is kept on
// purpose: the outcome resolver needs every candidate observation
// relative to every medication start to pick the pairing closest to the
// target follow-up day. Patients with observations but no medication
// periods produce nothing.
func BuildTimeline(observations []models.ObservationRecord, periods []models.MedicationPeriod) []models.TimelineRecord {
	if len(observations) == 0 || len(periods) == 0 {
		return nil
	}

	periodsByPatient := make(map[string][]models.MedicationPeriod)
	for _, period := range periods {
		periodsByPatient[period.Patient] = append(periodsByPatient[period.Patient], period)
	}

	obsByPatient := make(map[string][]models.ObservationRecord)
	patientOrder := make([]string, 0)
	for _, obs := range observations {
		if _, seen := obsByPatient[obs.Patient]; !seen {
			patientOrder = append(patientOrder, obs.Patient)
		}
		obsByPatient[obs.Patient] = append(obsByPatient[obs.Patient], obs)
	}

	var timeline []models.TimelineRecord
	for _, patient := range patientOrder {
		patientPeriods := periodsByPatient[patient]
		if len(patientPeriods) == 0 {
			continue
		}
		for _, period := range patientPeriods {
			for _, obs := range obsByPatient[patient] {
				timeline = append(timeline, models.TimelineRecord{
					Patient:        patient,
					MedCode:        period.Code,
					MedDescription: period.Description,
					MedStartDate:   period.Start,
					ObsCode:        obs.Code,
					ObsDescription: obs.Description,
					ObsDate:        obs.Date,
					DaysRelative:   daysBetween(period.Start, obs.Date),
					Value:          obs.Value,
					Units:          obs.Units,
				})
			}
		}
	}
	return timeline
}

// daysBetween returns the whole-day offset of to relative to from,
// negative when to precedes from. Both inputs are truncated to their
// calendar date first, so partial-day components never round an offset
// up or down.
func daysBetween(from, to time.Time) int {
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate) / (24 * time.Hour))
}
