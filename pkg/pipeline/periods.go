package pipeline

import (
	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

// NormalizePeriods closes open-ended medication records. Rows map 1:1 to
// periods; nothing is dropped or merged, and overlapping or duplicate
// periods for the same patient/drug pass through unchanged.
func NormalizePeriods(medications []models.MedicationRecord) []models.MedicationPeriod {
	periods := make([]models.MedicationPeriod, 0, len(medications))
	for _, med := range medications {
		stop := models.OpenEndedStop
		if med.Stop != nil {
			stop = *med.Stop
		}
		periods = append(periods, models.MedicationPeriod{
			Patient:     med.Patient,
			Code:        med.Code,
			Description: med.Description,
			Start:       med.Start,
			Stop:        stop,
		})
	}
	return periods
}
