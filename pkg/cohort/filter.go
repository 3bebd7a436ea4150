package cohort

import (
	"strings"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
	"github.com/veritas-health/medoutcomes/pkg/terminology"
)

// Selection describes how one cohort was identified, for run logging.
type Selection struct {
	Patients      map[string]struct{}
	ByCode        int
	ByDescription int
}

// IdentifyDiabeticPatients selects patients carrying any of the
// configured diagnosis codes, plus patients whose condition description
// mentions diabetes. The two approaches overlap heavily but neither
// subsumes the other in the source data, so their union is kept.
func IdentifyDiabeticPatients(conditions []models.ConditionRecord, diabetesCodes []string) Selection {
	codeSet := terminology.CodeSet(diabetesCodes)

	byCode := make(map[string]struct{})
	byDescription := make(map[string]struct{})
	for _, condition := range conditions {
		if _, ok := codeSet[condition.Code]; ok {
			byCode[condition.Patient] = struct{}{}
		}
		if matchesDiabetesDescription(condition.Description) {
			byDescription[condition.Patient] = struct{}{}
		}
	}

	patients := make(map[string]struct{}, len(byCode)+len(byDescription))
	for patient := range byCode {
		patients[patient] = struct{}{}
	}
	for patient := range byDescription {
		patients[patient] = struct{}{}
	}

	return Selection{
		Patients:      patients,
		ByCode:        len(byCode),
		ByDescription: len(byDescription),
	}
}

func matchesDiabetesDescription(description string) bool {
	lowered := strings.ToLower(description)
	return strings.Contains(lowered, "diabetes") || strings.Contains(lowered, "diabetic")
}

// FilterDataset restricts all four tables to the cohort. Conditions are
// additionally narrowed to the core diabetes diagnoses unless
// comorbidities are requested.
func FilterDataset(dataset models.Dataset, cohort map[string]struct{}, catalog terminology.Catalog, includeComorbidities bool) models.Dataset {
	coreCodes := terminology.CodeSet(catalog.CoreDiabetesCodes)

	filtered := models.Dataset{}
	for _, patient := range dataset.Patients {
		if _, ok := cohort[patient.ID]; ok {
			filtered.Patients = append(filtered.Patients, patient)
		}
	}
	for _, condition := range dataset.Conditions {
		if _, ok := cohort[condition.Patient]; !ok {
			continue
		}
		if !includeComorbidities {
			if _, ok := coreCodes[condition.Code]; !ok {
				continue
			}
		}
		filtered.Conditions = append(filtered.Conditions, condition)
	}
	for _, medication := range dataset.Medications {
		if _, ok := cohort[medication.Patient]; ok {
			filtered.Medications = append(filtered.Medications, medication)
		}
	}
	for _, observation := range dataset.Observations {
		if _, ok := cohort[observation.Patient]; ok {
			filtered.Observations = append(filtered.Observations, observation)
		}
	}
	return filtered
}

// FilterObservations keeps the glucose/HbA1c metrics and, when asked,
// the vital signs. Order within each kept set follows the input.
func FilterObservations(observations []models.ObservationRecord, catalog terminology.Catalog, includeVitals bool) []models.ObservationRecord {
	glucose := terminology.CodeSet(catalog.GlucoseCodes)
	vitals := terminology.CodeSet(catalog.VitalCodes)

	var kept []models.ObservationRecord
	for _, observation := range observations {
		if _, ok := glucose[observation.Code]; ok {
			kept = append(kept, observation)
		}
	}
	if includeVitals {
		for _, observation := range observations {
			if _, ok := vitals[observation.Code]; ok {
				kept = append(kept, observation)
			}
		}
	}
	return kept
}
