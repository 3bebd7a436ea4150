package terminology

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog holds the code lists the cohort filter runs on. Each list can
// be overridden independently, from a YAML file or the environment.
type Catalog struct {
	// SNOMED CT codes for diabetes and related conditions.
	DiabetesCodes []string `yaml:"diabetes_codes" json:"diabetes_codes"`
	// SNOMED CT codes for the core diabetes diagnoses kept when
	// comorbidities are excluded.
	CoreDiabetesCodes []string `yaml:"core_diabetes_codes" json:"core_diabetes_codes"`
	// LOINC codes for glucose and HbA1c measurements.
	GlucoseCodes []string `yaml:"glucose_codes" json:"glucose_codes"`
	// LOINC codes for vital signs (BMI, systolic/diastolic BP).
	VitalCodes []string `yaml:"vital_codes" json:"vital_codes"`
}

// Load reads a catalog from path, or the defaults when path is empty.
// Every error path still returns the default catalog so a caller that
// logs and continues never filters against empty code lists.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return DefaultCatalog(), err
	}
	if len(cat.DiabetesCodes) == 0 && len(cat.GlucoseCodes) == 0 {
		return DefaultCatalog(), fmt.Errorf("code catalog empty")
	}
	return cat.withDefaults(), nil
}

// WithOverrides replaces individual code lists when the caller supplies
// non-empty replacements, leaving the others untouched.
func (c Catalog) WithOverrides(diabetes, glucose, vitals []string) Catalog {
	if len(diabetes) > 0 {
		c.DiabetesCodes = diabetes
	}
	if len(glucose) > 0 {
		c.GlucoseCodes = glucose
	}
	if len(vitals) > 0 {
		c.VitalCodes = vitals
	}
	return c
}

func (c Catalog) withDefaults() Catalog {
	def := DefaultCatalog()
	if len(c.DiabetesCodes) == 0 {
		c.DiabetesCodes = def.DiabetesCodes
	}
	if len(c.CoreDiabetesCodes) == 0 {
		c.CoreDiabetesCodes = def.CoreDiabetesCodes
	}
	if len(c.GlucoseCodes) == 0 {
		c.GlucoseCodes = def.GlucoseCodes
	}
	if len(c.VitalCodes) == 0 {
		c.VitalCodes = def.VitalCodes
	}
	return c
}

func DefaultCatalog() Catalog {
	return Catalog{
		DiabetesCodes: []string{
			"44054006",        // Diabetes mellitus type 2
			"15777000",        // Prediabetes
			"422034002",       // Diabetic retinopathy
			"1551000119108",   // Nonproliferative diabetic retinopathy
			"97331000119101",  // Macular edema and retinopathy due to type 2 diabetes
			"368581000119106", // Neuropathy due to type 2 diabetes
		},
		CoreDiabetesCodes: []string{"44054006", "46635009"},
		GlucoseCodes: []string{
			"2339-0", // Glucose
			"2345-7", // Glucose [Mass/volume] in Serum or Plasma
			"4548-4", // Hemoglobin A1c
		},
		VitalCodes: []string{
			"39156-5", // Body mass index
			"8480-6",  // Systolic blood pressure
			"8462-4",  // Diastolic blood pressure
		},
	}
}

// CodeSet builds a membership set for filtering.
func CodeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}
