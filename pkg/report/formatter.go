package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
	"github.com/veritas-health/medoutcomes/pkg/pipeline"
	"github.com/veritas-health/medoutcomes/pkg/terminology"
)

const (
	hbA1cCode  = "4548-4"
	dateLayout = "2006-01-02"
)

// Options bound the size of the generated report so it stays inside an
// LLM context window.
type Options struct {
	MaxPatients     int
	MaxObservations int
}

func (o Options) withDefaults() Options {
	if o.MaxPatients <= 0 {
		o.MaxPatients = 50
	}
	if o.MaxObservations <= 0 {
		o.MaxObservations = 5
	}
	return o
}

// Format renders the processed dataset as a markdown document: the run
// summary, aggregate effectiveness tables for HbA1c and blood glucose,
// then detailed per-patient examples ordered by how many outcomes the
// patient contributed.
func Format(filtered models.Dataset, result pipeline.Result, summary models.DatasetSummary, opts Options) string {
	opts = opts.withDefaults()

	var b strings.Builder

	b.WriteString("# Dataset Summary\n\n")
	if encoded, err := json.MarshalIndent(summary, "", "  "); err == nil {
		b.Write(encoded)
		b.WriteString("\n\n")
	}

	b.WriteString("# Medication Effectiveness Summary\n\n")
	writeAggregateSection(&b, "HbA1c Outcomes by Medication", result.Outcomes, func(o models.OutcomeRecord) bool {
		return o.ObsCode == hbA1cCode
	})
	glucoseCodes := terminology.CodeSet([]string{"2339-0", "2345-7"})
	writeAggregateSection(&b, "Blood Glucose Outcomes by Medication", result.Outcomes, func(o models.OutcomeRecord) bool {
		_, ok := glucoseCodes[o.ObsCode]
		return ok
	})

	b.WriteString("# Patient Examples\n\n")
	for _, patient := range selectPatients(result.Outcomes, opts.MaxPatients) {
		writePatientExample(&b, patient, filtered, result, opts.MaxObservations)
	}

	return b.String()
}

// MedicationAggregate is one row of the effectiveness tables.
type MedicationAggregate struct {
	Medication        string
	Count             int
	MeanChange        float64
	MeanPercentChange float64
}

// Aggregate computes per-medication mean change over the outcomes that
// pass the filter. Missing values are skipped rather than poisoning the
// mean; Count reports how many outcomes actually contributed.
func Aggregate(outcomes []models.OutcomeRecord, include func(models.OutcomeRecord) bool) []MedicationAggregate {
	type sums struct {
		count     int
		change    float64
		pctCount  int
		pctChange float64
	}
	byMedication := make(map[string]*sums)
	order := make([]string, 0)
	for _, outcome := range outcomes {
		if !include(outcome) {
			continue
		}
		s, ok := byMedication[outcome.MedDescription]
		if !ok {
			s = &sums{}
			byMedication[outcome.MedDescription] = s
			order = append(order, outcome.MedDescription)
		}
		if !models.IsMissing(outcome.Change) {
			s.count++
			s.change += outcome.Change
		}
		if !models.IsMissing(outcome.PercentChange) {
			s.pctCount++
			s.pctChange += outcome.PercentChange
		}
	}
	sort.Strings(order)

	aggregates := make([]MedicationAggregate, 0, len(order))
	for _, medication := range order {
		s := byMedication[medication]
		aggregate := MedicationAggregate{Medication: medication, Count: s.count}
		if s.count > 0 {
			aggregate.MeanChange = s.change / float64(s.count)
		}
		if s.pctCount > 0 {
			aggregate.MeanPercentChange = s.pctChange / float64(s.pctCount)
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates
}

func writeAggregateSection(b *strings.Builder, title string, outcomes []models.OutcomeRecord, include func(models.OutcomeRecord) bool) {
	aggregates := Aggregate(outcomes, include)
	if len(aggregates) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	b.WriteString("| Medication | Count | Mean Change | Mean % Change |\n")
	b.WriteString("|------------|-------|-------------|---------------|\n")
	for _, aggregate := range aggregates {
		fmt.Fprintf(b, "| %s | %d | %.2f | %.2f%% |\n",
			aggregate.Medication, aggregate.Count, aggregate.MeanChange, aggregate.MeanPercentChange)
	}
	b.WriteString("\n")
}

// selectPatients orders patients by outcome count, most first, capped
// at max. Ties fall back to patient id so reruns render identically.
func selectPatients(outcomes []models.OutcomeRecord, max int) []string {
	counts := make(map[string]int)
	for _, outcome := range outcomes {
		counts[outcome.Patient]++
	}
	patients := make([]string, 0, len(counts))
	for patient := range counts {
		patients = append(patients, patient)
	}
	sort.Slice(patients, func(i, j int) bool {
		if counts[patients[i]] != counts[patients[j]] {
			return counts[patients[i]] > counts[patients[j]]
		}
		return patients[i] < patients[j]
	})
	if len(patients) > max {
		patients = patients[:max]
	}
	return patients
}

func writePatientExample(b *strings.Builder, patientID string, filtered models.Dataset, result pipeline.Result, maxObservations int) {
	fmt.Fprintf(b, "## Patient: %s... (anonymized)\n\n", truncateID(patientID))

	for _, patient := range filtered.Patients {
		if patient.ID != patientID {
			continue
		}
		fmt.Fprintf(b, "- Gender: %s\n", patient.Gender)
		fmt.Fprintf(b, "- Race: %s\n", patient.Race)
		fmt.Fprintf(b, "- Ethnicity: %s\n", patient.Ethnicity)
		break
	}

	for _, condition := range filtered.Conditions {
		if condition.Patient != patientID {
			continue
		}
		fmt.Fprintf(b, "- Diabetes Type: %s\n", condition.Description)
		fmt.Fprintf(b, "- Diagnosis Date: %s\n\n", condition.Start.Format(dateLayout))
		break
	}

	writeMedicationsTable(b, patientID, filtered.Medications)
	writeOutcomesTable(b, patientID, result.Outcomes)
	writeTimelineTables(b, patientID, result.Timeline, maxObservations)

	b.WriteString("---\n\n")
}

func writeMedicationsTable(b *strings.Builder, patientID string, medications []models.MedicationRecord) {
	wroteHeader := false
	for _, medication := range medications {
		if medication.Patient != patientID {
			continue
		}
		if !wroteHeader {
			b.WriteString("### Medications\n\n")
			b.WriteString("| Start Date | Medication | Reason |\n")
			b.WriteString("|------------|------------|--------|\n")
			wroteHeader = true
		}
		reason := medication.ReasonDescription
		if reason == "" {
			reason = "N/A"
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", medication.Start.Format(dateLayout), medication.Description, reason)
	}
	if wroteHeader {
		b.WriteString("\n")
	}
}

func writeOutcomesTable(b *strings.Builder, patientID string, outcomes []models.OutcomeRecord) {
	wroteHeader := false
	for _, outcome := range outcomes {
		if outcome.Patient != patientID {
			continue
		}
		if !wroteHeader {
			b.WriteString("### Health Outcomes\n\n")
			b.WriteString("| Medication | Metric | Before | After | Change | % Change | Days Between |\n")
			b.WriteString("|------------|--------|--------|-------|--------|----------|-------------|\n")
			wroteHeader = true
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s%% | %d |\n",
			outcome.MedDescription,
			outcome.ObsDescription,
			formatFloat(outcome.PreValue),
			formatFloat(outcome.PostValue),
			formatFloat(outcome.Change),
			formatFloat(outcome.PercentChange),
			outcome.DaysBetween)
	}
	if wroteHeader {
		b.WriteString("\n")
	}
}

type timelineKey struct {
	MedCode string
	ObsCode string
}

func writeTimelineTables(b *strings.Builder, patientID string, timeline []models.TimelineRecord, maxObservations int) {
	groups := make(map[timelineKey][]models.TimelineRecord)
	keys := make([]timelineKey, 0)
	for _, record := range timeline {
		if record.Patient != patientID {
			continue
		}
		key := timelineKey{MedCode: record.MedCode, ObsCode: record.ObsCode}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MedCode != keys[j].MedCode {
			return keys[i].MedCode < keys[j].MedCode
		}
		return keys[i].ObsCode < keys[j].ObsCode
	})

	for _, key := range keys {
		group := groups[key]
		medDescription := group[0].MedDescription
		obsDescription := group[0].ObsDescription

		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DaysRelative < group[j].DaysRelative
		})
		group = sampleEvenly(group, maxObservations)

		fmt.Fprintf(b, "### Timeline: %s - %s\n\n", medDescription, obsDescription)
		b.WriteString("| Days from Start | Value | Date |\n")
		b.WriteString("|----------------|-------|------|\n")
		for _, record := range group {
			fmt.Fprintf(b, "| %d | %s | %s |\n", record.DaysRelative, formatFloat(record.Value), record.ObsDate.Format(dateLayout))
		}
		b.WriteString("\n")
	}
}

// sampleEvenly keeps at most max records: the first, the last, and
// evenly spaced points between them.
func sampleEvenly(records []models.TimelineRecord, max int) []models.TimelineRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[:1]
	}
	sampled := make([]models.TimelineRecord, 0, max)
	for i := 0; i < max; i++ {
		idx := i * (len(records) - 1) / (max - 1)
		sampled = append(sampled, records[idx])
	}
	return sampled
}

func formatFloat(v float64) string {
	if models.IsMissing(v) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
