package pipeline

import (
	"math"
	"sort"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

// DefaultTargetPostDays is the follow-up day the resolver aims for when
// picking the post-medication observation, roughly six months.
const DefaultTargetPostDays = 180

type outcomeKey struct {
	Patient        string
	MedCode        string
	MedDescription string
	ObsCode        string
}

// ResolveOutcomes reduces a timeline to at most one outcome per
// (patient, medication, metric) group.
//
// Per group: require at least two records; the pre point is the most
// recent observation at or before the medication start, the post point
// is the observation after start closest to targetDays (on a distance
// tie, the first one in ascending days-relative order wins; the source
// data never made the tie-break matter more than that). Groups missing
// either side are skipped without error; sparse real-world data is the
// norm, and partial outcomes would be misleading.
func ResolveOutcomes(timeline []models.TimelineRecord, targetDays int) []models.OutcomeRecord {
	if len(timeline) == 0 {
		return nil
	}
	if targetDays <= 0 {
		targetDays = DefaultTargetPostDays
	}

	groups := make(map[outcomeKey][]models.TimelineRecord)
	keys := make([]outcomeKey, 0)
	for _, record := range timeline {
		key := outcomeKey{
			Patient:        record.Patient,
			MedCode:        record.MedCode,
			MedDescription: record.MedDescription,
			ObsCode:        record.ObsCode,
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Patient != keys[j].Patient {
			return keys[i].Patient < keys[j].Patient
		}
		if keys[i].MedCode != keys[j].MedCode {
			return keys[i].MedCode < keys[j].MedCode
		}
		if keys[i].MedDescription != keys[j].MedDescription {
			return keys[i].MedDescription < keys[j].MedDescription
		}
		return keys[i].ObsCode < keys[j].ObsCode
	})

	var outcomes []models.OutcomeRecord
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		obsDescription := group[0].ObsDescription
		units := group[0].Units

		sorted := make([]models.TimelineRecord, len(group))
		copy(sorted, group)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].DaysRelative < sorted[j].DaysRelative
		})

		pre, ok := selectPre(sorted)
		if !ok {
			continue
		}
		post, ok := selectPost(sorted, targetDays)
		if !ok {
			continue
		}

		change := post.Value - pre.Value
		percentChange := change / pre.Value * 100
		if pre.Value == 0 {
			percentChange = math.NaN()
		}

		outcomes = append(outcomes, models.OutcomeRecord{
			Patient:        key.Patient,
			MedCode:        key.MedCode,
			MedDescription: key.MedDescription,
			ObsCode:        key.ObsCode,
			ObsDescription: obsDescription,
			PreValue:       pre.Value,
			PostValue:      post.Value,
			Change:         change,
			PercentChange:  percentChange,
			PreDate:        pre.ObsDate,
			PostDate:       post.ObsDate,
			DaysBetween:    post.DaysRelative,
			Units:          units,
		})
	}
	return outcomes
}

// selectPre picks the most recent observation at or before the
// medication start. The slice is sorted by DaysRelative, so that is the
// last record still at or below zero.
func selectPre(sorted []models.TimelineRecord) (models.TimelineRecord, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].DaysRelative <= 0 {
			return sorted[i], true
		}
	}
	return models.TimelineRecord{}, false
}

// selectPost picks the post-start observation closest to targetDays.
// Strict less-than keeps the first minimal record in scan order.
func selectPost(sorted []models.TimelineRecord, targetDays int) (models.TimelineRecord, bool) {
	best := models.TimelineRecord{}
	bestDistance := math.MaxInt
	found := false
	for _, record := range sorted {
		if record.DaysRelative <= 0 {
			continue
		}
		distance := record.DaysRelative - targetDays
		if distance < 0 {
			distance = -distance
		}
		if distance < bestDistance {
			best = record
			bestDistance = distance
			found = true
		}
	}
	return best, found
}

// MetricDescriptions returns the distinct observation descriptions over
// a set of outcomes, in first-appearance order. The persistence stage
// derives its summary JSON from this.
func MetricDescriptions(outcomes []models.OutcomeRecord) []string {
	return distinct(outcomes, func(o models.OutcomeRecord) string { return o.ObsDescription })
}

// MedicationDescriptions returns the distinct medication descriptions
// over a set of outcomes, in first-appearance order.
func MedicationDescriptions(outcomes []models.OutcomeRecord) []string {
	return distinct(outcomes, func(o models.OutcomeRecord) string { return o.MedDescription })
}

func distinct(outcomes []models.OutcomeRecord, field func(models.OutcomeRecord) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, outcome := range outcomes {
		value := field(outcome)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
