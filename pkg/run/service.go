package run

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-health/medoutcomes/pkg/cohort"
	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/kafka"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
	"github.com/veritas-health/medoutcomes/pkg/common/models"
	"github.com/veritas-health/medoutcomes/pkg/dataset"
	"github.com/veritas-health/medoutcomes/pkg/export"
	"github.com/veritas-health/medoutcomes/pkg/pipeline"
	"github.com/veritas-health/medoutcomes/pkg/report"
	"github.com/veritas-health/medoutcomes/pkg/storage"
	"github.com/veritas-health/medoutcomes/pkg/terminology"
)

// Service drives one batch run end to end: load, filter, derive, write,
// and optionally persist, cache and announce the result. Repository,
// cache and producer are all optional; a nil collaborator is skipped.
type Service struct {
	cfg      *config.Config
	catalog  terminology.Catalog
	repo     *storage.Repository
	cache    *storage.SummaryCache
	producer *kafka.Producer
}

// Outcome reports what one run produced.
type Outcome struct {
	RunID    uuid.UUID
	Summary  models.DatasetSummary
	Report   string
	Duration time.Duration
}

func NewService(cfg *config.Config, catalog terminology.Catalog) *Service {
	return &Service{
		cfg:     cfg,
		catalog: catalog.WithOverrides(cfg.DiabetesCodes, cfg.GlucoseCodes, cfg.VitalCodes),
	}
}

func (s *Service) WithRepository(repo *storage.Repository) *Service {
	s.repo = repo
	return s
}

func (s *Service) WithCache(cache *storage.SummaryCache) *Service {
	s.cache = cache
	return s
}

func (s *Service) WithProducer(producer *kafka.Producer) *Service {
	s.producer = producer
	return s
}

// Execute runs the whole batch. Only I/O failures surface as errors;
// sparse data never does. An empty cohort simply produces empty
// outputs, matching the totality contract of the core stages.
func (s *Service) Execute(ctx context.Context) (*Outcome, error) {
	started := time.Now()
	runID := uuid.New()
	log := logger.WithField("run_id", runID.String())

	source, err := dataset.Load(s.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"patients":     len(source.Patients),
		"conditions":   len(source.Conditions),
		"medications":  len(source.Medications),
		"observations": len(source.Observations),
	}).Info("Source tables loaded")

	selection := cohort.IdentifyDiabeticPatients(source.Conditions, s.catalog.DiabetesCodes)
	log.WithFields(map[string]interface{}{
		"cohort":         len(selection.Patients),
		"by_code":        selection.ByCode,
		"by_description": selection.ByDescription,
	}).Info("Diabetic cohort identified")

	filtered := cohort.FilterDataset(source, selection.Patients, s.catalog, s.cfg.IncludeComorbidities)
	filtered.Observations = cohort.FilterObservations(filtered.Observations, s.catalog, s.cfg.IncludeVitals)

	result := pipeline.Run(filtered.Medications, filtered.Observations, pipeline.Options{
		TargetPostDays: s.cfg.TargetPostDays,
	})
	summary := export.BuildSummary(filtered, result)
	log.WithFields(map[string]interface{}{
		"timeline_records": summary.NumTimelineRecords,
		"outcome_records":  summary.NumMedicationOutcomes,
	}).Info("Pipeline stages completed")

	if err := export.SaveAll(s.cfg.OutputDir, filtered, result, summary); err != nil {
		return nil, err
	}

	rendered := report.Format(filtered, result, summary, report.Options{
		MaxPatients:     s.cfg.ReportMaxPatients,
		MaxObservations: s.cfg.ReportMaxObservations,
	})
	if err := writeReport(s.cfg.ReportFile, rendered); err != nil {
		return nil, err
	}

	// Everything past this point is best effort: a dead broker or
	// database must not fail a batch whose files are already on disk.
	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, runID, summary, result.Outcomes); err != nil {
			log.WithError(err).Error("Failed to persist run")
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil {
			log.WithError(err).Error("Failed to cache summary")
		}
	}
	if s.producer != nil {
		event := models.RunEvent{
			RunID:       runID.String(),
			CompletedAt: time.Now().UTC(),
			Patients:    summary.NumDiabeticPatients,
			Timeline:    summary.NumTimelineRecords,
			Outcomes:    summary.NumMedicationOutcomes,
		}
		if err := s.producer.PublishRunEvent(ctx, event); err != nil {
			log.WithError(err).Error("Failed to publish run event")
		}
	}

	return &Outcome{
		RunID:    runID,
		Summary:  summary,
		Report:   rendered,
		Duration: time.Since(started),
	}, nil
}

func writeReport(path, rendered string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(rendered), 0o644)
}
