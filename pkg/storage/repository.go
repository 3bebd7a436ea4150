package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

var ErrNoRuns = errors.New("no pipeline runs recorded")

// OutcomeRow is the persisted form of one OutcomeRecord, tied to the
// run that produced it.
type OutcomeRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID          uuid.UUID `gorm:"type:uuid;index"`
	Patient        string    `gorm:"index"`
	MedCode        string
	MedDescription string
	ObsCode        string
	ObsDescription string
	PreValue       float64
	PostValue      float64
	Change         float64
	PercentChange  float64
	PreDate        time.Time
	PostDate       time.Time
	DaysBetween    int
	Units          string
	CreatedAt      time.Time
}

func (OutcomeRow) TableName() string { return "medication_outcomes" }

// RunRow records one pipeline run with its summary.
type RunRow struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Summary   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"index"`
}

func (RunRow) TableName() string { return "pipeline_runs" }

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunRow{}, &OutcomeRow{})
}

// SaveRun persists a run's summary and outcomes in one transaction.
func (r *Repository) SaveRun(ctx context.Context, runID uuid.UUID, summary models.DatasetSummary, outcomes []models.OutcomeRecord) error {
	summaryMap, err := summaryToMap(summary)
	if err != nil {
		return err
	}

	rows := make([]OutcomeRow, 0, len(outcomes))
	for _, outcome := range outcomes {
		rows = append(rows, OutcomeRow{
			ID:             uuid.New(),
			RunID:          runID,
			Patient:        outcome.Patient,
			MedCode:        outcome.MedCode,
			MedDescription: outcome.MedDescription,
			ObsCode:        outcome.ObsCode,
			ObsDescription: outcome.ObsDescription,
			PreValue:       outcome.PreValue,
			PostValue:      outcome.PostValue,
			Change:         outcome.Change,
			PercentChange:  outcome.PercentChange,
			PreDate:        outcome.PreDate,
			PostDate:       outcome.PostDate,
			DaysBetween:    outcome.DaysBetween,
			Units:          outcome.Units,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&RunRow{ID: runID, Summary: summaryMap, CreatedAt: time.Now().UTC()}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// LatestSummary returns the summary of the most recent run.
func (r *Repository) LatestSummary(ctx context.Context) (models.DatasetSummary, error) {
	var run RunRow
	result := r.db.WithContext(ctx).Order("created_at desc").First(&run)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.DatasetSummary{}, ErrNoRuns
	}
	if result.Error != nil {
		return models.DatasetSummary{}, result.Error
	}
	return summaryFromMap(run.Summary)
}

// OutcomesForRun lists the persisted outcomes of one run.
func (r *Repository) OutcomesForRun(ctx context.Context, runID uuid.UUID, limit int) ([]OutcomeRow, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []OutcomeRow
	result := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("patient, med_code, obs_code").
		Limit(limit).
		Find(&rows)
	return rows, result.Error
}

func summaryToMap(summary models.DatasetSummary) (datatypes.JSONMap, error) {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil, err
	}
	return datatypes.JSONMap(m), nil
}

func summaryFromMap(m datatypes.JSONMap) (models.DatasetSummary, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return models.DatasetSummary{}, err
	}
	var summary models.DatasetSummary
	if err := json.Unmarshal(encoded, &summary); err != nil {
		return models.DatasetSummary{}, err
	}
	return summary, nil
}
