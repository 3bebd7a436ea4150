package main

import (
	"context"
	"os"

	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/database"
	"github.com/veritas-health/medoutcomes/pkg/common/kafka"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
	"github.com/veritas-health/medoutcomes/pkg/run"
	"github.com/veritas-health/medoutcomes/pkg/storage"
	"github.com/veritas-health/medoutcomes/pkg/terminology"
)

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.CatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to default code catalog")
	}

	service := run.NewService(cfg, catalog)

	if cfg.PersistResults {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
		}
		repo := storage.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate outcome tables")
		}
		service.WithRepository(repo)
		service.WithCache(storage.NewSummaryCache(database.GetRedis(), cfg.SummaryCacheTTL))
		defer database.ClosePostgres()
		defer database.CloseRedis()
	}

	if cfg.PublishEvents {
		producer := kafka.NewProducer(cfg.KafkaTopic)
		service.WithProducer(producer)
		defer producer.Close()
	}

	outcome, err := service.Execute(context.Background())
	if err != nil {
		logger.Log.WithError(err).Error("Pipeline run failed")
		os.Exit(1)
	}

	logger.Log.WithFields(map[string]interface{}{
		"run_id":            outcome.RunID.String(),
		"duration":          outcome.Duration.String(),
		"diabetic_patients": outcome.Summary.NumDiabeticPatients,
		"timeline_records":  outcome.Summary.NumTimelineRecords,
		"outcome_records":   outcome.Summary.NumMedicationOutcomes,
		"output_dir":        cfg.OutputDir,
	}).Info("Pipeline run completed")
}
