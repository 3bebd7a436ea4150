package database

import (
	"fmt"
	"sync"

	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
)

// GetPostgres returns the shared connection to the outcome store, the
// Postgres database that holds persisted pipeline runs and their
// medication outcome rows. Only needed when PERSIST_RESULTS is set;
// file-only deployments never open it.
func GetPostgres() (*gorm.DB, error) {
	var err error
	dbOnce.Do(func() {
		cfg := config.Load()
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.PostgresHost,
			cfg.PostgresUser,
			cfg.PostgresPassword,
			cfg.PostgresDB,
			cfg.PostgresPort,
			cfg.PostgresSSLMode,
		)

		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			logger.Log.WithError(err).WithField("database", cfg.PostgresDB).
				Error("Failed to connect to outcome store")
			return
		}

		logger.Log.WithField("database", cfg.PostgresDB).Info("Connected to outcome store")
	})

	return db, err
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
