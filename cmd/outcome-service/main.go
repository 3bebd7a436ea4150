package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/database"
	"github.com/veritas-health/medoutcomes/pkg/common/kafka"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
	"github.com/veritas-health/medoutcomes/pkg/run"
	"github.com/veritas-health/medoutcomes/pkg/storage"
	"github.com/veritas-health/medoutcomes/pkg/terminology"
)

type OutcomeService struct {
	cfg     *config.Config
	runner  *run.Service
	repo    *storage.Repository
	cache   *storage.SummaryCache
	running sync.Mutex

	// reportMu guards report; handlers run on separate goroutines.
	reportMu sync.RWMutex
	report   string
}

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.CatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to default code catalog")
	}

	runner := run.NewService(cfg, catalog)
	service := &OutcomeService{cfg: cfg, runner: runner}

	if cfg.PersistResults {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
		}
		service.repo = storage.NewRepository(db)
		if err := service.repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate outcome tables")
		}
		service.cache = storage.NewSummaryCache(database.GetRedis(), cfg.SummaryCacheTTL)
		runner.WithRepository(service.repo)
		runner.WithCache(service.cache)
	}
	if cfg.PublishEvents {
		producer := kafka.NewProducer(cfg.KafkaTopic)
		runner.WithProducer(producer)
		defer producer.Close()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/pipeline/run", service.handleRun).Methods("POST")
	router.HandleFunc("/api/v1/pipeline/summary", service.handleSummary).Methods("GET")
	router.HandleFunc("/api/v1/report", service.handleReport).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Outcome Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Outcome Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	database.ClosePostgres()
	database.CloseRedis()
	logger.Log.Info("Outcome Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *OutcomeService) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		http.Error(w, "a pipeline run is already in progress", http.StatusConflict)
		return
	}
	defer s.running.Unlock()

	outcome, err := s.runner.Execute(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.reportMu.Lock()
	s.report = outcome.Report
	s.reportMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":      outcome.RunID.String(),
		"duration_ms": outcome.Duration.Milliseconds(),
		"summary":     outcome.Summary,
	})
}

func (s *OutcomeService) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.cache != nil {
		if summary, err := s.cache.Get(ctx); err == nil {
			writeSummary(w, summary)
			return
		}
	}
	if s.repo != nil {
		summary, err := s.repo.LatestSummary(ctx)
		if errors.Is(err, storage.ErrNoRuns) {
			http.Error(w, "no pipeline runs recorded", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeSummary(w, summary)
		return
	}
	http.Error(w, "persistence disabled; run the pipeline and read the summary file", http.StatusNotFound)
}

func (s *OutcomeService) handleReport(w http.ResponseWriter, r *http.Request) {
	s.reportMu.RLock()
	report := s.report
	s.reportMu.RUnlock()

	if report == "" {
		http.Error(w, "no report generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(report))
}

func writeSummary(w http.ResponseWriter, summary interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
