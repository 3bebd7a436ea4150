package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pipeline
	DataDir              string
	OutputDir            string
	ReportFile           string
	TargetPostDays       int
	IncludeComorbidities bool
	IncludeVitals        bool

	// Code lists (comma-separated in the environment)
	DiabetesCodes []string
	GlucoseCodes  []string
	VitalCodes    []string
	CatalogPath   string

	// Report
	ReportMaxPatients     int
	ReportMaxObservations int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PersistResults   bool

	// Redis
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	SummaryCacheTTL time.Duration

	// Kafka
	KafkaBrokers  []string
	KafkaTopic    string
	PublishEvents bool
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		DataDir:              getEnv("DATA_DIR", "data/siyeh-synthetic-medical-data/data"),
		OutputDir:            getEnv("OUTPUT_DIR", "data/processed"),
		ReportFile:           getEnv("REPORT_FILE", "data/llm_input_data.txt"),
		TargetPostDays:       getIntEnv("TARGET_POST_DAYS", 180),
		IncludeComorbidities: getBoolEnv("INCLUDE_COMORBIDITIES", false),
		IncludeVitals:        getBoolEnv("INCLUDE_VITALS", false),

		DiabetesCodes: getStringSliceEnv("DIABETES_CODES", nil),
		GlucoseCodes:  getStringSliceEnv("GLUCOSE_CODES", nil),
		VitalCodes:    getStringSliceEnv("VITAL_CODES", nil),
		CatalogPath:   getEnv("CODE_CATALOG_PATH", ""),

		ReportMaxPatients:     getIntEnv("REPORT_MAX_PATIENTS", 50),
		ReportMaxObservations: getIntEnv("REPORT_MAX_OBSERVATIONS", 5),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "medoutcomes"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "medoutcomes123"),
		PostgresDB:       getEnv("POSTGRES_DB", "medoutcomes"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PersistResults:   getBoolEnv("PERSIST_RESULTS", false),

		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		SummaryCacheTTL: getDuration("SUMMARY_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:  getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "medoutcomes.runs"),
		PublishEvents: getBoolEnv("PUBLISH_EVENTS", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
