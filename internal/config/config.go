package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string

	// DataDir is the root of the local file store (uploads, exports,
	// training files). ModelsDir holds trained model checkpoints.
	DataDir   string
	ModelsDir string

	// DetectorConfig points at the YAML label mapping for the
	// detector; defaults apply when the file does not exist.
	DetectorConfig string

	MigrationsDir string

	// RetentionYears is the review horizon added when computing a
	// case's retention date.
	RetentionYears int

	// Workers is the size of the background task pool.
	Workers int
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "dev"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWKSURL:        getEnv("JWKS_URL", ""),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		DataDir:        getEnv("DATA_DIR", "data"),
		ModelsDir:      getEnv("MODELS_DIR", "data/models"),
		DetectorConfig: getEnv("DETECTOR_CONFIG", "detector.yaml"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),
		RetentionYears: getEnvInt("RETENTION_YEARS", 6),
		Workers:        getEnvInt("TASK_WORKERS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
