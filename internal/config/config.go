/*
Startup configuration. Values come from the environment (optionally seeded
from a .env file); database credentials have no defaults and fail hard when
missing. Engine tuning parameters default to the values below and can be
overridden per deployment.
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stripfi/ysm/internal/state"
	"github.com/stripfi/ysm/internal/types"
)

// Config is everything the process needs to start.
type Config struct {
	LogLevel   string
	WebPort    string
	ConfigName string
	DB         state.DBConfig
	Engine     types.EngineParameters
}

// DefaultEngineParameters returns the engine tuning defaults.
func DefaultEngineParameters() types.EngineParameters {
	return types.EngineParameters{
		MaxIssuanceFeeBps:   500,
		SolverMaxIterations: 256,
		SolverEpsWad:        100_000_000,
		DriftToleranceWei:   1_000,
		SnapshotInterval:    time.Minute,
	}
}

// Load reads the process configuration from the environment. A .env file is
// used when present but is not required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, relying on OS environment variables")
	}

	cfg := &Config{
		LogLevel:   envOr("LOG_LEVEL", "info"),
		WebPort:    envOr("WEB_PORT", "8080"),
		ConfigName: envOr("CONFIG_NAME", "default"),
		Engine:     DefaultEngineParameters(),
	}

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER environment variable not set")
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME environment variable not set")
	}

	dbPort, err := envIntOr("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	cfg.DB = state.DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     dbUser,
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   dbName,
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}

	if v, err := envIntOr("SOLVER_MAX_ITERATIONS", cfg.Engine.SolverMaxIterations); err != nil {
		return nil, err
	} else {
		cfg.Engine.SolverMaxIterations = v
	}
	if v, err := envInt64Or("SOLVER_EPS_WAD", cfg.Engine.SolverEpsWad); err != nil {
		return nil, err
	} else {
		cfg.Engine.SolverEpsWad = v
	}
	if v, err := envInt64Or("DRIFT_TOLERANCE_WEI", cfg.Engine.DriftToleranceWei); err != nil {
		return nil, err
	} else {
		cfg.Engine.DriftToleranceWei = v
	}
	if v, err := envInt64Or("SNAPSHOT_INTERVAL_SECONDS", int64(cfg.Engine.SnapshotInterval/time.Second)); err != nil {
		return nil, err
	} else {
		cfg.Engine.SnapshotInterval = time.Duration(v) * time.Second
	}
	if v, err := envIntOr("MAX_ISSUANCE_FEE_BPS", int(cfg.Engine.MaxIssuanceFeeBps)); err != nil {
		return nil, err
	} else if v < 0 || v > 10_000 {
		return nil, fmt.Errorf("MAX_ISSUANCE_FEE_BPS out of range: %d", v)
	} else {
		cfg.Engine.MaxIssuanceFeeBps = uint32(v)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func envInt64Or(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
