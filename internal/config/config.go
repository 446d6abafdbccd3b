// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file of solver defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fleetspan/internal/opt"
)

type Config struct {
	Port               string
	DatabaseURL        string
	DBMigrate          bool
	RedisURL           string
	WebhookURL         string
	WebhookSecret      string
	WebhookMaxAttempts int
	WebhookRPS         float64
	LogLevel           string
	// AuthMode guards the admin endpoints: off (default) or hmac.
	AuthMode       string
	AuthHMACSecret string
	// SolverFile is the YAML file Solver was read from, if any.
	SolverFile string
	Solver     opt.Config
}

// Load reads .env files (missing ones are ignored), then the environment.
// When FLEETSPAN_CONFIG names a file its solver section overrides the
// built-in defaults.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}
	c := Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMigrate:      isTrue(os.Getenv("DB_MIGRATE")),
		RedisURL:       os.Getenv("REDIS_URL"),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AuthMode:       getEnv("AUTH_MODE", "off"),
		AuthHMACSecret: os.Getenv("AUTH_HMAC_SECRET"),
		SolverFile:     os.Getenv("FLEETSPAN_CONFIG"),
		Solver:         opt.DefaultConfig(),
	}
	var err error
	if c.WebhookMaxAttempts, err = intEnv("WEBHOOK_MAX_ATTEMPTS", 10); err != nil {
		return Config{}, err
	}
	if c.WebhookRPS, err = floatEnv("WEBHOOK_RPS", 5); err != nil {
		return Config{}, err
	}
	if c.SolverFile != "" {
		if c.Solver, err = LoadSolver(c.SolverFile); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// solverFile is the YAML layout of FLEETSPAN_CONFIG.
type solverFile struct {
	Solver opt.Config `yaml:"solver"`
}

// LoadSolver reads solver settings from path on top of opt.DefaultConfig.
func LoadSolver(path string) (opt.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return opt.Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	f := solverFile{Solver: opt.DefaultConfig()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return opt.Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if f.Solver.Iterations < 0 || f.Solver.TimeBudget < 0 {
		return opt.Config{}, fmt.Errorf("config: %q: iterations and time budget must not be negative", path)
	}
	return f.Solver, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s=%q: want a positive integer", key, v)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("config: %s=%q: want a positive number", key, v)
	}
	return f, nil
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
