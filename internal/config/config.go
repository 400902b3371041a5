package config

import (
	"os"
	"strconv"
	"strings"

	"gammastack/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Fit        FitConfig
	Ledger     LedgerConfig
	Paths      PathConfig
	Simulation SimulationConfig
	LogLevel   string
}

// FitConfig holds optimiser settings
type FitConfig struct {
	Method        string
	MaxIterations int
	Tolerance     float64
	// Errors enables the Hessian based error estimate after the fit
	Errors bool
}

// LedgerConfig holds the fit ledger connection settings
type LedgerConfig struct {
	Driver string
	DSN    string
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir    string
	InfoWorkbook string
}

// SimulationConfig holds the settings of the simulate command
type SimulationConfig struct {
	Seed         uint64
	Observations int
	Livetime     float64
}

// Supported optimiser methods
const (
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
)

// Supported ledger drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Fit:        *loadFitConfig(),
		Ledger:     *loadLedgerConfig(),
		Paths:      *loadPathConfig(),
		Simulation: *loadSimulationConfig(),
		LogLevel:   strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when no variable is set
func Default() *Config {
	config := &Config{}
	config.Fit = FitConfig{Method: MethodNelderMead, MaxIterations: 2000, Tolerance: 1e-6, Errors: true}
	config.Ledger = LedgerConfig{Driver: DriverSQLite, DSN: "gammastack.db"}
	config.Paths = PathConfig{OutputDir: "."}
	config.Simulation = SimulationConfig{Seed: 42, Observations: 3, Livetime: 1800}
	config.LogLevel = "INFO"
	return config
}

func loadFitConfig() *FitConfig {
	d := Default().Fit
	return &FitConfig{
		Method:        strings.ToLower(getEnvOrDefault("FIT_METHOD", d.Method)),
		MaxIterations: getEnvIntOrDefault("FIT_MAX_ITERATIONS", d.MaxIterations),
		Tolerance:     getEnvFloatOrDefault("FIT_TOLERANCE", d.Tolerance),
		Errors:        getEnvBoolOrDefault("FIT_ERRORS", d.Errors),
	}
}

func loadLedgerConfig() *LedgerConfig {
	d := Default().Ledger
	return &LedgerConfig{
		Driver: strings.ToLower(getEnvOrDefault("LEDGER_DRIVER", d.Driver)),
		DSN:    getEnvOrDefault("LEDGER_DSN", d.DSN),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		OutputDir:    getEnvOrDefault("OUTPUT_DIR", "."),
		InfoWorkbook: getEnvOrDefault("INFO_WORKBOOK", ""),
	}
}

func loadSimulationConfig() *SimulationConfig {
	d := Default().Simulation
	return &SimulationConfig{
		Seed:         uint64(getEnvIntOrDefault("SIM_SEED", int(d.Seed))),
		Observations: getEnvIntOrDefault("SIM_OBSERVATIONS", d.Observations),
		Livetime:     getEnvFloatOrDefault("SIM_LIVETIME", d.Livetime),
	}
}

func validateConfig(config *Config) error {
	switch config.Fit.Method {
	case MethodNelderMead, MethodBFGS:
	default:
		return errors.ConfigInvalid("FIT_METHOD must be nelder-mead or bfgs")
	}
	if config.Fit.MaxIterations <= 0 {
		return errors.ConfigInvalid("FIT_MAX_ITERATIONS must be positive")
	}
	if !(config.Fit.Tolerance > 0) {
		return errors.ConfigInvalid("FIT_TOLERANCE must be positive")
	}
	switch config.Ledger.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return errors.ConfigInvalid("LEDGER_DRIVER must be sqlite or postgres")
	}
	if config.Ledger.DSN == "" {
		return errors.ConfigInvalid("LEDGER_DSN is required")
	}
	if config.Simulation.Observations <= 0 || !(config.Simulation.Livetime > 0) {
		return errors.ConfigInvalid("SIM_OBSERVATIONS and SIM_LIVETIME must be positive")
	}
	switch config.LogLevel {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
	default:
		return errors.ConfigInvalid("LOG_LEVEL must be one of ERROR, WARN, INFO, DEBUG, TRACE")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
