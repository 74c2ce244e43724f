// Package config has the configuration of the forecast service and its engine
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment of the service
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the environment name
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps an ENV value, including long aliases, to an Environment
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", value)
}

// Population selection modes accepted by POPULATION_MODE
var populationModes = []string{"auto", "prevalence_based", "incidence_based"}

// EngineConfig holds the tolerances and policies of the allocation engine
type EngineConfig struct {
	ShareSumTolerance           float64
	MaxRenormalizationDeviation float64
	SmallDeficitThreshold       float64 // deficits up to this size are renormalized, larger ones are kept as patient loss
	AllowShareRenormalization   bool
	AllowEqualRegimenSplit      bool
	ConservationTolerance       float64
	PopulationMode              string
	MaxPopulation               float64
	PopulationWarningThreshold  float64
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ShareSumTolerance:           0.01,
		MaxRenormalizationDeviation: 0.15,
		SmallDeficitThreshold:       0.05,
		AllowShareRenormalization:   true,
		AllowEqualRegimenSplit:      true,
		ConservationTolerance:       0.01,
		PopulationMode:              "auto",
		MaxPopulation:               350_000_000,
		PopulationWarningThreshold:  100_000_000,
	}
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	InputDir        string
	TaxonomyFile    string
	AssumptionsFile string
	OverridesFile   string
	RefreshInterval time.Duration
	HorizonYears    int

	Engine EngineConfig
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	defaults := DefaultEngineConfig()

	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		InputDir:        getEnvWithDefault("INPUT_DIR", "files"),
		TaxonomyFile:    getEnvWithDefault("TAXONOMY_FILE", "taxonomy.json"),
		AssumptionsFile: getEnvWithDefault("ASSUMPTIONS_FILE", "assumptions.json"),
		OverridesFile:   os.Getenv("OVERRIDES_FILE"),
		RefreshInterval: time.Duration(getIntEnvWithDefault("REFRESH_INTERVAL_MINUTES", 60)) * time.Minute,
		HorizonYears:    getIntEnvWithDefault("HORIZON_YEARS", 5),

		Engine: EngineConfig{
			ShareSumTolerance:           getFloatEnvWithDefault("SHARE_SUM_TOLERANCE", defaults.ShareSumTolerance),
			MaxRenormalizationDeviation: getFloatEnvWithDefault("MAX_RENORMALIZATION_DEVIATION", defaults.MaxRenormalizationDeviation),
			SmallDeficitThreshold:       getFloatEnvWithDefault("SMALL_DEFICIT_THRESHOLD", defaults.SmallDeficitThreshold),
			AllowShareRenormalization:   getBoolEnvWithDefault("ALLOW_SHARE_RENORMALIZATION", defaults.AllowShareRenormalization),
			AllowEqualRegimenSplit:      getBoolEnvWithDefault("ALLOW_EQUAL_REGIMEN_SPLIT", defaults.AllowEqualRegimenSplit),
			ConservationTolerance:       getFloatEnvWithDefault("CONSERVATION_TOLERANCE", defaults.ConservationTolerance),
			PopulationMode:              getEnvWithDefault("POPULATION_MODE", defaults.PopulationMode),
			MaxPopulation:               getFloatEnvWithDefault("MAX_POPULATION", defaults.MaxPopulation),
			PopulationWarningThreshold:  getFloatEnvWithDefault("POPULATION_WARNING_THRESHOLD", defaults.PopulationWarningThreshold),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if cfg.RefreshInterval < time.Minute {
		return fmt.Errorf("invalid REFRESH_INTERVAL_MINUTES: must be at least 1 minute, got: %s", cfg.RefreshInterval)
	}

	if cfg.HorizonYears < 0 || cfg.HorizonYears > 50 {
		return fmt.Errorf("invalid HORIZON_YEARS: must be between 0 and 50, got: %d", cfg.HorizonYears)
	}

	if err := ValidateEngineConfig(cfg.Engine); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	return nil
}

// ValidateEngineConfig validates the allocation engine tolerances
func ValidateEngineConfig(e EngineConfig) error {
	if e.ShareSumTolerance <= 0 || e.ShareSumTolerance >= 1 {
		return fmt.Errorf("SHARE_SUM_TOLERANCE must be in (0, 1), got: %g", e.ShareSumTolerance)
	}

	if e.MaxRenormalizationDeviation < e.ShareSumTolerance || e.MaxRenormalizationDeviation >= 1 {
		return fmt.Errorf("MAX_RENORMALIZATION_DEVIATION must be in [SHARE_SUM_TOLERANCE, 1), got: %g", e.MaxRenormalizationDeviation)
	}

	if e.SmallDeficitThreshold < 0 || e.SmallDeficitThreshold > e.MaxRenormalizationDeviation {
		return fmt.Errorf("SMALL_DEFICIT_THRESHOLD must be in [0, MAX_RENORMALIZATION_DEVIATION], got: %g", e.SmallDeficitThreshold)
	}

	if e.ConservationTolerance <= 0 || e.ConservationTolerance >= 1 {
		return fmt.Errorf("CONSERVATION_TOLERANCE must be in (0, 1), got: %g", e.ConservationTolerance)
	}

	validMode := false
	for _, mode := range populationModes {
		if e.PopulationMode == mode {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("POPULATION_MODE must be one of: %v, got: %s", populationModes, e.PopulationMode)
	}

	if e.MaxPopulation <= 0 {
		return fmt.Errorf("MAX_POPULATION must be positive, got: %g", e.MaxPopulation)
	}

	if e.PopulationWarningThreshold <= 0 || e.PopulationWarningThreshold > e.MaxPopulation {
		return fmt.Errorf("POPULATION_WARNING_THRESHOLD must be in (0, MAX_POPULATION], got: %g", e.PopulationWarningThreshold)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTest:
		return nil
	case "":
		return fmt.Errorf("ENV cannot be empty")
	}

	return fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"INPUT_DIR",
		"TAXONOMY_FILE",
		"ASSUMPTIONS_FILE",
		"OVERRIDES_FILE",
		"REFRESH_INTERVAL_MINUTES",
		"HORIZON_YEARS",
		"SHARE_SUM_TOLERANCE",
		"MAX_RENORMALIZATION_DEVIATION",
		"SMALL_DEFICIT_THRESHOLD",
		"ALLOW_SHARE_RENORMALIZATION",
		"ALLOW_EQUAL_REGIMEN_SPLIT",
		"CONSERVATION_TOLERANCE",
		"POPULATION_MODE",
		"MAX_POPULATION",
		"POPULATION_WARNING_THRESHOLD",
	}
}
