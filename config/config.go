// Package config loads the service configuration from environment variables
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MLotfy88/Medi-Tempo/storage"
)

// Environment is the deployment environment
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// ParseEnvironment accepts the short and long forms of each environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
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
	MaxRequestBody    int64 // Maximum JSON request body in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes
	MaxImportBody     int64 // Maximum CSV upload in bytes

	StorageDriver string
	DataPath      string
	DatabaseURL   string

	ImportDir      string
	ImportInterval time.Duration
	ImportURL      string
	ImportTimes    string
	StaleAfter     time.Duration

	DosageRulesFile string

	CORSAllowedOrigins []string
}

// StorageOptions returns the options for storage.Open
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:      c.StorageDriver,
		Path:        c.DataPath,
		DatabaseURL: c.DatabaseURL,
	}
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB
		MaxImportBody:     getInt64EnvWithDefault("MAX_IMPORT_BODY", 10485760),    // 10MB

		StorageDriver: strings.ToLower(getEnvWithDefault("STORAGE_DRIVER", storage.DriverFile)),
		DataPath:      os.Getenv("DATA_PATH"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		ImportDir:      os.Getenv("IMPORT_DIR"),
		ImportInterval: getDurationEnvWithDefault("IMPORT_INTERVAL", 5*time.Minute),
		ImportURL:      os.Getenv("IMPORT_URL"),
		ImportTimes:    getEnvWithDefault("IMPORT_TIMES", "06:00;18:00"),
		StaleAfter:     getDurationEnvWithDefault("STALE_AFTER", 24*time.Hour),

		DosageRulesFile: os.Getenv("DOSAGE_RULES_FILE"),

		CORSAllowedOrigins: splitList(getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*")),
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

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxImportBody, "MAX_IMPORT_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_IMPORT_BODY: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateStorage(cfg); err != nil {
		return fmt.Errorf("invalid STORAGE_DRIVER: %w", err)
	}

	if err := validateImport(cfg); err != nil {
		return fmt.Errorf("invalid import settings: %w", err)
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("invalid CORS_ALLOWED_ORIGINS: at least one origin is required")
	}

	if cfg.StaleAfter <= 0 {
		return fmt.Errorf("invalid STALE_AFTER: must be positive, got: %s", cfg.StaleAfter)
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

	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

func validateLogLevel(logLevel string) error {
	switch logLevel {
	case "debug", "info", "warn", "error":
		return nil
	case "":
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: [debug info warn error], got: %s", logLevel)
	}
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

// validateStorage checks the driver name and the settings it depends on
func validateStorage(cfg *Config) error {
	switch cfg.StorageDriver {
	case storage.DriverMemory, storage.DriverFile, storage.DriverSQLite:
		return nil
	case storage.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("must be one of: [memory file sqlite postgres], got: %s", cfg.StorageDriver)
	}
}

func validateImport(cfg *Config) error {
	if cfg.ImportDir != "" && cfg.ImportInterval < time.Second {
		return fmt.Errorf("IMPORT_INTERVAL must be at least 1s, got: %s", cfg.ImportInterval)
	}

	if cfg.ImportURL != "" {
		u, err := url.Parse(cfg.ImportURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("IMPORT_URL must be an absolute http(s) URL, got: %s", cfg.ImportURL)
		}
	}

	for _, at := range strings.Split(cfg.ImportTimes, ";") {
		if _, err := time.Parse("15:04", strings.TrimSpace(at)); err != nil {
			return fmt.Errorf("IMPORT_TIMES entries must be HH:MM, got: %q", at)
		}
	}

	return nil
}

// splitList reads a comma-separated value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

// getDurationEnvWithDefault parses a Go duration such as "90s" or "6h".
// Malformed values yield -1 so validation reports them.
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return -1
	}
	return d
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
		"MAX_IMPORT_BODY",
		"STORAGE_DRIVER",
		"DATA_PATH",
		"DATABASE_URL",
		"IMPORT_DIR",
		"IMPORT_INTERVAL",
		"IMPORT_URL",
		"IMPORT_TIMES",
		"STALE_AFTER",
		"DOSAGE_RULES_FILE",
		"CORS_ALLOWED_ORIGINS",
	}
}
