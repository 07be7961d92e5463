// Package config has the configuration file for the app
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment the service runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the short environment name
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short names and their long aliases
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

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Port             string
	Address          string
	Env              Environment
	LogLevel         string
	LogDir           string
	LogRetentionDays int   // Number of days to keep log files
	MaxLogFileSize   int64 // Maximum log file size in bytes
	MaxRequestBody   int64 // Maximum request body size in bytes
	MaxHeaderSize    int64 // Maximum header size in bytes

	// openFDA
	OpenFDABaseURL    string
	OpenFDAAPIKey     string
	HTTPClientTimeout time.Duration
	FetchRetries      int
	RetryDelay        time.Duration

	// Health data
	CacheTTL             time.Duration
	QuickBatchSize       int
	FullBatchSize        int
	EnforcementBatchSize int
	SearchLimit          int
	SearchDebounce       time.Duration
	WarmInterval         time.Duration

	// Persistence
	DatabaseDriver string
	DatabaseURL    string

	// HTTP surface
	AuthEmailHeader    string
	CORSAllowedOrigins []string
	// Peers allowed to set forwarding and identity headers
	TrustedProxies []netip.Prefix
}

// Load reads a .env file when present, then loads and validates configuration from
// environment variables. Variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	var parseErrs []error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		d, err := getDurationEnvWithDefault(key, defaultValue)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	trusted, err := parseTrustedProxies(getEnvWithDefault("TRUSTED_PROXIES", "127.0.0.1/32,::1/128"))
	if err != nil {
		parseErrs = append(parseErrs, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err))
	}

	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8000"),
		Address:          getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:              env,
		LogLevel:         strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:           getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionDays: getIntEnvWithDefault("LOG_RETENTION_DAYS", 28),
		MaxLogFileSize:   getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:   getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:    getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		OpenFDABaseURL:    strings.TrimRight(getEnvWithDefault("OPENFDA_BASE_URL", "https://api.fda.gov"), "/"),
		OpenFDAAPIKey:     os.Getenv("OPENFDA_API_KEY"),
		HTTPClientTimeout: duration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		FetchRetries:      getIntEnvWithDefault("FETCH_RETRIES", 3),
		RetryDelay:        duration("RETRY_DELAY", time.Second),

		CacheTTL:             duration("CACHE_TTL", 5*time.Minute),
		QuickBatchSize:       getIntEnvWithDefault("QUICK_BATCH_SIZE", 300),
		FullBatchSize:        getIntEnvWithDefault("FULL_BATCH_SIZE", 1000),
		EnforcementBatchSize: getIntEnvWithDefault("ENFORCEMENT_BATCH_SIZE", 150),
		SearchLimit:          getIntEnvWithDefault("SEARCH_LIMIT", 200),
		SearchDebounce:       duration("SEARCH_DEBOUNCE", 800*time.Millisecond),
		WarmInterval:         duration("WARM_INTERVAL", 5*time.Minute),

		DatabaseDriver: strings.ToLower(getEnvWithDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:    getEnvWithDefault("DATABASE_URL", "farmavigil.db"),

		AuthEmailHeader:    getEnvWithDefault("AUTH_EMAIL_HEADER", "X-Forwarded-Email"),
		CORSAllowedOrigins: splitList(getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*")),
		TrustedProxies:     trusted,
	}

	if err := errors.Join(parseErrs...); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs locally
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment || c.Env == EnvTest
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

	if err := validateLogRetentionDays(cfg.LogRetentionDays); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_DAYS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateBaseURL(cfg.OpenFDABaseURL); err != nil {
		return fmt.Errorf("invalid OPENFDA_BASE_URL: %w", err)
	}

	if cfg.FetchRetries < 1 || cfg.FetchRetries > 10 {
		return fmt.Errorf("invalid FETCH_RETRIES: must be between 1 and 10, got: %d", cfg.FetchRetries)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"HTTP_CLIENT_TIMEOUT", cfg.HTTPClientTimeout},
		{"RETRY_DELAY", cfg.RetryDelay},
		{"CACHE_TTL", cfg.CacheTTL},
		{"SEARCH_DEBOUNCE", cfg.SearchDebounce},
		{"WARM_INTERVAL", cfg.WarmInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got: %s", d.name, d.value)
		}
	}

	batches := []struct {
		name  string
		value int
	}{
		{"QUICK_BATCH_SIZE", cfg.QuickBatchSize},
		{"FULL_BATCH_SIZE", cfg.FullBatchSize},
		{"ENFORCEMENT_BATCH_SIZE", cfg.EnforcementBatchSize},
		{"SEARCH_LIMIT", cfg.SearchLimit},
	}
	for _, b := range batches {
		if err := validateBatchSize(b.value); err != nil {
			return fmt.Errorf("invalid %s: %w", b.name, err)
		}
	}

	if err := validateDatabase(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("invalid DATABASE_DRIVER/DATABASE_URL: %w", err)
	}

	if strings.TrimSpace(cfg.AuthEmailHeader) == "" {
		return fmt.Errorf("invalid AUTH_EMAIL_HEADER: cannot be empty")
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

	// Check for privileged ports
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

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
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

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionDays validates the LOG_RETENTION_DAYS environment variable
func validateLogRetentionDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be positive, got: %d", days)
	}

	if days > 366 {
		return fmt.Errorf("LOG_RETENTION_DAYS is too large (max 366 days), got: %d", days)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateBaseURL requires an absolute http(s) URL
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got: %s", raw)
	}
	return nil
}

// validateBatchSize keeps limits inside what openFDA accepts per request
func validateBatchSize(size int) error {
	if size < 1 || size > 1000 {
		return fmt.Errorf("must be between 1 and 1000, got: %d", size)
	}
	return nil
}

// validateDatabase checks the driver name and that a DSN is present
func validateDatabase(driver, dsn string) error {
	if driver != DriverSQLite && driver != DriverPostgres {
		return fmt.Errorf("DATABASE_DRIVER must be one of: [%s %s], got: %s", DriverSQLite, DriverPostgres, driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
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

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault gets an environment variable as a duration ("30s", "5m").
// Values must carry a unit; a bare integer such as "300" is rejected.
func getDurationEnvWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil && value != "0" {
		return defaultValue, fmt.Errorf("invalid %s: %q has no unit, use e.g. %q", key, value, value+"s")
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseTrustedProxies reads a comma-separated list of CIDRs. A bare IP is a single-host prefix.
func parseTrustedProxies(value string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range splitList(value) {
		if addr, err := netip.ParseAddr(item); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(item)
		if err != nil {
			return nil, fmt.Errorf("%q is not an IP or CIDR", item)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// IsTrustedProxy reports whether addr falls inside one of the trusted prefixes
func (c *Config) IsTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range c.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_DAYS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"OPENFDA_BASE_URL",
		"OPENFDA_API_KEY",
		"HTTP_CLIENT_TIMEOUT",
		"FETCH_RETRIES",
		"RETRY_DELAY",
		"CACHE_TTL",
		"QUICK_BATCH_SIZE",
		"FULL_BATCH_SIZE",
		"ENFORCEMENT_BATCH_SIZE",
		"SEARCH_LIMIT",
		"SEARCH_DEBOUNCE",
		"WARM_INTERVAL",
		"DATABASE_DRIVER",
		"DATABASE_URL",
		"AUTH_EMAIL_HEADER",
		"CORS_ALLOWED_ORIGINS",
		"TRUSTED_PROXIES",
	}
}
