// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Remote gateway kinds.
const (
	RemotePostgREST = "postgrest"
	RemoteSQL       = "sql"
)

// Config holds the application configuration.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	Cache        CacheConfig
	Remote       RemoteConfig
	Connectivity ConnectivityConfig
	Catalog      CatalogConfig
	Search       SearchConfig
	Server       ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string // Base directory for the cache and search index
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty; empty picks by environment
}

// CacheConfig holds local cache configuration.
type CacheConfig struct {
	Path     string // Default: {data}/cache
	InMemory bool   // Keep the cache in memory only (tests, kiosks)
	MaxBytes int64  // Logical quota for keys + values; 0 disables the quota
}

// RemoteConfig holds remote data service configuration.
type RemoteConfig struct {
	Kind    string        // postgrest or sql
	URL     string        // PostgREST base URL, e.g. https://xyz.supabase.co/rest/v1
	APIKey  string        // PostgREST anon/service key
	Driver  string        // SQL driver: postgres, mysql, sqlite, sqlserver
	DSN     string        // SQL data source name
	Timeout time.Duration // Per-call bound (default: 5s)
}

// ConnectivityConfig holds health probing configuration.
type ConnectivityConfig struct {
	ProbeInterval     time.Duration // Background probe period (default: 30s)
	MinRefresh        time.Duration // Cached verdicts are reused for at least this long (default: 5s)
	ReconcileOnOnline bool          // Push pending local writes when the remote comes back (default: true)
}

// CatalogConfig holds catalog bootstrap configuration.
type CatalogConfig struct {
	SeedTemplates bool // Seed template products, brands and reviews into an empty catalog (default: true)
}

// SearchConfig holds product search configuration.
type SearchConfig struct {
	Path string // Default: {data}/search
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins for the storefront (default: *)
	RateLimit      int           // Requests per second per client; 0 disables (default: 20)
	RateLimitBurst int           // Burst per client (default: 40)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format: json or pretty (default: by environment)")
	dataPath := flag.String("data-path", "", "Base path for local data")

	cachePath := flag.String("cache-path", "", "Path for the local cache")
	cacheInMemory := flag.String("cache-in-memory", "", "Keep the local cache in memory only (default: false)")
	cacheMaxBytes := flag.String("cache-max-bytes", "", "Local cache quota in bytes (default: 5242880)")

	remoteKind := flag.String("remote", "", "Remote data service kind: postgrest or sql (default: postgrest)")
	remoteURL := flag.String("remote-url", "", "PostgREST base URL")
	remoteAPIKey := flag.String("remote-api-key", "", "PostgREST API key")
	remoteDriver := flag.String("remote-driver", "", "SQL driver: postgres, mysql, sqlite, sqlserver")
	remoteDSN := flag.String("remote-dsn", "", "SQL data source name")
	remoteTimeout := flag.String("remote-timeout", "", "Per-call remote timeout (default: 5s)")

	probeInterval := flag.String("probe-interval", "", "Background health probe interval (default: 30s)")
	minRefresh := flag.String("probe-min-refresh", "", "Minimum time between health probes (default: 5s)")
	reconcileOnOnline := flag.String("reconcile-on-online", "", "Reconcile pending writes when the remote returns (default: true)")

	seedTemplates := flag.String("seed-templates", "", "Seed template catalog into an empty store (default: true)")
	searchPath := flag.String("search-path", "", "Path for the product search index")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := flag.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	rateLimit := flag.String("rate-limit", "", "Requests per second per client, 0 disables (default: 20)")
	rateLimitBurst := flag.String("rate-limit-burst", "", "Request burst per client (default: 40)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Cache: CacheConfig{
			Path:     getConfigValue(*cachePath, "CACHE_PATH", ""),
			InMemory: getBoolConfigValue(*cacheInMemory, "CACHE_IN_MEMORY", false),
			MaxBytes: int64(getIntConfigValue(*cacheMaxBytes, "CACHE_MAX_BYTES", 5*1024*1024)),
		},
		Remote: RemoteConfig{
			Kind:   getConfigValue(*remoteKind, "REMOTE_KIND", RemotePostgREST),
			URL:    getConfigValue(*remoteURL, "REMOTE_URL", ""),
			APIKey: getConfigValue(*remoteAPIKey, "REMOTE_API_KEY", ""),
			Driver: getConfigValue(*remoteDriver, "REMOTE_DRIVER", "postgres"),
			DSN:    getConfigValue(*remoteDSN, "REMOTE_DSN", ""),
		},
		Connectivity: ConnectivityConfig{
			ReconcileOnOnline: getBoolConfigValue(*reconcileOnOnline, "RECONCILE_ON_ONLINE", true),
		},
		Catalog: CatalogConfig{
			SeedTemplates: getBoolConfigValue(*seedTemplates, "SEED_TEMPLATES", true),
		},
		Search: SearchConfig{
			Path: getConfigValue(*searchPath, "SEARCH_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
			RateLimit:      getIntConfigValue(*rateLimit, "RATE_LIMIT", 20),
			RateLimitBurst: getIntConfigValue(*rateLimitBurst, "RATE_LIMIT_BURST", 40),
		},
	}

	durations := []struct {
		dest   *time.Duration
		flag   string
		envKey string
		def    string
	}{
		{&cfg.Remote.Timeout, *remoteTimeout, "REMOTE_TIMEOUT", "5s"},
		{&cfg.Connectivity.ProbeInterval, *probeInterval, "PROBE_INTERVAL", "30s"},
		{&cfg.Connectivity.MinRefresh, *minRefresh, "PROBE_MIN_REFRESH", "5s"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		value, err := getDurationConfigValue(d.flag, d.envKey, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = value
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", "json", "pretty":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	if !c.Cache.InMemory && c.Cache.Path == "" {
		return errors.New("cache path cannot be empty unless the cache is in memory")
	}
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("invalid cache quota: %d", c.Cache.MaxBytes)
	}

	switch c.Remote.Kind {
	case RemotePostgREST:
		if c.Remote.URL == "" {
			return errors.New("REMOTE_URL is required for the postgrest remote")
		}
	case RemoteSQL:
		validDrivers := map[string]bool{
			"postgres":  true,
			"mysql":     true,
			"sqlite":    true,
			"sqlserver": true,
		}
		if !validDrivers[c.Remote.Driver] {
			return fmt.Errorf("invalid remote driver: %s (must be postgres, mysql, sqlite, or sqlserver)", c.Remote.Driver)
		}
		if c.Remote.DSN == "" {
			return errors.New("REMOTE_DSN is required for the sql remote")
		}
	default:
		return fmt.Errorf("invalid remote kind: %s (must be postgrest or sql)", c.Remote.Kind)
	}

	if c.Remote.Timeout <= 0 {
		return errors.New("remote timeout must be positive")
	}
	if c.Connectivity.MinRefresh <= 0 || c.Connectivity.ProbeInterval <= 0 {
		return errors.New("probe intervals must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("rate limits cannot be negative")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and the paths derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	data, err := expandPath(c.App.DataPath, filepath.Join(homeDir, "SleepWell"))
	if err != nil {
		return err
	}
	c.App.DataPath = data

	if c.Cache.Path, err = expandPath(c.Cache.Path, filepath.Join(data, "cache")); err != nil {
		return err
	}
	if c.Search.Path, err = expandPath(c.Search.Path, filepath.Join(data, "search")); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
