package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development", DataPath: "/data"},
		Logger: LoggerConfig{Level: "info"},
		Cache:  CacheConfig{Path: "/data/cache", MaxBytes: 1024},
		Remote: RemoteConfig{
			Kind:    RemotePostgREST,
			URL:     "https://example.supabase.co/rest/v1",
			Timeout: 5 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 30 * time.Second,
			MinRefresh:    5 * time.Second,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},
		{"trace", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_LogFormat(t *testing.T) {
	for format, valid := range map[string]bool{"": true, "json": true, "pretty": true, "xml": false} {
		cfg := validConfig()
		cfg.Logger.Format = format
		if valid {
			assert.NoError(t, cfg.Validate(), format)
		} else {
			assert.Error(t, cfg.Validate(), format)
		}
	}
}

func TestValidate_Remote(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"postgrest without url", func(c *Config) { c.Remote.URL = "" }, false},
		{"sql with sqlite", func(c *Config) {
			c.Remote = RemoteConfig{Kind: RemoteSQL, Driver: "sqlite", DSN: "remote.db", Timeout: time.Second}
		}, true},
		{"sql with unknown driver", func(c *Config) {
			c.Remote = RemoteConfig{Kind: RemoteSQL, Driver: "oracle", DSN: "x", Timeout: time.Second}
		}, false},
		{"sql without dsn", func(c *Config) {
			c.Remote = RemoteConfig{Kind: RemoteSQL, Driver: "mysql", Timeout: time.Second}
		}, false},
		{"unknown kind", func(c *Config) { c.Remote.Kind = "graphql" }, false},
		{"zero timeout", func(c *Config) { c.Remote.Timeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_CachePath(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Path = ""
	assert.Error(t, cfg.Validate())

	cfg.Cache.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestExpandPaths_Defaults(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{}
	require.NoError(t, cfg.expandPaths())

	assert.Equal(t, filepath.Join(home, "SleepWell"), cfg.App.DataPath)
	assert.Equal(t, filepath.Join(home, "SleepWell", "cache"), cfg.Cache.Path)
	assert.Equal(t, filepath.Join(home, "SleepWell", "search"), cfg.Search.Path)
}

func TestExpandPaths_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{App: AppConfig{DataPath: "~/sw"}, Cache: CacheConfig{Path: "/abs/cache"}}
	require.NoError(t, cfg.expandPaths())

	assert.Equal(t, filepath.Join(home, "sw"), cfg.App.DataPath)
	assert.Equal(t, "/abs/cache", cfg.Cache.Path)
	assert.Equal(t, filepath.Join(home, "sw", "search"), cfg.Search.Path)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("SW_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "SW_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "SW_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "SW_TEST_MISSING", "default"))
}

func TestGetDurationConfigValue(t *testing.T) {
	d, err := getDurationConfigValue("250ms", "SW_TEST_DURATION", "5s")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = getDurationConfigValue("soon", "SW_TEST_DURATION", "5s")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
SW_ENV_A=staging
# Comment line
SW_ENV_QUOTED="some value"
SW_ENV_SINGLE='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, k := range []string{"SW_ENV_A", "SW_ENV_QUOTED", "SW_ENV_SINGLE"} {
		t.Setenv(k, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("SW_ENV_A"))
	assert.Equal(t, "some value", os.Getenv("SW_ENV_QUOTED"))
	assert.Equal(t, "another value", os.Getenv("SW_ENV_SINGLE"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	err := loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SW_ENV_KEEP=from-file\n"), 0o644))

	t.Setenv("SW_ENV_KEEP", "from-env")

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "from-env", os.Getenv("SW_ENV_KEEP"))
}
