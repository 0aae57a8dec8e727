package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PROJECT", "DB_DRIVER", "MATCH_MODE", "LOCK_TTL", "PORT", "KAFKA_BROKERS"} {
			unsetenv(t, key)
		}

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Project)
		assert.Equal(t, "postgres", cfg.DatabaseDriver)
		assert.Equal(t, 3010, cfg.Port)
		assert.Equal(t, 5*time.Minute, cfg.LockTTL)
		assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	})

	t.Run("env file", func(t *testing.T) {
		for _, key := range []string{"PROJECT", "DB_DRIVER", "MATCH_WORKER_COUNT"} {
			unsetenv(t, key)
		}
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("PROJECT=sanctions\nDB_DRIVER=sqlite\nMATCH_WORKER_COUNT=8\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sanctions", cfg.Project)
		assert.Equal(t, "sqlite", cfg.DatabaseDriver)
		assert.Equal(t, 8, cfg.MatchWorkerCount)
	})

	t.Run("environment wins over env file", func(t *testing.T) {
		t.Setenv("PROJECT", "from-env")
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("PROJECT=from-file\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Project)
	})

	t.Run("missing env file is ignored", func(t *testing.T) {
		unsetenv(t, "PROJECT")
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Project)
	})

	t.Run("invalid driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		_, err := Load("")
		assert.ErrorContains(t, err, "DB_DRIVER")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{DatabaseDriver: "sqlite", MatchMode: "exhaustive", Project: "p"}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "index mode", mutate: func(c *Config) { c.MatchMode = "index" }},
		{name: "unknown mode", mutate: func(c *Config) { c.MatchMode = "fuzzy" }, wantErr: "fuzzy"},
		{name: "bad driver", mutate: func(c *Config) { c.DatabaseDriver = "oracle" }, wantErr: "DB_DRIVER"},
		{name: "auth without secret", mutate: func(c *Config) { c.AuthEnabled = true }, wantErr: "AUTH_JWT_SECRET"},
		{name: "auth with secret", mutate: func(c *Config) { c.AuthEnabled = true; c.AuthSecret = "s3cret" }},
		{name: "empty project", mutate: func(c *Config) { c.Project = "" }, wantErr: "PROJECT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGenerateOptions(t *testing.T) {
	c := Config{MatchMode: "index", MatchWorkerCount: 3, MatchBatchSize: 50, MatchCountryFilter: true, MatchMaxPostings: 100}

	opts, err := c.GenerateOptions("p")
	require.NoError(t, err)
	assert.Equal(t, "p", opts.Project)
	assert.EqualValues(t, "index", opts.Mode)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 50, opts.BatchSize)
	assert.True(t, opts.CountryFilter)
	assert.Equal(t, 100, opts.MaxPostings)
	assert.True(t, opts.DiscardStale)
}
