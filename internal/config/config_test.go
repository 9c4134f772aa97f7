package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, 1000, c.BatchSize)
	assert.Equal(t, 10*time.Minute, c.Timeout)
	assert.Equal(t, "tmp", c.WorkDir)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, "datasets.yaml", c.Registry)
	assert.Equal(t, logrus.InfoLevel, c.LogrusLogLevel())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SDOH_DATABASE_URL", "sqlite://sdoh.db")
	t.Setenv("SDOH_BATCH_SIZE", "250")
	t.Setenv("SDOH_TIMEOUT", "90s")
	t.Setenv("SDOH_LOG_LEVEL", "debug")

	c, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite://sdoh.db", c.DatabaseURL)
	assert.Equal(t, 250, c.BatchSize)
	assert.Equal(t, 90*time.Second, c.Timeout)
	assert.Equal(t, logrus.DebugLevel, c.LogrusLogLevel())
}

func TestLoadEnvFile(t *testing.T) {
	// registered so t cleans it up after godotenv sets it
	t.Setenv("SDOH_SCHEMA", "")
	require.NoError(t, os.Unsetenv("SDOH_SCHEMA"))

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("SDOH_SCHEMA=health\n"), 0o600))

	n, err := LoadEnv([]string{file, filepath.Join(t.TempDir(), ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "health", c.Schema)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero batch", "SDOH_BATCH_SIZE", "0"},
		{"negative timeout", "SDOH_TIMEOUT", "-1s"},
		{"bad level", "SDOH_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
			assert.Error(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{LogLevel: "warn"}
	logger := c.Logger(&buf)

	logger.Info("hidden")
	logger.WithField("dataset", "places").Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "dataset=places")
}
