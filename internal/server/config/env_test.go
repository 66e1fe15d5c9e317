package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_ReadsVariables(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"booky"}
	t.Chdir(t.TempDir())

	t.Setenv(EnvHTTPAddr, ":9090")
	t.Setenv(EnvS3PublicBaseURL, "https://cdn.example.com")
	t.Setenv(EnvMaxFileSize, "1048576")
	t.Setenv(EnvItemTimeout, "45s")
	t.Setenv(EnvStrictEPUB, "false")
	t.Setenv(EnvLogMode, "zap")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, ":9090", c.EndpointAddrHTTP)
	assert.Equal(t, "https://cdn.example.com", c.S3PublicBaseURL)
	assert.Equal(t, int64(1<<20), c.MaxFileSize)
	assert.Equal(t, 45*time.Second, c.ItemTimeout)
	assert.False(t, c.StrictEPUB)
	assert.True(t, c.OptimizePDF)
	assert.Equal(t, "zap", c.LogMode)
}

func TestParseEnv_LoadsDotenvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() {
		os.Args = origArgs
		_ = os.Unsetenv(EnvDatabaseDSN)
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "booky.env")
	require.NoError(t, os.WriteFile(path, []byte("BOOKY_DATABASE_DSN=postgres://env/db\n"), 0o600))
	os.Args = []string{"booky", "-env-file", path}

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "postgres://env/db", c.DatabaseDSN)
}

func TestParseEnv_Errors(t *testing.T) {
	origArgs, origLoad := os.Args, loadEnvFile
	t.Cleanup(func() { os.Args, loadEnvFile = origArgs, origLoad })

	t.Run("explicit file missing panics", func(t *testing.T) {
		os.Args = []string{"booky", "-envfile", filepath.Join(t.TempDir(), "nope.env")}
		loadEnvFile = origLoad
		var c Config
		require.Panics(t, func() { parseEnv(&c) })
	})

	t.Run("default file missing is ignored", func(t *testing.T) {
		os.Args = []string{"booky"}
		loadEnvFile = func(...string) error { return os.ErrNotExist }
		var c Config
		require.NotPanics(t, func() { parseEnv(&c) })
	})

	t.Run("broken default file panics", func(t *testing.T) {
		os.Args = []string{"booky"}
		loadEnvFile = func(...string) error { return errors.New("unexpected character") }
		var c Config
		require.Panics(t, func() { parseEnv(&c) })
	})

	t.Run("bad number panics", func(t *testing.T) {
		os.Args = []string{"booky"}
		loadEnvFile = func(...string) error { return os.ErrNotExist }
		t.Setenv(EnvMaxFileSize, "lots")
		var c Config
		require.Panics(t, func() { parseEnv(&c) })
	})
}
