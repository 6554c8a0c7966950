package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `database_url: postgres://localhost:5432/exchange_test
listen_addr: ":9090"
venue:
  timezone: Asia/Seoul
  trading_open: "09:00"
  trading_close: "15:20"
sweep:
  interval: 10s
  timeout: 5s
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/exchange_test", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 10*time.Second, cfg.Sweep.ParsedInterval)
	assert.Equal(t, 5*time.Second, cfg.Sweep.ParsedTimeout)

	window, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, 9*60, window.Open)
	assert.Equal(t, 15*60+20, window.Close)

	location, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", location.String())
}

func TestLoad_EnvOverridesDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://other:5432/db")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "postgres://other:5432/db", cfg.DatabaseURL)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(writeConfig(t, testConfig))
	assert.Error(t, err)
}

func TestLoad_RejectsBadWindow(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	bad := `database_url: postgres://localhost/db
venue:
  timezone: Asia/Seoul
  trading_open: "15:20"
  trading_close: "09:00"
sweep:
  interval: 10s
`
	_, err := Load(writeConfig(t, bad))
	assert.Error(t, err)
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in        string
		want      int
		expectErr bool
	}{
		{"09:00", 540, false},
		{"15:20", 920, false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}

	for _, tt := range tests {
		got, err := parseMinutes(tt.in)
		if tt.expectErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
