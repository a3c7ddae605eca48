package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "BOT_TOKEN", "ACCESS_CODE", "REMIND_AFTER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ACCESS_CODE", "1234")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TgToken)
	assert.Equal(t, "1234", cfg.AccessCode)
	assert.Equal(t, DefaultRemindAfter, cfg.RemindAfter)
}

func TestMissingTokenFails(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
}

func TestMissingAccessCodeIsLegal(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AccessCode)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"tg_token": "file:token", "access_code": "0000", "remind_after": "2h"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ACCESS_CODE", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file:token", cfg.TgToken)
	assert.Equal(t, "9999", cfg.AccessCode, "environment overrides the file")
	assert.Equal(t, 2*time.Hour, cfg.RemindAfter)
}

func TestBadRemindAfter(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("REMIND_AFTER", "four hours")

	_, err := Load()
	require.Error(t, err)
}

func TestBadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.json"))

	_, err := Load()
	require.Error(t, err)
}
