package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	err := applyEnv(&cfg, envMap(map[string]string{
		"IMMICH_API_URL":     "http://immich.local/api/",
		"IMMICH_API_KEY":     "key",
		"TELEGRAM_BOT_TOKEN": "token",
		"ALLOWED_USER_IDS":   " 123, 456 ,,",
		"TELEGRAM_API_URL":   "http://telegram-bot-api:8081",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://immich.local/api", cfg.Immich.APIURL)
	assert.Equal(t, []int64{123, 456}, cfg.Telegram.AllowedUserIDs)
	assert.Equal(t, "http://telegram-bot-api:8081", cfg.Telegram.APIURL)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadUserID(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	err := applyEnv(&cfg, envMap(map[string]string{"ALLOWED_USER_IDS": "123,alice"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateListsEveryMissingVariable(t *testing.T) {
	t.Parallel()

	err := Config{}.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "IMMICH_API_KEY", "IMMICH_API_URL", "ALLOWED_USER_IDS"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestMaxFileSize(t *testing.T) {
	t.Parallel()

	hosted := Config{}
	assert.False(t, hosted.UsesLocalAPI())
	assert.Equal(t, int64(20*1024*1024), hosted.MaxFileSize())

	local := Config{Telegram: TelegramConfig{APIURL: "http://telegram-bot-api:8081"}}
	assert.True(t, local.UsesLocalAPI())
	assert.Equal(t, int64(2000*1024*1024), local.MaxFileSize())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := []byte(`
[immich]
api_url = "http://from-file/api"
api_key = "file-key"

[telegram]
bot_token = "file-token"
allowed_user_ids = [1, 2]

[log]
level = "debug"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("IMMICH_API_KEY", "env-key")
	t.Setenv("IMMICH_API_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("ALLOWED_USER_IDS", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BOT_NAME", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file/api", cfg.Immich.APIURL)
	assert.Equal(t, "env-key", cfg.Immich.APIKey)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedUserIDs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultBotName, cfg.Bot.Name)
}

func TestLoadFailsWithoutRequiredSettings(t *testing.T) {
	t.Setenv("IMMICH_API_URL", "")
	t.Setenv("IMMICH_API_KEY", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("ALLOWED_USER_IDS", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, ErrInvalid)
}
