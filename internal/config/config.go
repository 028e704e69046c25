// Package config loads and validates the bridge configuration (TOML file overlaid by environment).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default configuration values used when a field is missing.
const (
	DefaultConfigPath = "config.toml"
	DefaultBotName    = "Telegram to Immich Bot"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Download ceilings of the hosted Bot API and of a self-hosted Bot API server.
const (
	HostedMaxFileSize int64 = 20 * 1024 * 1024
	LocalMaxFileSize  int64 = 2000 * 1024 * 1024
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration. It is built once at startup and never mutated.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Immich   ImmichConfig   `toml:"immich"`
	Telegram TelegramConfig `toml:"telegram"`
	Bot      BotConfig      `toml:"bot"`
	Server   ServerConfig   `toml:"server"`
	Sentry   SentryConfig   `toml:"sentry"`
}

// LogConfig holds logging level, format and an optional rotating log file.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// ImmichConfig holds the asset server base URL (including /api) and API key.
type ImmichConfig struct {
	APIURL string `toml:"api_url"`
	APIKey string `toml:"api_key"`
}

// TelegramConfig holds the bot token, the allow-list and an optional self-hosted Bot API URL.
type TelegramConfig struct {
	BotToken       string  `toml:"bot_token"`
	APIURL         string  `toml:"api_url"`
	AllowedUserIDs []int64 `toml:"allowed_user_ids"`
}

// BotConfig holds presentation and scratch space settings.
type BotConfig struct {
	Name    string `toml:"name"`
	TempDir string `toml:"temp_dir"`
}

// ServerConfig holds the health/metrics listen address; empty disables the server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SentryConfig holds the optional Sentry DSN.
type SentryConfig struct {
	DSN string `toml:"dsn"`
}

// UsesLocalAPI reports whether a self-hosted Bot API server is configured.
func (c Config) UsesLocalAPI() bool {
	return strings.TrimSpace(c.Telegram.APIURL) != ""
}

// MaxFileSize returns the largest file the bot accepts for download.
func (c Config) MaxFileSize() int64 {
	if c.UsesLocalAPI() {
		return LocalMaxFileSize
	}
	return HostedMaxFileSize
}

// Load reads the optional TOML file at path, loads a .env file if present and
// overlays environment variables. The result is validated.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Bot: BotConfig{
			Name:    DefaultBotName,
			TempDir: os.TempDir(),
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with every variable lookup returns.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("IMMICH_API_URL", &cfg.Immich.APIURL)
	str("IMMICH_API_KEY", &cfg.Immich.APIKey)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_API_URL", &cfg.Telegram.APIURL)
	str("BOT_NAME", &cfg.Bot.Name)
	str("TEMP_DIR", &cfg.Bot.TempDir)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	str("SENTRY_DSN", &cfg.Sentry.DSN)
	str("HEALTH_ADDR", &cfg.Server.Addr)

	if raw, ok := lookup("ALLOWED_USER_IDS"); ok && strings.TrimSpace(raw) != "" {
		ids, err := ParseUserIDs(raw)
		if err != nil {
			return err
		}
		cfg.Telegram.AllowedUserIDs = ids
	}

	cfg.Immich.APIURL = strings.TrimRight(cfg.Immich.APIURL, "/")
	cfg.Telegram.APIURL = strings.TrimRight(cfg.Telegram.APIURL, "/")
	return nil
}

// ParseUserIDs parses a comma-separated list of Telegram user ids, skipping blanks.
func ParseUserIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ALLOWED_USER_IDS entry %q is not a user id", ErrInvalid, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate fails when any required setting is missing.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if strings.TrimSpace(c.Immich.APIKey) == "" {
		missing = append(missing, "IMMICH_API_KEY")
	}
	if strings.TrimSpace(c.Immich.APIURL) == "" {
		missing = append(missing, "IMMICH_API_URL")
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		missing = append(missing, "ALLOWED_USER_IDS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}
