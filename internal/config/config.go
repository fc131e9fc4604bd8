// Package config reads process settings from the environment and source
// definitions from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/example/resywatch/internal/logging"
	"github.com/example/resywatch/internal/notify"
	"github.com/example/resywatch/internal/providers"
)

type Config struct {
	Credentials providers.Credentials
	Mail        notify.MailConfig

	TelegramToken  string
	TelegramChatID int64

	DatabaseURL   string
	MetricsAddr   string
	DesktopAlerts bool
	PollInterval  time.Duration

	Log logging.Config
}

// LoadDotEnv primes the environment from path. A missing file is not an
// error; variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func FromEnv() (Config, error) {
	cfg := Config{
		Credentials: providers.Credentials{
			ResyAPIKey:       getenv("RESY_API_KEY", ""),
			ResyAuthToken:    getenv("RESY_AUTH_TOKEN", ""),
			OpenTableToken:   getenv("OPENTABLE_TOKEN", ""),
			OpenTableHash:    getenv("OPENTABLE_QUERY_HASH", ""),
			SevenRoomsCookie: getenv("SEVENROOMS_COOKIE", ""),
		},
		Mail: notify.MailConfig{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("MAIL_FROM", ""),
		},
		TelegramToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MetricsAddr:   getenv("METRICS_ADDR", ""),
		Log: logging.Config{
			Level: getenv("LOG_LEVEL", "info"),
			File:  getenv("LOG_FILE", ""),
		},
	}

	var err error
	if cfg.Mail.Port, err = intEnv("SMTP_PORT", 465); err != nil {
		return Config{}, err
	}
	if cfg.Mail.PerMinute, err = intEnv("MAIL_RATE_PER_MIN", 10); err != nil {
		return Config{}, err
	}
	if v := getenv("TELEGRAM_CHAT_ID", ""); v != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q", v)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if cfg.Log.Pretty, err = boolEnv("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}
	if cfg.DesktopAlerts, err = boolEnv("DESKTOP_ALERTS", false); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = ParseDurationOrDefault("POLL_INTERVAL", os.Getenv("POLL_INTERVAL"), 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval < time.Second {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be >= 1s")
	}
	return cfg, nil
}

// MailEnabled reports whether SMTP credentials are configured.
func (c Config) MailEnabled() bool {
	return c.Mail.Username != "" && c.Mail.Password != ""
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func intEnv(k string, def int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", k, v)
	}
	return n, nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", k, v)
	}
	return b, nil
}
