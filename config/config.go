// Package config loads process-wide settings: defaults, then an optional JSON
// file named by CONFIG_FILE, then environment variables. A .env file is
// honored for the environment pass.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const DefaultRemindAfter = 4 * time.Hour

type Config struct {
	TgToken     string        // Telegram bot token, required
	AccessCode  string        // shared access code; empty means the gate fails closed
	RemindAfter time.Duration // delay between arming a reminder and it firing
}

type fileConfig struct {
	TgToken     string `json:"tg_token"`
	AccessCode  string `json:"access_code"`
	RemindAfter string `json:"remind_after"`
}

// Load builds the configuration. A missing access code is a legal state that
// the authorization gate reports to users at check time; a missing token is
// an error and the process must not start.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional
	}

	cfg := &Config{RemindAfter: DefaultRemindAfter}

	if path, ok := os.LookupEnv("CONFIG_FILE"); ok {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.TgToken = v
	}
	if v := os.Getenv("ACCESS_CODE"); v != "" {
		cfg.AccessCode = v
	}
	if v := os.Getenv("REMIND_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed parsing REMIND_AFTER")
		}
		cfg.RemindAfter = d
	}

	if cfg.TgToken == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed reading configuration file %q", path)
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return errors.Wrap(err, "failed unmarshalling configuration")
	}

	if fc.TgToken != "" {
		c.TgToken = fc.TgToken
	}
	if fc.AccessCode != "" {
		c.AccessCode = fc.AccessCode
	}
	if fc.RemindAfter != "" {
		d, err := time.ParseDuration(fc.RemindAfter)
		if err != nil {
			return errors.Wrap(err, "failed parsing remind_after")
		}
		c.RemindAfter = d
	}

	return nil
}
