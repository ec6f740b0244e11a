// Package config loads the process configuration.
//
// Secrets are only read from the environment (optionally seeded from a .env
// file); they are never accepted as command line arguments.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	// MinSecretLen is the minimum accepted length for signing secrets.
	MinSecretLen = 32
)

type (
	Config struct {
		LogLevel     string  `env:"LOG_LEVEL" envDefault:"info"`
		JWTSecret    string  `env:"HEALTHTRACK_JWT_SECRET,unset"`
		SessionSec   string  `env:"HEALTHTRACK_SESSION_SECRET,unset"`
		SecureCookie bool    `env:"HEALTHTRACK_SECURE_COOKIE" envDefault:"false"`
		Captcha      Captcha `envPrefix:"HEALTHTRACK_CAPTCHA_"`
		Lockout      Lockout `envPrefix:"HEALTHTRACK_LOCKOUT_"`
	}

	Captcha struct {
		Enabled bool   `env:"ENABLED" envDefault:"true"`
		Secret  string `env:"SECRET,unset"`
		SiteKey string `env:"SITE_KEY"`
		URL     string `env:"URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	}

	Lockout struct {
		Enabled   bool          `env:"ENABLED" envDefault:"true"`
		Threshold int           `env:"THRESHOLD" envDefault:"5"`
		Window    time.Duration `env:"WINDOW" envDefault:"15m"`
		Memory    time.Duration `env:"MEMORY" envDefault:"24h"`
	}

	// InvalidSetting is returned by Validate for each rejected value.
	InvalidSetting struct {
		Name   string
		Reason string
	}
)

func (i InvalidSetting) Error() string {
	return fmt.Sprintf("config: %v %v", i.Name, i.Reason)
}

// Load reads dotenv (when the file exists) and then parses the environment.
// The returned config is already validated.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		err := godotenv.Load(dotenv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: unable to read %v, cause %w", dotenv, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to parse environment, cause %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would run with missing or weak secrets.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < MinSecretLen {
		errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_JWT_SECRET", Reason: fmt.Sprintf("must have at least %v bytes", MinSecretLen)})
	}
	if len(c.SessionSec) < MinSecretLen {
		errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_SESSION_SECRET", Reason: fmt.Sprintf("must have at least %v bytes", MinSecretLen)})
	}
	if c.Captcha.Enabled {
		if c.Captcha.Secret == "" {
			errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_CAPTCHA_SECRET", Reason: "is required when captcha is enabled"})
		}
		if c.Captcha.URL == "" {
			errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_CAPTCHA_URL", Reason: "cannot be empty"})
		}
	}
	if c.Lockout.Enabled {
		if c.Lockout.Threshold < 1 {
			errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_LOCKOUT_THRESHOLD", Reason: "must be positive"})
		}
		if c.Lockout.Window <= 0 {
			errs = append(errs, InvalidSetting{Name: "HEALTHTRACK_LOCKOUT_WINDOW", Reason: "must be positive"})
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, InvalidSetting{Name: "LOG_LEVEL", Reason: err.Error()})
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
