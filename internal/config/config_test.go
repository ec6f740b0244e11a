package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "0123456789abcdef0123456789abcdef-jwt"
	sessionSecret = "0123456789abcdef0123456789abcdef-session"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HEALTHTRACK_JWT_SECRET", jwtSecret)
	t.Setenv("HEALTHTRACK_SESSION_SECRET", sessionSecret)
	t.Setenv("HEALTHTRACK_CAPTCHA_SECRET", "captcha")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, jwtSecret, cfg.JWTSecret)
	require.True(t, cfg.Captcha.Enabled)
	require.Equal(t, "https://www.google.com/recaptcha/api/siteverify", cfg.Captcha.URL)
	require.True(t, cfg.Lockout.Enabled)
	require.Equal(t, 5, cfg.Lockout.Threshold)
	require.Equal(t, 15*time.Minute, cfg.Lockout.Window)
	require.Equal(t, zerolog.InfoLevel, cfg.Level())

	_, found := os.LookupEnv("HEALTHTRACK_JWT_SECRET")
	require.False(t, found, "secrets should be removed from the environment once read")
}

func TestMissingSecrets(t *testing.T) {
	t.Setenv("HEALTHTRACK_JWT_SECRET", "short")
	t.Setenv("HEALTHTRACK_SESSION_SECRET", "")
	t.Setenv("HEALTHTRACK_CAPTCHA_ENABLED", "true")
	t.Setenv("HEALTHTRACK_CAPTCHA_SECRET", "")

	_, err := Load("")
	require.Error(t, err)

	var invalid InvalidSetting
	require.True(t, errors.As(err, &invalid))
	for _, name := range []string{"HEALTHTRACK_JWT_SECRET", "HEALTHTRACK_SESSION_SECRET", "HEALTHTRACK_CAPTCHA_SECRET"} {
		require.Contains(t, err.Error(), name)
	}
}

func TestCaptchaDisabledDoesNotNeedSecret(t *testing.T) {
	cfg := Config{
		LogLevel:   "debug",
		JWTSecret:  jwtSecret,
		SessionSec: sessionSecret,
		Captcha:    Captcha{Enabled: false},
		Lockout:    Lockout{Enabled: false},
	}
	require.NoError(t, cfg.Validate())
	require.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte(
		"HEALTHTRACK_JWT_SECRET="+jwtSecret+"\n"+
			"HEALTHTRACK_SESSION_SECRET="+sessionSecret+"\n"+
			"HEALTHTRACK_CAPTCHA_ENABLED=false\n"+
			"HEALTHTRACK_LOCKOUT_THRESHOLD=3\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("HEALTHTRACK_CAPTCHA_ENABLED")
		os.Unsetenv("HEALTHTRACK_LOCKOUT_THRESHOLD")
	})

	cfg, err := Load(dotenv)
	require.NoError(t, err)
	require.False(t, cfg.Captcha.Enabled)
	require.Equal(t, 3, cfg.Lockout.Threshold)

	_, err = Load(filepath.Join(dir, "missing.env"))
	require.Error(t, err, "secrets were already consumed by the previous load")
}
