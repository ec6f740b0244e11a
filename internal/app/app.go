// Package app assembles the stores, the auth gateway and the HTTP routes
// from a validated configuration.
package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/andrebq/healthtrack/auth"
	authapi "github.com/andrebq/healthtrack/auth/api"
	"github.com/andrebq/healthtrack/credstore"
	"github.com/andrebq/healthtrack/internal/config"
	"github.com/andrebq/healthtrack/internal/logutil"
	"github.com/andrebq/healthtrack/internal/views"
	"github.com/andrebq/healthtrack/userstore"
	userapi "github.com/andrebq/healthtrack/userstore/api"
	"github.com/gorilla/handlers"
	"github.com/julienschmidt/httprouter"
)

const (
	usersDir = "users"
)

type (
	App struct {
		Gateway  *auth.Gateway
		Sessions *auth.SessionManager
		Creds    *credstore.Store
		Deck     *userstore.Deck

		cfg      *config.Config
		attempts *auth.CacheAttemptStore
	}

	// Option tweaks how Open builds the gateway.
	Option func(*options)

	options struct {
		policies bool
		hasher   auth.Hasher
		captcha  auth.CaptchaVerifier
	}
)

// WithoutPolicies skips CAPTCHA and lockout, administrative commands use it.
func WithoutPolicies() Option {
	return func(o *options) { o.policies = false }
}

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h auth.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

// WithCaptcha replaces the reCAPTCHA client built from the configuration.
func WithCaptcha(c auth.CaptchaVerifier) Option {
	return func(o *options) { o.captcha = c }
}

// Open loads (creating if needed) every database under dataDir.
func Open(ctx context.Context, cfg *config.Config, dataDir string, opts ...Option) (*App, error) {
	o := options{policies: true, hasher: auth.NewBcryptHasher(auth.DefaultBcryptCost)}
	for _, fn := range opts {
		fn(&o)
	}
	a := &App{cfg: cfg}
	var err error
	a.Creds, err = credstore.Open(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	a.Deck, err = userstore.NewDeck(filepath.Join(dataDir, usersDir))
	if err != nil {
		a.Close()
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, nil)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sessions, err = auth.NewSessionManager(a.Creds, cfg.SessionSec, nil)
	if err != nil {
		a.Close()
		return nil, err
	}
	var policies auth.Policies
	if o.policies {
		policies, err = a.policies(o)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Gateway, err = auth.NewGateway(a.Creds, a.Deck, o.hasher, tokens, a.Sessions, policies)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) policies(o options) (auth.Policies, error) {
	var p auth.Policies
	switch {
	case o.captcha != nil:
		p.Captcha = o.captcha
	case a.cfg.Captcha.Enabled:
		p.Captcha = auth.NewRecaptchaVerifier(a.cfg.Captcha.Secret, a.cfg.Captcha.URL, &http.Client{})
	}
	if a.cfg.Lockout.Enabled {
		// records must outlive the lock they carry
		memory := a.cfg.Lockout.Memory
		if memory < a.cfg.Lockout.Window {
			memory = a.cfg.Lockout.Window
		}
		var err error
		a.attempts, err = auth.NewCacheAttemptStore(memory)
		if err != nil {
			return auth.Policies{}, err
		}
		p.Guard = auth.NewGuard(a.attempts, a.cfg.Lockout.Threshold, a.cfg.Lockout.Window, nil)
	}
	return p, nil
}

// Handler returns every route wrapped with panic recovery and request logging.
func (a *App) Handler(ctx context.Context) (http.Handler, error) {
	set, err := views.Load()
	if err != nil {
		return nil, err
	}
	router := httprouter.New()
	realm := authapi.NewRealm(a.Gateway, set, a.cfg.Captcha.SiteKey, a.cfg.SecureCookie)
	realm.Mount(router)
	userapi.NewHandler(a.Deck, set, nil).Mount(router, realm)

	log := logutil.GetOrDefault(ctx)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(logutil.RecoveryLogger{Logger: log}),
		handlers.PrintRecoveryStack(true))
	return logutil.Middleware(log, recovery(router)), nil
}

// PurgeSessions removes expired sessions every interval until ctx is done.
func (a *App) PurgeSessions(ctx context.Context, interval time.Duration) error {
	log := logutil.GetOrDefault(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.Sessions.Purge(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Unable to purge sessions")
				continue
			}
			if n > 0 {
				log.Info().Int64("sessions", n).Msg("Expired sessions purged")
			}
		}
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Deck != nil {
		errs = append(errs, a.Deck.Close())
	}
	if a.Creds != nil {
		errs = append(errs, a.Creds.Close())
	}
	if a.attempts != nil {
		errs = append(errs, a.attempts.Close())
	}
	return errors.Join(errs...)
}
