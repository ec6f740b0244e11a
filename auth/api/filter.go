package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/logutil"
	"github.com/andrebq/healthtrack/internal/views"
)

const (
	// SessionCookie carries the signed session id of the HTML flow.
	SessionCookie = "healthtrack_session"
)

type (
	SecurityRealm struct {
		gateway      *auth.Gateway
		views        *views.Set
		siteKey      string
		secureCookie bool
	}

	usernameKey struct{}
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)
)

// NewRealm exposes gateway over HTTP. siteKey is rendered on the login page
// when the gateway requires a CAPTCHA.
func NewRealm(gateway *auth.Gateway, views *views.Set, siteKey string, secureCookie bool) *SecurityRealm {
	return &SecurityRealm{
		gateway:      gateway,
		views:        views,
		siteKey:      siteKey,
		secureCookie: secureCookie,
	}
}

// Username returns the authenticated user placed in ctx by Protect or
// RequireSession.
func Username(ctx context.Context) string {
	u, _ := ctx.Value(usernameKey{}).(string)
	return u
}

func withUsername(ctx context.Context, username string) context.Context {
	ctx = context.WithValue(ctx, usernameKey{}, username)
	log := logutil.GetOrDefault(ctx).With().Str("username", username).Logger()
	return logutil.WithLogger(ctx, log)
}

// Protect only lets requests carrying a valid bearer token reach sensitive.
func (s *SecurityRealm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := s.checkToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(withUsername(r.Context(), username)))
	})
}

// RequireSession sends visitors without a valid session to the login page.
func (s *SecurityRealm) RequireSession(page http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.checkSession(r)
		if err != nil {
			if !errors.Is(err, auth.Unauthorized{}) {
				log := logutil.GetOrDefault(r.Context())
				log.Error().Err(err).Msg("Unable to load session")
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		page.ServeHTTP(w, r.WithContext(withUsername(r.Context(), session.Username)))
	})
}

func (s *SecurityRealm) checkToken(r *http.Request) (string, error) {
	groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(groups) == 0 {
		return s.gateway.Verify("")
	}
	return s.gateway.Verify(groups[1])
}

func (s *SecurityRealm) checkSession(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return s.gateway.CurrentSession(r.Context(), "")
	}
	return s.gateway.CurrentSession(r.Context(), c.Value)
}
