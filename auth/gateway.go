package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrebq/healthtrack/credstore"
	"github.com/andrebq/healthtrack/internal/logutil"
)

const (
	MinPasswordLen = 6
	// bcrypt ignores everything after 72 bytes
	MaxPasswordLen = 72
	MaxUsernameLen = 64
)

type (
	CredentialStore interface {
		Create(ctx context.Context, username, passwordHash string) (credstore.Credential, error)
		Lookup(ctx context.Context, username string) (credstore.Credential, error)
		UpdatePassword(ctx context.Context, username, passwordHash string) error
		Delete(ctx context.Context, username string) error
	}

	// Provisioner owns the per-user data stores.
	Provisioner interface {
		Provision(ctx context.Context, username string) error
		Destroy(ctx context.Context, username string) error
	}

	// Policies are the optional checks that run before credentials are
	// looked at. A nil field disables the policy.
	Policies struct {
		Captcha CaptchaVerifier
		Guard   *Guard
	}

	// Credentials is a login request.
	Credentials struct {
		Username     string
		Password     string
		CaptchaToken string
		RemoteIP     string
	}

	// Identity is what a successful register or login hands back, either
	// a bearer token or a session cookie depending on the entry point.
	Identity struct {
		Username      string
		Token         string
		TokenExpiry   time.Time
		SessionCookie string
		Session       Session
	}

	Gateway struct {
		creds     CredentialStore
		users     Provisioner
		hasher    Hasher
		tokens    *TokenIssuer
		sessions  *SessionManager
		policies  Policies
		dummyHash string
	}
)

func NewGateway(creds CredentialStore, users Provisioner, hasher Hasher, tokens *TokenIssuer, sessions *SessionManager, policies Policies) (*Gateway, error) {
	// verified against unknown usernames so both failure paths cost the same
	dummy, err := hasher.Hash("healthtrack-timing-equalizer")
	if err != nil {
		return nil, err
	}
	return &Gateway{
		creds:     creds,
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  sessions,
		policies:  policies,
		dummyHash: dummy,
	}, nil
}

// CaptchaEnabled tells the views whether a challenge must be rendered.
func (g *Gateway) CaptchaEnabled() bool {
	return g.policies.Captcha != nil
}

// Register creates the credential and the per-user store of username.
func (g *Gateway) Register(ctx context.Context, username, password string) error {
	log := logutil.GetOrDefault(ctx).With().Str("username", username).Logger()
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := g.hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = g.creds.Create(ctx, username, hash)
	if errors.Is(err, credstore.UserExists{Username: username}) {
		log.Info().Msg("Registration rejected, username taken")
		return Conflict{Username: username}
	} else if err != nil {
		return err
	}
	// whatever is left on disk under this name belongs to a deleted account
	if err := g.users.Destroy(ctx, username); err != nil {
		g.rollback(ctx, username)
		return fmt.Errorf("unable to clear leftover store of %v, cause %w", username, err)
	}
	if err := g.users.Provision(ctx, username); err != nil {
		g.rollback(ctx, username)
		return fmt.Errorf("unable to provision store for %v, cause %w", username, err)
	}
	log.Info().Msg("User registered")
	return nil
}

func (g *Gateway) RegisterToken(ctx context.Context, username, password string) (Identity, error) {
	if err := g.Register(ctx, username, password); err != nil {
		return Identity{}, err
	}
	return g.issueToken(username)
}

func (g *Gateway) RegisterSession(ctx context.Context, username, password string) (Identity, error) {
	if err := g.Register(ctx, username, password); err != nil {
		return Identity{}, err
	}
	return g.startSession(ctx, username)
}

// Login checks, in order: captcha, lockout, presence of the credentials,
// the stored credential and the password. It stops at the first failure.
func (g *Gateway) Login(ctx context.Context, c Credentials) error {
	log := logutil.GetOrDefault(ctx).With().Str("username", c.Username).Logger()
	if g.policies.Captcha != nil {
		if c.CaptchaToken == "" {
			return CaptchaRequired{}
		}
		ok, err := g.policies.Captcha.Verify(ctx, c.CaptchaToken, c.RemoteIP)
		if err != nil {
			return err
		}
		if !ok {
			return CaptchaFailed{}
		}
	}
	if guard := g.policies.Guard; guard != nil {
		until, locked, err := guard.Check(c.Username)
		if err != nil {
			return err
		}
		if locked {
			log.Info().Time("locked_until", until).Msg("Login rejected, username locked")
			return Locked{Until: until}
		}
	}
	if c.Username == "" || c.Password == "" {
		return ValidationError{Reason: "Username and password required"}
	}
	cred, err := g.creds.Lookup(ctx, c.Username)
	var notFound credstore.UserNotFound
	if errors.As(err, &notFound) {
		// burn the same amount of time as a wrong password
		_, _ = g.hasher.Verify(c.Password, g.dummyHash)
		return g.failed(ctx, c.Username)
	} else if err != nil {
		return err
	}
	ok, err := g.hasher.Verify(c.Password, cred.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return g.failed(ctx, c.Username)
	}
	if guard := g.policies.Guard; guard != nil {
		if err := guard.Reset(c.Username); err != nil {
			return err
		}
	}
	if err := g.users.Provision(ctx, c.Username); err != nil {
		return fmt.Errorf("unable to provision store for %v, cause %w", c.Username, err)
	}
	log.Info().Msg("Login successful")
	return nil
}

func (g *Gateway) LoginToken(ctx context.Context, c Credentials) (Identity, error) {
	if err := g.Login(ctx, c); err != nil {
		return Identity{}, err
	}
	return g.issueToken(c.Username)
}

func (g *Gateway) LoginSession(ctx context.Context, c Credentials) (Identity, error) {
	if err := g.Login(ctx, c); err != nil {
		return Identity{}, err
	}
	return g.startSession(ctx, c.Username)
}

// Verify introspects a bearer token.
func (g *Gateway) Verify(token string) (string, error) {
	if token == "" {
		return "", Unauthorized{cause: errors.New("missing token")}
	}
	return g.tokens.Verify(token)
}

// CurrentSession resolves a session cookie.
func (g *Gateway) CurrentSession(ctx context.Context, cookie string) (Session, error) {
	if cookie == "" {
		return Session{}, Unauthorized{cause: errors.New("missing session")}
	}
	return g.sessions.Lookup(ctx, cookie)
}

func (g *Gateway) Logout(ctx context.Context, cookie string) error {
	return g.sessions.Destroy(ctx, cookie)
}

// SessionTTL is the lifetime of sessions started by the gateway.
func (g *Gateway) SessionTTL() time.Duration {
	return g.sessions.TTL()
}

// ChangePassword replaces the password of an already authenticated user.
func (g *Gateway) ChangePassword(ctx context.Context, username, current, next string) error {
	if err := g.checkPassword(ctx, username, current); err != nil {
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := g.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := g.creds.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("username", username).Msg("Password changed")
	return nil
}

// DeleteAccount removes the user store, the credential and every session
// of username.
func (g *Gateway) DeleteAccount(ctx context.Context, username, password string) error {
	if err := g.checkPassword(ctx, username, password); err != nil {
		return err
	}
	return g.RemoveUser(ctx, username)
}

// RemoveUser deletes an account without asking for its password, it is
// meant for administrative tools.
func (g *Gateway) RemoveUser(ctx context.Context, username string) error {
	if err := g.users.Destroy(ctx, username); err != nil {
		return fmt.Errorf("unable to destroy store of %v, cause %w", username, err)
	}
	if err := g.creds.Delete(ctx, username); err != nil {
		return err
	}
	if guard := g.policies.Guard; guard != nil {
		if err := guard.Reset(username); err != nil {
			return err
		}
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("username", username).Msg("Account deleted")
	return nil
}

// checkPassword re-authenticates a signed in user. Mismatches count
// against the same lockout as Login.
func (g *Gateway) checkPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return ValidationError{Reason: "Password required"}
	}
	if guard := g.policies.Guard; guard != nil {
		until, locked, err := guard.Check(username)
		if err != nil {
			return err
		}
		if locked {
			return Locked{Until: until}
		}
	}
	cred, err := g.creds.Lookup(ctx, username)
	var notFound credstore.UserNotFound
	if errors.As(err, &notFound) {
		return InvalidCredentials{}
	} else if err != nil {
		return err
	}
	ok, err := g.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return g.failed(ctx, username)
	}
	if guard := g.policies.Guard; guard != nil {
		return guard.Reset(username)
	}
	return nil
}

func (g *Gateway) rollback(ctx context.Context, username string) {
	if err := g.creds.Delete(ctx, username); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Str("username", username).Msg("Unable to roll back credential after provisioning failure")
	}
}

func (g *Gateway) failed(ctx context.Context, username string) error {
	guard := g.policies.Guard
	if guard == nil {
		return InvalidCredentials{}
	}
	until, locked, err := guard.Fail(username)
	if err != nil {
		return err
	}
	if locked {
		log := logutil.GetOrDefault(ctx)
		log.Warn().Str("username", username).Time("locked_until", until).Msg("Username locked after repeated failures")
		return Locked{Until: until}
	}
	return InvalidCredentials{}
}

func (g *Gateway) issueToken(username string) (Identity, error) {
	token, exp, err := g.tokens.Issue(username)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Username: username, Token: token, TokenExpiry: exp}, nil
}

func (g *Gateway) startSession(ctx context.Context, username string) (Identity, error) {
	cookie, s, err := g.sessions.Create(ctx, username)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Username: username, SessionCookie: cookie, Session: s}, nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return ValidationError{Reason: "Username and password required"}
	case len(username) > MaxUsernameLen:
		return ValidationError{Reason: fmt.Sprintf("Username must have at most %v characters", MaxUsernameLen)}
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return ValidationError{Reason: "Username and password required"}
	case len(password) < MinPasswordLen:
		return ValidationError{Reason: fmt.Sprintf("Password must be at least %v characters", MinPasswordLen)}
	case len(password) > MaxPasswordLen:
		return ValidationError{Reason: fmt.Sprintf("Password must be at most %v bytes", MaxPasswordLen)}
	}
	return nil
}
