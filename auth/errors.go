package auth

import (
	"fmt"
	"time"
)

type (
	// ValidationError reports missing or malformed input.
	ValidationError struct {
		Reason string
	}

	// Conflict is returned when registering a username that is taken.
	Conflict struct {
		Username string
	}

	// InvalidCredentials never says whether the username or the password
	// was wrong.
	InvalidCredentials struct{}

	CaptchaRequired struct{}

	CaptchaFailed struct{}

	// Locked is returned while a username is locked out.
	Locked struct {
		Until time.Time
	}

	// Unauthorized is returned for missing, malformed or expired tokens
	// and sessions.
	Unauthorized struct {
		cause error
	}

	// UpstreamUnavailable wraps failures of external services.
	UpstreamUnavailable struct {
		Service string
		cause   error
	}
)

func (v ValidationError) Error() string {
	return v.Reason
}

func (c Conflict) Error() string {
	return "Username already exists"
}

func (InvalidCredentials) Error() string {
	return "Invalid credentials"
}

func (CaptchaRequired) Error() string {
	return "CAPTCHA verification required"
}

func (CaptchaFailed) Error() string {
	return "CAPTCHA verification failed"
}

func (l Locked) Error() string {
	return "Too many failed login attempts, try again later"
}

func (l Locked) Is(target error) bool {
	_, ok := target.(Locked)
	return ok
}

func (u Unauthorized) Error() string {
	return "Invalid or expired token"
}

func (u Unauthorized) Unwrap() error {
	return u.cause
}

func (u Unauthorized) Is(target error) bool {
	_, ok := target.(Unauthorized)
	return ok
}

func (u UpstreamUnavailable) Error() string {
	return fmt.Sprintf("%v service unavailable", u.Service)
}

func (u UpstreamUnavailable) Unwrap() error {
	return u.cause
}

func (u UpstreamUnavailable) Is(target error) bool {
	t, ok := target.(UpstreamUnavailable)
	return ok && (t.Service == "" || t.Service == u.Service)
}
