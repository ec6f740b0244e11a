package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/logutil"
)

type (
	errorBody struct {
		Success         bool   `json:"success"`
		Error           string `json:"error"`
		CaptchaRequired bool   `json:"captchaRequired,omitempty"`
	}
)

// StatusCode maps the errors of the auth package to HTTP status codes.
// Anything unknown is a 500.
func StatusCode(err error) int {
	var (
		validation auth.ValidationError
		conflict   auth.Conflict
		upstream   auth.UpstreamUnavailable
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, auth.InvalidCredentials{}), errors.Is(err, auth.Unauthorized{}):
		return http.StatusUnauthorized
	case errors.Is(err, auth.CaptchaRequired{}), errors.Is(err, auth.CaptchaFailed{}):
		return http.StatusForbidden
	case errors.Is(err, auth.Locked{}):
		return http.StatusTooManyRequests
	case errors.As(err, &upstream):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Message is the text shown to clients for err. Internal failures never
// leak their details.
func Message(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

func captchaRequired(err error) bool {
	return errors.Is(err, auth.CaptchaRequired{}) ||
		errors.Is(err, auth.CaptchaFailed{}) ||
		errors.Is(err, auth.Locked{})
}

func retryAfter(w http.ResponseWriter, err error) {
	var locked auth.Locked
	if !errors.As(err, &locked) || locked.Until.IsZero() {
		return
	}
	secs := int(math.Ceil(time.Until(locked.Until).Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

func logFailure(r *http.Request, status int, err error) {
	log := logutil.GetOrDefault(r.Context())
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
		return
	}
	log.Debug().Err(err).Int("status", status).Msg("Request rejected")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	logFailure(r, status, err)
	retryAfter(w, err)
	writeJSON(w, status, errorBody{
		Error:           Message(err),
		CaptchaRequired: captchaRequired(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
