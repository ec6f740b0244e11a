package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andrebq/healthtrack/internal/logutil"
)

const (
	captchaTimeout  = 5 * time.Second
	captchaAttempts = 2
	captchaService  = "captcha"
)

type (
	// CaptchaVerifier checks a client supplied challenge response.
	CaptchaVerifier interface {
		Verify(ctx context.Context, response, remoteIP string) (bool, error)
	}

	// RecaptchaVerifier talks to a reCAPTCHA compatible siteverify endpoint.
	RecaptchaVerifier struct {
		secret   string
		endpoint string
		client   *http.Client
		timeout  time.Duration
	}

	siteVerifyResponse struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}

	upstreamStatus struct {
		code int
	}
)

func (u upstreamStatus) Error() string {
	return fmt.Sprintf("unexpected status %v", u.code)
}

func NewRecaptchaVerifier(secret, endpoint string, client *http.Client) *RecaptchaVerifier {
	if client == nil {
		client = &http.Client{}
	}
	return &RecaptchaVerifier{
		secret:   secret,
		endpoint: endpoint,
		client:   client,
		timeout:  captchaTimeout,
	}
}

// Verify makes at most two calls. Only transport errors and 5xx answers are
// retried, anything else that is not a valid answer is an UpstreamUnavailable.
func (r *RecaptchaVerifier) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	log := logutil.GetOrDefault(ctx)
	var lastErr error
	for attempt := 1; attempt <= captchaAttempts; attempt++ {
		ok, retry, err := r.verifyOnce(ctx, response, remoteIP)
		if err == nil {
			return ok, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("CAPTCHA verification call failed")
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return false, UpstreamUnavailable{Service: captchaService, cause: lastErr}
}

func (r *RecaptchaVerifier) verifyOnce(ctx context.Context, response, remoteIP string) (ok bool, retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	form := url.Values{
		"secret":   {r.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := r.client.Do(req)
	if err != nil {
		return false, true, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 500 {
		return false, true, upstreamStatus{code: res.StatusCode}
	} else if res.StatusCode != http.StatusOK {
		return false, false, upstreamStatus{code: res.StatusCode}
	}
	var body siteVerifyResponse
	err = json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&body)
	if err != nil {
		return false, false, fmt.Errorf("unable to decode siteverify response, cause %w", err)
	}
	if !body.Success {
		log := logutil.GetOrDefault(ctx)
		log.Debug().Strs("error-codes", body.ErrorCodes).Msg("CAPTCHA rejected")
	}
	return body.Success, false, nil
}
