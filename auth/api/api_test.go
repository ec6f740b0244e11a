package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/testutil"
	"github.com/andrebq/healthtrack/internal/views"
	"github.com/julienschmidt/httprouter"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	// fixedCaptcha accepts only the response "valid".
	fixedCaptcha struct{}
)

func (fixedCaptcha) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	return response == "valid", nil
}

func acquireRouter(t *testing.T, withPolicies bool) (http.Handler, *auth.Gateway, func()) {
	ctx := context.Background()
	var policies auth.Policies
	var closeAttempts func() error
	if withPolicies {
		attempts, err := auth.NewCacheAttemptStore(time.Hour)
		require.NoError(t, err)
		closeAttempts = attempts.Close
		policies = auth.Policies{
			Captcha: fixedCaptcha{},
			Guard:   auth.NewGuard(attempts, 5, 15*time.Minute, nil),
		}
	}
	gw, _, cleanup := testutil.AcquireGateway(ctx, t, policies)
	set, err := views.Load()
	require.NoError(t, err)
	router := httprouter.New()
	NewRealm(gw, set, "site-key", false).Mount(router)
	return router, gw, func() {
		cleanup()
		if closeAttempts != nil {
			closeAttempts()
		}
	}
}

func bodyContains(text string) func(*http.Response, *http.Request) error {
	return func(res *http.Response, _ *http.Request) error {
		buf, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if !strings.Contains(string(buf), text) {
			return fmt.Errorf("body does not contain %q", text)
		}
		return nil
	}
}

func TestRegisterAndLockoutJSON(t *testing.T) {
	handler, _, cleanup := acquireRouter(t, true)
	defer cleanup()

	apitest.New().
		Handler(handler).
		Post("/api/auth/register").
		JSON(`{"username":"alice","password":"s3cret!"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.success", true)).
		Assert(jsonpath.Equal("$.username", "alice")).
		Assert(jsonpath.Present("$.token")).
		End()

	apitest.New().
		Handler(handler).
		Post("/api/auth/register").
		JSON(`{"username":"alice","password":"other-password"}`).
		Expect(t).
		Status(http.StatusConflict).
		Assert(jsonpath.Equal("$.success", false)).
		Assert(jsonpath.Equal("$.error", "Username already exists")).
		End()

	for i := 0; i < 4; i++ {
		apitest.New().
			Handler(handler).
			Post("/api/auth/login").
			JSON(`{"username":"alice","password":"wrong","captchaToken":"valid"}`).
			Expect(t).
			Status(http.StatusUnauthorized).
			Assert(jsonpath.Equal("$.error", "Invalid credentials")).
			End()
	}
	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"alice","password":"wrong","captchaToken":"valid"}`).
		Expect(t).
		Status(http.StatusTooManyRequests).
		HeaderPresent("Retry-After").
		Assert(jsonpath.Equal("$.captchaRequired", true)).
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"alice","password":"s3cret!","captchaToken":"valid"}`).
		Expect(t).
		Status(http.StatusTooManyRequests).
		End()
}

func TestLoginJSON(t *testing.T) {
	handler, gw, cleanup := acquireRouter(t, true)
	defer cleanup()
	require.NoError(t, gw.Register(context.Background(), "alice", "s3cret!"))

	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"nobody","password":"whatever"}`).
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Equal("$.success", false)).
		Assert(jsonpath.Equal("$.captchaRequired", true)).
		End()

	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"alice","password":"s3cret!","captchaToken":"forged"}`).
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Equal("$.error", "CAPTCHA verification failed")).
		End()

	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"mallory","password":"s3cret!","captchaToken":"valid"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.error", "Invalid credentials")).
		End()

	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"alice","password":"s3cret!","captchaToken":"valid"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		Assert(jsonpath.Equal("$.username", "alice")).
		Assert(jsonpath.Present("$.token")).
		End()

	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		Body(`{not json`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestVerifyJSON(t *testing.T) {
	handler, gw, cleanup := acquireRouter(t, false)
	defer cleanup()
	id, err := gw.RegisterToken(context.Background(), "alice", "s3cret!")
	require.NoError(t, err)

	apitest.New().
		Handler(handler).
		Post("/api/auth/verify").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.error", "Invalid or expired token")).
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/verify").
		Header("Authorization", "Bearer not-a-token").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/verify").
		Header("Authorization", fmt.Sprintf("Bearer %v", id.Token)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "alice")).
		End()
}

func TestAccountJSON(t *testing.T) {
	handler, gw, cleanup := acquireRouter(t, false)
	defer cleanup()
	id, err := gw.RegisterToken(context.Background(), "alice", "s3cret!")
	require.NoError(t, err)
	bearer := fmt.Sprintf("Bearer %v", id.Token)

	apitest.New().
		Handler(handler).
		Post("/api/auth/password").
		Header("Authorization", bearer).
		JSON(`{"currentPassword":"wrong","newPassword":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/password").
		Header("Authorization", bearer).
		JSON(`{"currentPassword":"s3cret!","newPassword":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		End()
	apitest.New().
		Handler(handler).
		Delete("/api/auth/account").
		Header("Authorization", bearer).
		JSON(`{"password":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username":"alice","password":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestChangePasswordIsRateLimited(t *testing.T) {
	handler, gw, cleanup := acquireRouter(t, true)
	defer cleanup()
	id, err := gw.RegisterToken(context.Background(), "alice", "s3cret!")
	require.NoError(t, err)
	bearer := fmt.Sprintf("Bearer %v", id.Token)

	for i := 1; i <= 4; i++ {
		apitest.New().
			Handler(handler).
			Post("/api/auth/password").
			Header("Authorization", bearer).
			JSON(fmt.Sprintf(`{"currentPassword":"guess-%v","newPassword":"n3w-secret"}`, i)).
			Expect(t).
			Status(http.StatusUnauthorized).
			End()
	}
	apitest.New().
		Handler(handler).
		Post("/api/auth/password").
		Header("Authorization", bearer).
		JSON(`{"currentPassword":"guess-5","newPassword":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusTooManyRequests).
		HeaderPresent("Retry-After").
		End()
	apitest.New().
		Handler(handler).
		Post("/api/auth/password").
		Header("Authorization", bearer).
		JSON(`{"currentPassword":"s3cret!","newPassword":"n3w-secret"}`).
		Expect(t).
		Status(http.StatusTooManyRequests).
		End()
}

func TestSessionPages(t *testing.T) {
	handler, gw, cleanup := acquireRouter(t, false)
	defer cleanup()

	apitest.New().
		Handler(handler).
		Get("/settings").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()

	apitest.New().
		Handler(handler).
		Post("/register").
		FormData("username", "alice").
		FormData("password", "s3cret!").
		FormData("confirmPassword", "different").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(bodyContains("Passwords do not match")).
		End()

	apitest.New().
		Handler(handler).
		Post("/register").
		FormData("username", "alice").
		FormData("password", "s3cret!").
		FormData("confirmPassword", "s3cret!").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		CookiePresent(SessionCookie).
		End()

	apitest.New().
		Handler(handler).
		Post("/login").
		FormData("username", "alice").
		FormData("password", "wrong").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(bodyContains("Invalid credentials")).
		End()

	id, err := gw.LoginSession(context.Background(), auth.Credentials{Username: "alice", Password: "s3cret!"})
	require.NoError(t, err)

	apitest.New().
		Handler(handler).
		Get("/settings").
		Cookie(SessionCookie, id.SessionCookie).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Change password")).
		End()

	apitest.New().
		Handler(handler).
		Get("/login").
		Cookie(SessionCookie, id.SessionCookie).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()

	apitest.New().
		Handler(handler).
		Get("/logout").
		Cookie(SessionCookie, id.SessionCookie).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()

	apitest.New().
		Handler(handler).
		Get("/settings").
		Cookie(SessionCookie, id.SessionCookie).
		Expect(t).
		Status(http.StatusSeeOther).
		End()
}

func TestStatusCode(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{auth.ValidationError{Reason: "x"}, http.StatusBadRequest},
		{auth.Conflict{Username: "alice"}, http.StatusConflict},
		{auth.InvalidCredentials{}, http.StatusUnauthorized},
		{auth.CaptchaRequired{}, http.StatusForbidden},
		{auth.CaptchaFailed{}, http.StatusForbidden},
		{auth.Locked{Until: time.Now()}, http.StatusTooManyRequests},
		{auth.Unauthorized{}, http.StatusUnauthorized},
		{auth.UpstreamUnavailable{Service: "captcha"}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped, cause %w", auth.InvalidCredentials{}), http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	} {
		assert.Equal(t, tc.status, StatusCode(tc.err), "%v", tc.err)
	}
	assert.Equal(t, "Internal server error", Message(errors.New("disk on fire")))
}
