package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/andrebq/healthtrack/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteVerify(t *testing.T, handler func(calls int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		handler(n, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func answer(w http.ResponseWriter, success bool) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": success})
}

func TestCaptchaAccepted(t *testing.T) {
	srv, calls := siteVerify(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "captcha-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "client-response", r.PostForm.Get("response"))
		assert.Equal(t, "10.0.0.1", r.PostForm.Get("remoteip"))
		answer(w, true)
	})
	v := auth.NewRecaptchaVerifier("captcha-secret", srv.URL, srv.Client())
	ok, err := v.Verify(context.Background(), "client-response", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCaptchaRejected(t *testing.T) {
	srv, calls := siteVerify(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		answer(w, false)
	})
	v := auth.NewRecaptchaVerifier("captcha-secret", srv.URL, srv.Client())
	ok, err := v.Verify(context.Background(), "bad", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "a negative answer is not retried")
}

func TestCaptchaRetriesServerErrors(t *testing.T) {
	srv, calls := siteVerify(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		answer(w, true)
	})
	v := auth.NewRecaptchaVerifier("captcha-secret", srv.URL, srv.Client())
	ok, err := v.Verify(context.Background(), "client-response", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestCaptchaUpstreamDown(t *testing.T) {
	srv, calls := siteVerify(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	v := auth.NewRecaptchaVerifier("captcha-secret", srv.URL, srv.Client())
	ok, err := v.Verify(context.Background(), "client-response", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, auth.UpstreamUnavailable{Service: "captcha"})
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "at most two calls")
}

func TestCaptchaClientErrorNotRetried(t *testing.T) {
	srv, calls := siteVerify(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	v := auth.NewRecaptchaVerifier("captcha-secret", srv.URL, srv.Client())
	_, err := v.Verify(context.Background(), "client-response", "")
	assert.ErrorIs(t, err, auth.UpstreamUnavailable{})
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
