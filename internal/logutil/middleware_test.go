package logutil

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, zerolog.DebugLevel)
	handler := Middleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := GetOrDefault(r.Context())
		log.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	apitest.New().
		Handler(handler).
		Get("/brew").
		Expect(t).
		Status(http.StatusTeapot).
		HeaderPresent("X-Request-Id").
		End()

	logs := out.String()
	assert.Contains(t, logs, `"message":"inside handler"`)
	assert.Contains(t, logs, `"req_id"`)
	assert.Contains(t, logs, `"status":418`)
	assert.Contains(t, logs, `"app":"healthtrack"`)
}
