package logutil

import (
	"fmt"

	"github.com/rs/zerolog"
)

type (
	// RecoveryLogger lets gorilla/handlers.RecoveryHandler report panics
	// through zerolog.
	RecoveryLogger struct {
		Logger zerolog.Logger
	}
)

func (r RecoveryLogger) Println(v ...interface{}) {
	r.Logger.Error().Msg(fmt.Sprint(v...))
}
