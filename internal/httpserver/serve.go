package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/healthtrack/internal/logutil"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownGrace = 30 * time.Second
)

// Serve runs handler on bind until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lst, handler)
}

// ServeListener is like Serve but uses an already bound listener,
// which lets tests pick a random port.
func ServeListener(ctx context.Context, lst net.Listener, handler http.Handler) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lst.Addr().String()).Logger()
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 2,
		BaseContext: func(net.Listener) context.Context {
			return logutil.WithLogger(context.Background(), log)
		},
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Msg("Starting HTTP server")
		err := server.Serve(lst)
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("Initiating shutdown process")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		log.Info().Err(err).Msg("Shutdown completed")
		return err
	})
	return group.Wait()
}
