package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrebq/healthtrack/cmd/healthtrack/serve"
	"github.com/andrebq/healthtrack/cmd/healthtrack/users"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "healthtrack",
		Usage: "Personal health tracking with one private database per user",
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
