package serve

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/andrebq/healthtrack/internal/app"
	"github.com/andrebq/healthtrack/internal/cmdflags"
	"github.com/andrebq/healthtrack/internal/config"
	"github.com/andrebq/healthtrack/internal/httpserver"
	"github.com/andrebq/healthtrack/internal/logutil"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func Cmd() *cli.Command {
	host := "localhost"
	port := 3000
	dataDir := ""
	envFile := ""
	purgeEvery := time.Hour
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web application and the JSON api",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "host",
				Usage:       "Interface to listen on",
				Value:       host,
				Destination: &host,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "Port to listen on",
				EnvVars:     []string{"PORT"},
				Value:       port,
				Destination: &port,
			},
			&cli.DurationFlag{
				Name:        "purge-sessions-every",
				Usage:       "How often expired sessions are removed from the credential database",
				Value:       purgeEvery,
				Destination: &purgeEvery,
			},
			cmdflags.DataDir(&dataDir),
			cmdflags.EnvFile(&envFile),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			logger := logutil.New(os.Stderr, cfg.Level())
			appCtx := logutil.WithLogger(ctx.Context, logger)

			a, err := app.Open(appCtx, cfg, dataDir)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := a.Handler(appCtx)
			if err != nil {
				return err
			}
			logger.Info().
				Str("data", dataDir).
				Bool("captcha", cfg.Captcha.Enabled).
				Bool("lockout", cfg.Lockout.Enabled).
				Msg("Configuration loaded")

			group, groupCtx := errgroup.WithContext(appCtx)
			group.Go(func() error {
				return httpserver.Serve(groupCtx, net.JoinHostPort(host, strconv.Itoa(port)), handler)
			})
			group.Go(func() error {
				return a.PurgeSessions(groupCtx, purgeEvery)
			})
			return group.Wait()
		},
	}
}
