package users

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/healthtrack/internal/app"
	"github.com/andrebq/healthtrack/internal/cmdflags"
	"github.com/andrebq/healthtrack/internal/config"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var a *app.App
	var dataDir string
	var envFile string
	return &cli.Command{
		Name:  "users",
		Usage: "Manage accounts without going through the web application",
		Flags: []cli.Flag{
			cmdflags.DataDir(&dataDir),
			cmdflags.EnvFile(&envFile),
		},
		Before: func(ctx *cli.Context) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			a, err = app.Open(ctx.Context, cfg, dataDir, app.WithoutPolicies())
			return err
		},
		After: func(ctx *cli.Context) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
		Subcommands: []*cli.Command{
			addCmd(&a),
			deleteCmd(&a),
		},
	}
}

func usernameFlag(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "username",
		Aliases:     []string{"u", "user"},
		Usage:       "Name of the user",
		Destination: out,
		Required:    true,
	}
}

func addCmd(a **app.App) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "add",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			usernameFlag(&username),
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			err := (*a).Gateway.Register(ctx.Context, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "user %v registered\n", username)
			return nil
		},
	}
}

func deleteCmd(a **app.App) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "delete",
		Usage: "Remove a user, its sessions and its data",
		Flags: []cli.Flag{
			usernameFlag(&username),
		},
		Action: func(ctx *cli.Context) error {
			err := (*a).Gateway.RemoveUser(ctx.Context, username)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "user %v removed\n", username)
			return nil
		},
	}
}
