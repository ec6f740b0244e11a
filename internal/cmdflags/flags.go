package cmdflags

import (
	"github.com/urfave/cli/v2"
)

const (
	DefaultDataDir = "data"
	DefaultEnvFile = ".env"
)

func DataDir(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = DefaultDataDir
	}
	return &cli.StringFlag{
		Name:        "data",
		Aliases:     []string{"d"},
		Usage:       "Directory holding the credential database and one database per user",
		EnvVars:     []string{"HEALTHTRACK_DATA"},
		Value:       *out,
		Destination: out,
	}
}

func EnvFile(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = DefaultEnvFile
	}
	return &cli.StringFlag{
		Name:        "env-file",
		Usage:       "Dotenv file loaded before reading the environment. Secrets should live there or in the environment, never in arguments",
		Value:       *out,
		Destination: out,
	}
}
