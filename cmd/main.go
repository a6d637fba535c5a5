package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/tidx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)
	err := app.Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}
	if err == nil {
		return
	}

	if errors.Is(err, shared.ErrNotImplemented) {
		logger.Warn("not implemented")
		os.Exit(0)
	}
	if hint := errorHint(err); hint != "" {
		logger.Error(err.Error(), "hint", hint)
	} else {
		logger.Error(err.Error())
	}
	os.Exit(1)
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tidx",
		Usage:   "Mirror your TIDAL library into a local SQLite database",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file with TIDX_* overrides",
				Value: ".env",
			},
			&cli.Int64Flag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Local user id",
				Value:   1,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Configure,
		Commands: r.register(),
	}
}

// errorHint suggests the next step for a failure class.
func errorHint(err error) string {
	switch shared.Classify(err) {
	case "Unauthenticated":
		return "run `tidx auth device` to sign in again"
	case "RemoteUnavailable":
		return "TIDAL is unreachable or throttling requests; try again later"
	case "RemoteRejected":
		return "TIDAL refused the request; check the playlist is yours and editable"
	case "NotFound":
		return "check the id with `tidx playlists list`"
	case "LocalWriteFailure":
		return "check database.path in your config and run `tidx setup database`"
	}
	switch {
	case errors.Is(err, shared.ErrNotLinked):
		return "only playlists mirrored from TIDAL can be synced"
	case errors.Is(err, shared.ErrMissingCredentials):
		return "set tidal.client_id in config.toml or TIDX_CLIENT_ID"
	}
	return ""
}
