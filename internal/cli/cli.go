package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"ytrag/internal/logging"
)

// Run executes the ytrag command line application.
func Run(ctx context.Context, args []string, version string) error {
	var logLevel, logFormat string

	app := &cli.Command{
		Name:    "ytrag",
		Usage:   "Index YouTube transcripts and search them semantically",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("YTRAG_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console or json)",
				Value:       "console",
				Sources:     cli.EnvVars("YTRAG_LOG_FORMAT"),
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := logging.Configure(logLevel, logFormat); err != nil {
				return ctx, err
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdIndex(),
			cmdSearch(),
			cmdChat(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("command failed", "error", err)
		return err
	}
	return nil
}
