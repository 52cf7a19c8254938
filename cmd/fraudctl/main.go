package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdin, os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fraudctl: %v\n", err)
		os.Exit(1)
	}
}

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to the service configuration file",
		Value: config.DefaultPath,
	}

	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level written to stderr [debug, info, warn, error]",
		Value: "warn",
	}
)

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "fraudctl",
		Usage:   "Operate the fraud scoring model store",
		Version: version,
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			slog.SetDefault(telemetry.NewLogger(os.Stderr, cmd.String(logLevelFlag.Name)))
			return ctx, nil
		},
		Commands: []*cli.Command{
			bootstrapCmd(stdout),
			inspectCmd(stdout),
			scoreCmd(stdin, stdout),
		},
	}
}
