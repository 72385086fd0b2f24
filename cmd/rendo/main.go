package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errInvalid is returned by commands that ran fine but found something to report in the exit code.
var errInvalid = errors.New("invalid")

var (
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rendo",
		Short:         "Yard interlocking controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	root.AddCommand(newServeCmd(), newCheckCmd(), newRouteCmd(), newJournalCmd(), newConsoleCmd())
	return root
}

func setupLogging(level, format string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("log format: unknown format %q", format)
	}
	cfg.Level = lvl
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func main() {
	defer zap.S().Sync()
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errInvalid):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "rendo: %s\n", err)
		os.Exit(2)
	}
}
