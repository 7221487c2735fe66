// Package cli implements the sisyphus command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/wehubfusion/Sisyphus/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	debug   bool
	envFile string
	noColor bool

	logger = zap.NewNop()
)

// Execute runs the root command with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sisyphus",
		Short: "Sisyphus - push batches of work through a retrying task engine",
		Long: `Sisyphus runs a function over a collection of input items under bounded
concurrency, retries failed invocations per policy, routes each item through
its own proxy, and reports the aggregate outcome.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zapcore.InfoLevel
			if debug {
				level = zapcore.DebugLevel
			}
			logger = logging.New(level)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
