package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/htol/shelf/logger"
)

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs tags argument validation failures as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// CLI runs the command line and returns the process exit code:
// 0 on success, 1 on a runtime error and 2 on a usage error.
func CLI(args []string) int {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "Error:", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return 2
	}
	if !errors.Is(err, context.Canceled) {
		logger.Debug("Runtime error", "command", cmd.CommandPath(), "error", err)
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "shelf",
		Short:         "Personal library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (TOML)")
	flags.StringVar(&ctx.storePath, "store", "", "Library store path (default library.json, or library.db for sqlite)")
	flags.StringVar(&ctx.driver, "driver", "", "Store driver: json or sqlite")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newServeCommand(ctx),
		newAddCommand(ctx),
		newRemoveCommand(ctx),
		newSearchCommand(ctx),
		newListCommand(ctx),
		newToggleCommand(ctx),
		newStatsCommand(ctx),
		newGenresCommand(ctx),
		newExportCommand(ctx),
		newImportCommand(ctx),
	)

	return rootCmd
}
