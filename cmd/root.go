package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newhook/testrun/internal/config"
	"github.com/newhook/testrun/internal/logging"
	trsignal "github.com/newhook/testrun/internal/signal"
)

var (
	// rootCtx holds the signal-cancellable context for the application
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// cfg is loaded once per invocation in PersistentPreRunE.
	cfg *config.Config

	flagConfig  string
	flagDebug   bool
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "testrun",
	Short: "Parse test logs and upload the results",
	Long: `testrun reads console output from GoogleTest, go test and pytest runs,
turns it into a list of test case results and uploads them to a results service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logging.Init(logging.Options{
			Dir:   cfg.Log.GetDir(),
			Debug: flagDebug || cfg.Log.Debug,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: debug log disabled: %v\n", err)
		}
		logging.Debug("command started", "command", cmd.CommandPath())

		rootCtx, rootCancel = trsignal.WithSignalCancel(context.Background())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rootCancel != nil {
			rootCancel()
		}
		_ = logging.Close()
	},
}

// reportedError marks an error whose message was already shown to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !isReported(err) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
func GetContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// getConfig returns the loaded config, or an empty one outside a command run.
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./"+config.DefaultFileName+" if present)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "write debug-level records to the debug log")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
}
