package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/testrun/internal/logging"
	"github.com/newhook/testrun/internal/report"
	"github.com/newhook/testrun/internal/watcher"
)

var (
	flagWatchBranch    string
	flagWatchCommit    string
	flagWatchTestType  string
	flagWatchDryRun    bool
	flagWatchDialect   string
	flagWatchExisting  bool
	flagWatchNoHistory bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir> [api_url]",
	Short: "Parse and upload every log written to a directory",
	Long: `Watch a directory and parse each log file once it stops changing. Each file is
handled like "testrun upload": it is recorded in the history and uploaded unless
--dry-run is set. Files are matched against watch.patterns (default *.log, *.txt).
Stop with Ctrl-C.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&flagWatchBranch, "branch", "b", "", "branch name (default: current git branch)")
	watchCmd.Flags().StringVarP(&flagWatchCommit, "commit", "c", "", "commit id, at least 8 characters (default: git HEAD)")
	watchCmd.Flags().StringVar(&flagWatchTestType, "test-type", "", "test type (default from config, else gvisor)")
	watchCmd.Flags().BoolVar(&flagWatchDryRun, "dry-run", false, "parse and print without uploading")
	watchCmd.Flags().StringVar(&flagWatchDialect, "dialect", "", "log format: gtest, gotest or pytest (default: auto-detect)")
	watchCmd.Flags().BoolVar(&flagWatchExisting, "existing", false, "also process matching files already in the directory")
	watchCmd.Flags().BoolVar(&flagWatchNoHistory, "no-history", false, "do not record runs in the local history")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	c := getConfig()

	base := submission{
		Branch:    flagWatchBranch,
		Commit:    flagWatchCommit,
		TestType:  flagWatchTestType,
		Dialect:   flagWatchDialect,
		DryRun:    flagWatchDryRun,
		NoHistory: flagWatchNoHistory,
	}
	if len(args) > 1 {
		base.APIURL = args[1]
	}
	if err := resolveRevision(ctx, &base); err != nil {
		return err
	}
	// Fail on bad flags before waiting for the first file.
	if err := report.ValidateCommit(base.Commit); err != nil {
		return err
	}
	if !base.DryRun {
		if _, err := report.APIKeyFromEnv(c.Upload.GetAPIKeyEnv()); err != nil {
			return err
		}
	}

	w, err := watcher.New(watcher.Config{
		Dir:             args[0],
		Patterns:        c.Watch.GetPatterns(),
		DebounceDur:     c.Watch.GetDebounce(),
		IncludeExisting: flagWatchExisting,
	})
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		return err
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(out, "Watching %s for test logs (Ctrl-C to stop)\n", args[0])

	processed := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "\nStopped after %d files\n", processed)
			return nil
		case evt := <-w.Events():
			s := base
			s.LogPath = evt.Path
			err := submit(ctx, c, s, out, errOut)
			processed++
			switch {
			case err == nil:
			case errors.Is(err, report.ErrNoTestCases):
				logging.Info("no test cases in log", "path", evt.Path)
			case isReported(err):
				logging.Error("failed to process log", "path", evt.Path, "error", err)
			default:
				logging.Error("failed to process log", "path", evt.Path, "error", err)
				fmt.Fprintf(errOut, "Error processing %s: %v\n", evt.Path, err)
			}
		}
	}
}
