package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/testrun/internal/db"
	"github.com/newhook/testrun/internal/logparser"
)

var (
	flagHistoryLimit  int
	flagHistoryBranch string
	flagHistoryPrune  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded test runs",
	Long:  `List test runs recorded in the local history database, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Show the test cases of a recorded run",
	Long:  `Show a recorded run and its test cases. The id may be abbreviated to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&flagHistoryBranch, "branch", "", "only list runs for this branch")
	historyCmd.Flags().IntVar(&flagHistoryPrune, "prune", -1, "delete all but the newest N runs")
	historyCmd.AddCommand(historyShowCmd)
}

func openHistoryForRead() (*db.DB, error) {
	c := getConfig()
	if !c.History.IsEnabled() {
		return nil, fmt.Errorf("run history is disabled (history.enabled = false)")
	}
	return db.OpenPath(GetContext(), c.History.GetPath())
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	history, err := openHistoryForRead()
	if err != nil {
		return err
	}
	defer history.Close()

	if flagHistoryPrune >= 0 {
		n, err := history.PruneRuns(ctx, flagHistoryPrune)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
		return nil
	}

	runs, err := history.ListRuns(ctx, db.ListOptions{Branch: flagHistoryBranch, Limit: flagHistoryLimit})
	if err != nil {
		return err
	}
	newRenderer(cmd.OutOrStdout()).History(runs)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	history, err := openHistoryForRead()
	if err != nil {
		return err
	}
	defer history.Close()

	run, err := history.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	cases, err := history.TestCases(ctx, run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "Log:     %s\n", run.LogPath)
	fmt.Fprintf(out, "Branch:  %s\n", run.Branch)
	fmt.Fprintf(out, "Commit:  %s\n", run.CommitID)
	switch {
	case run.Uploaded:
		fmt.Fprintf(out, "Upload:  ok (remote id %s)\n", run.RemoteID)
	case run.UploadError != "":
		fmt.Fprintf(out, "Upload:  failed: %s\n", run.UploadError)
	default:
		fmt.Fprintln(out, "Upload:  not uploaded")
	}

	r := newRenderer(out)
	fmt.Fprintln(out)
	r.Summary(logparser.Result{Dialect: logparser.Dialect(run.Dialect), Cases: cases})
	r.Cases(cases)
	return nil
}
