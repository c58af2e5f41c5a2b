package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagUploadBranch    string
	flagUploadCommit    string
	flagUploadTestType  string
	flagUploadDryRun    bool
	flagUploadDialect   string
	flagUploadNoHistory bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <log_file> [api_url]",
	Short: "Parse a test log and upload the results",
	Long: `Parse a test log and upload the results to the results service.

The API token is read from the API_KEY environment variable (see upload.api_key_env).
With --dry-run nothing is sent; the parsed cases, the JSON payload and the target URL
are printed instead. api_url may be omitted when upload.api_url is configured.
Without --branch or --commit they are read from the git checkout in the working directory.`,
	Example: `  API_KEY=... testrun upload build/test.log https://results.example.com/api -b main -c 0123abcd
  testrun upload test.log https://results.example.com/api -b main -c 0123abcd --dry-run`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&flagUploadBranch, "branch", "b", "", "branch name (default: current git branch)")
	uploadCmd.Flags().StringVar(&flagUploadBranch, "branch-name", "", "alias for --branch")
	uploadCmd.Flags().StringVarP(&flagUploadCommit, "commit", "c", "", "commit id, at least 8 characters (default: git HEAD)")
	uploadCmd.Flags().StringVar(&flagUploadCommit, "commit-id", "", "alias for --commit")
	uploadCmd.Flags().StringVar(&flagUploadTestType, "test-type", "", "test type (default from config, else gvisor)")
	uploadCmd.Flags().BoolVar(&flagUploadDryRun, "dry-run", false, "parse and print without uploading")
	uploadCmd.Flags().StringVar(&flagUploadDialect, "dialect", "", "log format: gtest, gotest or pytest (default: auto-detect)")
	uploadCmd.Flags().BoolVar(&flagUploadNoHistory, "no-history", false, "do not record the run in the local history")
	_ = uploadCmd.Flags().MarkHidden("branch-name")
	_ = uploadCmd.Flags().MarkHidden("commit-id")
}

func runUpload(cmd *cobra.Command, args []string) error {
	s := submission{
		LogPath:   args[0],
		Branch:    flagUploadBranch,
		Commit:    flagUploadCommit,
		TestType:  flagUploadTestType,
		Dialect:   flagUploadDialect,
		DryRun:    flagUploadDryRun,
		NoHistory: flagUploadNoHistory,
	}
	if len(args) > 1 {
		s.APIURL = args[1]
	}
	ctx := GetContext()
	if err := resolveRevision(ctx, &s); err != nil {
		return err
	}
	return submit(ctx, getConfig(), s, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
