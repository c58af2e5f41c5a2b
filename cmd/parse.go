package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagParseDialect string
	flagParseJSON    bool
	flagParseDetails bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <log_file>",
	Short: "Parse a test log and print the results",
	Long:  `Parse a test log and print the detected test cases without uploading or recording them.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().StringVar(&flagParseDialect, "dialect", "", "log format: gtest, gotest or pytest (default: auto-detect)")
	parseCmd.Flags().BoolVar(&flagParseJSON, "json", false, "print the test cases as JSON")
	parseCmd.Flags().BoolVar(&flagParseDetails, "details", false, "print every test case with its logs")
}

func runParse(cmd *cobra.Command, args []string) error {
	res, err := parseLog(getConfig(), args[0], flagParseDialect)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagParseJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(res.Cases) == 0 {
		fmt.Fprintln(out, "No test cases found")
		return nil
	}
	r := newRenderer(out)
	r.Summary(res)
	if flagParseDetails {
		r.Cases(res.Cases)
	}
	return nil
}
