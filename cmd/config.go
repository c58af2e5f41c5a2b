package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/testrun/internal/config"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage testrun.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a documented config file",
	Long:  `Write a config file with every option and its default value explained.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagConfigForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultFileName
	if len(args) > 0 {
		path = args[0]
	}
	if err := getConfig().SaveDocumentedConfig(path, flagConfigForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	content, err := getConfig().GenerateDocumentedConfig()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}
