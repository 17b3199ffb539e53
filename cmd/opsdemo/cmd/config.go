package cmd

import (
	"fmt"

	"opsdemo/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write an example configuration file",
	Long: `Write a YAML configuration with every section filled in. CRM credentials
are not part of it; set SF_USERNAME, SF_PASSWORD, SF_TOKEN and SF_DOMAIN instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := config.SaveExample(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to %s\n", path)
	return nil
}
