package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"opsdemo/internal/crm"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// crmStatusCmd represents the crm-status command
var crmStatusCmd = &cobra.Command{
	Use:   "crm-status",
	Short: "Check the CRM integration once",
	Long: `Run a single status check through the same wrapper the server uses.
Credentials come from SF_USERNAME, SF_PASSWORD, SF_TOKEN and SF_DOMAIN.

The exit code is 0 for every outcome; the status is part of the output.`,
	Args: cobra.NoArgs,
	RunE: runCRMStatus,
}

func init() {
	rootCmd.AddCommand(crmStatusCmd)
}

func runCRMStatus(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	service := newCRMService(cfg, cliLogger(cmd.ErrOrStderr()))
	result := service.GetStatus(cmd.Context())

	return printStatus(cmd.OutOrStdout(), outputFormat, result)
}

func printStatus(w io.Writer, format string, result crm.Result) error {
	if format == outputJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	org, count := "-", "-"
	if v, ok := result.Org(); ok {
		org = v
	}
	if v, ok := result.ContactsCount(); ok {
		count = strconv.Itoa(v)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	table.Append([]string{"Status", result.State().String()})
	table.Append([]string{"Org", org})
	table.Append([]string{"Contacts", count})
	return table.Render()
}
