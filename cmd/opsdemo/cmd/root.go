package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"opsdemo/internal/config"
	"opsdemo/internal/crm"
	"opsdemo/internal/crm/salesforce"
	"opsdemo/internal/logger"
	"opsdemo/internal/models"

	"github.com/spf13/cobra"
)

// Output formats for the one-shot commands
const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command. Without a subcommand it serves.
var rootCmd = &cobra.Command{
	Use:   "opsdemo",
	Short: "DevOps demo service",
	Long: `opsdemo is a small HTTP service exposing a health check, a static task
catalog and a normalized view of the CRM integration status.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputTable, "output format: table or json")
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*models.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// checkOutputFormat rejects anything but table or json.
func checkOutputFormat() error {
	switch outputFormat {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table or json)", outputFormat)
	}
}

// cliLogger keeps diagnostics of one-shot commands off stdout.
func cliLogger(w io.Writer) *slog.Logger {
	return logger.New(w, "text", slog.LevelWarn)
}

// newCRMService builds the status wrapper around the Salesforce connector.
func newCRMService(cfg *models.Config, log *slog.Logger) *crm.Service {
	connector := salesforce.NewConnector(cfg.CRM.Timeout,
		salesforce.WithLoginURL(cfg.CRM.LoginURL),
		salesforce.WithAPIVersion(cfg.CRM.APIVersion),
		salesforce.WithLogger(log),
	)
	return crm.NewService(connector,
		crm.WithTimeout(cfg.CRM.Timeout),
		crm.WithLogger(log),
	)
}
