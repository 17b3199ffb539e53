package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"opsdemo/internal/models"
	"opsdemo/internal/storage"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var taskStatusFilter string

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Print the task catalog",
	Long:  `Print the tasks the server would return from /api/tasks, optionally filtered by status.`,
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVar(&taskStatusFilter, "status", "", "only show tasks with this status (pending, in_progress, done)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(); err != nil {
		return err
	}

	var status string
	if taskStatusFilter != "" {
		parsed, err := models.ParseTaskStatus(taskStatusFilter)
		if err != nil {
			return err
		}
		status = parsed
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	defer store.Close()

	tasks, err := store.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if status != "" {
		tasks = slices.DeleteFunc(tasks, func(t models.Task) bool {
			return t.Status != status
		})
	}

	return printTasks(cmd.OutOrStdout(), outputFormat, tasks)
}

func printTasks(w io.Writer, format string, tasks []models.Task) error {
	if format == outputJSON {
		if tasks == nil {
			tasks = []models.Task{}
		}
		output, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode tasks: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Title", "Status", "Description")
	for _, t := range tasks {
		table.Append([]string{strconv.Itoa(t.ID), t.Title, t.Status, t.Description})
	}
	return table.Render()
}
