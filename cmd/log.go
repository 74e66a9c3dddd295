package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/output"
)

var logCmd = &cobra.Command{
	Use:   "log <project>",
	Short: "Show the agent activity log",
	Args:  cobra.ExactArgs(1),
	RunE:  logRun,
}

func init() {
	logCmd.Flags().Int("limit", 20, "Maximum entries to show")
	rootCmd.AddCommand(logCmd)
}

func logRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := s.ListAgentLogs(ctx, project.ID, limit)
	if err != nil {
		return fmt.Errorf("list agent logs: %w", err)
	}

	if len(entries) == 0 {
		ui.Info("No agent activity for %s", project.Key)
		return nil
	}

	table := ui.Table([]string{"WHEN", "ACTION", "STATUS", "ISSUE", "RESULT"})
	for _, entry := range entries {
		status := string(entry.Status)
		switch entry.Status {
		case "success":
			status = output.Green(status)
		case "failed":
			status = output.Red(status)
		}
		issue := "-"
		if entry.IssueID != "" {
			issue = shortID(entry.IssueID)
		}
		result := entry.Result
		if entry.Error != "" {
			result = entry.Error
		}
		_ = table.Append(
			entry.CreatedAt.Format("2006-01-02 15:04"),
			entry.Action,
			status,
			issue,
			result,
		)
	}
	_ = table.Render()
	return nil
}
