package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/output"
	"github.com/ldsgroups225/taskora/internal/query"
	"github.com/ldsgroups225/taskora/internal/store"
)

var queryCmd = &cobra.Command{
	Use:     "query <project> <text>",
	Aliases: []string{"q"},
	Short:   "Query issues in natural language",
	Long: `Translates a free-text question into a structured filter via the AI
collaborator and evaluates it against the project's issues. Results
are capped at 10.

Examples:
  taskora query WEB "high priority bugs assigned to me"
  taskora query WEB "unassigned issues created after 2026-01-01"`,
	Args: cobra.ExactArgs(2),
	RunE: queryRun,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func queryRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("query translation needs an AI collaborator: set anthropic.api_key")
	}

	filter, err := client.ParseQuery(ctx, args[1])
	if err != nil {
		return fmt.Errorf("translate query: %w", err)
	}

	if verbose {
		encoded, _ := json.Marshal(filter)
		ui.VerboseLog("Translated filter: %s", encoded)
	}

	viewer := query.Viewer{NameToID: map[string]string{}}
	if me, err := currentUser(ctx, s); err == nil {
		viewer.UserID = me.ID
	}
	users, err := s.ListUsers(ctx, "")
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		viewer.NameToID[strings.ToLower(u.Name)] = u.ID
	}

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: project.ID})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	matches := query.Evaluate(issues, *filter, viewer)
	if len(matches) == 0 {
		ui.Info("No issues match")
		return nil
	}

	names := userNames(ctx, s)
	table := ui.Table([]string{"ID", "TITLE", "STATUS", "PRI", "ASSIGNEE"})
	for _, issue := range matches {
		assignee := "-"
		if issue.AssigneeID != "" {
			if name := names[issue.AssigneeID]; name != "" {
				assignee = name
			} else {
				assignee = shortID(issue.AssigneeID)
			}
		}
		_ = table.Append(
			shortID(issue.ID),
			issue.Title,
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			assignee,
		)
	}
	_ = table.Render()
	return nil
}
