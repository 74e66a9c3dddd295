package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ldsgroups225/taskora/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a workspace overview",
	RunE:  statusRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	users, err := s.ListUsers(ctx, "")
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	issues, err := s.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	unassigned := 0
	proposed := 0
	for _, issue := range issues {
		if !issue.Assigned() {
			unassigned++
		}
		if issue.HasProposal() {
			proposed++
		}
	}

	fmt.Printf("Database:  %s\n", viper.GetString("db_path"))
	fmt.Printf("Projects:  %d\n", len(projects))
	fmt.Printf("Users:     %d\n", len(users))
	fmt.Printf("Issues:    %d (%d unassigned, %d with staged proposals)\n", len(issues), unassigned, proposed)

	if newLLMClient() == nil {
		ui.Warning("No AI collaborator configured: triage and query need anthropic.api_key")
	} else {
		ui.Info("AI collaborator: %s", viper.GetString("anthropic.model"))
	}
	return nil
}
