package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/store"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"proj", "p"},
	Short:   "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <key> <name>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(2),
	RunE:  projectAddRun,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all projects",
	RunE:    projectListRun,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <key-or-id>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE:  projectShowRun,
}

var projectDeleteCmd = &cobra.Command{
	Use:     "delete <key-or-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a project and all of its issues",
	Args:    cobra.ExactArgs(1),
	RunE:    projectDeleteRun,
}

func init() {
	projectAddCmd.Flags().String("description", "", "Project description")
	projectAddCmd.Flags().String("lead", "", "Lead user id")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	description, _ := cmd.Flags().GetString("description")
	leadID, _ := cmd.Flags().GetString("lead")

	key := models.NormalizeProjectKey(args[0])
	if key == "" {
		return fmt.Errorf("invalid project key: %q", args[0])
	}

	if dryRun {
		ui.DryRunMsg("Would create project %s (%s)", key, args[1])
		return nil
	}

	project := &models.Project{
		Key:         key,
		Name:        args[1],
		Description: description,
		LeadID:      leadID,
	}
	if err := s.CreateProject(ctx, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Created project %s (%s)", key, shortID(project.ID))
	return nil
}

func projectListRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if len(projects) == 0 {
		ui.Info("No projects. Create one with: taskora project add <key> <name>")
		return nil
	}

	table := ui.Table([]string{"KEY", "NAME", "LEAD", "ID"})
	for _, p := range projects {
		lead := "-"
		if p.LeadID != "" {
			if u, err := s.GetUser(ctx, p.LeadID); err == nil {
				lead = u.Name
			}
		}
		_ = table.Append(p.Key, p.Name, lead, shortID(p.ID))
	}
	_ = table.Render()
	return nil
}

func projectShowRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Project:     %s\n", project.Name)
	fmt.Printf("Key:         %s\n", project.Key)
	fmt.Printf("ID:          %s\n", project.ID)
	if project.Description != "" {
		fmt.Printf("Description: %s\n", project.Description)
	}
	if project.LeadID != "" {
		lead := project.LeadID
		if u, err := s.GetUser(ctx, project.LeadID); err == nil {
			lead = u.Name
		}
		fmt.Printf("Lead:        %s\n", lead)
	}
	fmt.Printf("Created:     %s\n", project.CreatedAt.Format("2006-01-02 15:04"))

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: project.ID})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	counts := map[models.IssueStatus]int{}
	for _, issue := range issues {
		counts[issue.Status]++
	}
	fmt.Printf("Issues:      %d total", len(issues))
	for _, st := range []models.IssueStatus{models.IssueStatusBacklog, models.IssueStatusTodo, models.IssueStatusInProgress, models.IssueStatusInReview, models.IssueStatusDone} {
		if counts[st] > 0 {
			fmt.Printf(", %d %s", counts[st], st)
		}
	}
	fmt.Println()
	return nil
}

func projectDeleteRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete project %s and all of its issues", project.Key)
		return nil
	}

	if err := s.DeleteProject(ctx, project.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	ui.Success("Deleted project %s", project.Key)
	return nil
}

// resolveProject looks up a project by key first, then by id.
func resolveProject(ctx context.Context, s store.Store, keyOrID string) (*models.Project, error) {
	project, err := s.GetProjectByKey(ctx, models.NormalizeProjectKey(keyOrID))
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	project, err = s.GetProject(ctx, keyOrID)
	if err != nil {
		return nil, fmt.Errorf("project not found: %s", keyOrID)
	}
	return project, nil
}

// shortID returns a truncated id for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
