package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/output"
	"github.com/ldsgroups225/taskora/internal/store"
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	Aliases: []string{"i"},
	Short:   "Manage issues",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project> <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(2),
	RunE:  issueAddRun,
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List issues in a project",
	Args:    cobra.ExactArgs(1),
	RunE:    issueListRun,
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE:  issueShowRun,
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update issue fields",
	Args:  cobra.ExactArgs(1),
	RunE:  issueUpdateRun,
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue and its descendants",
	Args:    cobra.ExactArgs(1),
	RunE:    issueDeleteRun,
}

func init() {
	issueAddCmd.Flags().String("description", "", "Issue description")
	issueAddCmd.Flags().String("priority", "medium", "Priority: low, medium, high, critical")
	issueAddCmd.Flags().String("type", "task", "Type: initiative, epic, story, task, bug, subtask")
	issueAddCmd.Flags().String("parent", "", "Parent issue id")
	issueAddCmd.Flags().String("assignee", "", "Assignee user id")
	issueAddCmd.Flags().Int("estimate", 0, "Story point estimate")

	issueListCmd.Flags().String("status", "", "Filter by status")
	issueListCmd.Flags().String("assignee", "", "Filter by assignee user id")
	issueListCmd.Flags().Bool("unassigned", false, "Only unassigned issues")

	issueUpdateCmd.Flags().String("title", "", "New title")
	issueUpdateCmd.Flags().String("description", "", "New description")
	issueUpdateCmd.Flags().String("status", "", "New status")
	issueUpdateCmd.Flags().String("priority", "", "New priority")
	issueUpdateCmd.Flags().String("type", "", "New type")
	issueUpdateCmd.Flags().String("assignee", "", "New assignee user id (use 'none' to unassign)")
	issueUpdateCmd.Flags().Int("estimate", -1, "New story point estimate")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	description, _ := cmd.Flags().GetString("description")
	priorityStr, _ := cmd.Flags().GetString("priority")
	typeStr, _ := cmd.Flags().GetString("type")
	parentArg, _ := cmd.Flags().GetString("parent")
	assigneeID, _ := cmd.Flags().GetString("assignee")
	estimate, _ := cmd.Flags().GetInt("estimate")

	priority := models.IssuePriority(priorityStr)
	if !models.ValidIssuePriority(priority) {
		return fmt.Errorf("invalid priority: %s", priorityStr)
	}
	issueType := models.IssueType(typeStr)
	if !models.ValidIssueType(issueType) {
		return fmt.Errorf("invalid type: %s", typeStr)
	}

	parentID := ""
	if parentArg != "" {
		parent, err := findIssue(ctx, s, project.ID, parentArg)
		if err != nil {
			return fmt.Errorf("resolve parent: %w", err)
		}
		parentID = parent.ID
	}

	creatorID := ""
	if me, err := currentUser(ctx, s); err == nil {
		creatorID = me.ID
	}

	if dryRun {
		ui.DryRunMsg("Would create %s %q in %s", issueType, args[1], project.Key)
		return nil
	}

	issue := &models.Issue{
		ProjectID:   project.ID,
		ParentID:    parentID,
		Title:       args[1],
		Description: description,
		Status:      models.IssueStatusBacklog,
		Priority:    priority,
		Type:        issueType,
		AssigneeID:  assigneeID,
		CreatorID:   creatorID,
		Estimate:    estimate,
	}
	if err := s.CreateIssue(ctx, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created %s %s", issueType, output.Cyan(shortID(issue.ID)))
	return nil
}

func issueListRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	statusStr, _ := cmd.Flags().GetString("status")
	assigneeID, _ := cmd.Flags().GetString("assignee")
	unassigned, _ := cmd.Flags().GetBool("unassigned")

	filter := store.IssueListFilter{
		ProjectID:  project.ID,
		AssigneeID: assigneeID,
		Unassigned: unassigned,
	}
	if statusStr != "" {
		status := models.IssueStatus(statusStr)
		if !models.ValidIssueStatus(status) {
			return fmt.Errorf("invalid status: %s", statusStr)
		}
		filter.Status = status
	}

	issues, err := s.ListIssues(ctx, filter)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	if len(issues) == 0 {
		ui.Info("No issues found in %s", project.Key)
		return nil
	}

	names := userNames(ctx, s)

	table := ui.Table([]string{"ID", "TYPE", "TITLE", "STATUS", "PRI", "PTS", "ASSIGNEE"})
	for _, issue := range issues {
		assignee := "-"
		if issue.AssigneeID != "" {
			assignee = names[issue.AssigneeID]
			if assignee == "" {
				assignee = shortID(issue.AssigneeID)
			}
		}
		pts := "-"
		if issue.Estimate > 0 {
			pts = fmt.Sprintf("%d", issue.Estimate)
		}
		_ = table.Append(
			shortID(issue.ID),
			string(issue.Type),
			issue.Title,
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			pts,
			assignee,
		)
	}
	_ = table.Render()
	return nil
}

func issueShowRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	issue, err := findIssue(ctx, s, "", args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Title:    %s\n", issue.Title)
	fmt.Printf("ID:       %s\n", issue.ID)
	fmt.Printf("Type:     %s\n", issue.Type)
	fmt.Printf("Status:   %s\n", output.StatusColor(string(issue.Status)))
	fmt.Printf("Priority: %s\n", output.PriorityColor(string(issue.Priority)))
	if issue.Estimate > 0 {
		fmt.Printf("Estimate: %d points\n", issue.Estimate)
	}
	if issue.ParentID != "" {
		fmt.Printf("Parent:   %s\n", shortID(issue.ParentID))
	}
	if issue.AssigneeID != "" {
		assignee := shortID(issue.AssigneeID)
		if u, err := s.GetUser(ctx, issue.AssigneeID); err == nil {
			assignee = u.Name
		}
		fmt.Printf("Assignee: %s\n", assignee)
	}
	fmt.Printf("Order:    %d\n", issue.Order)
	if issue.HasProposal() {
		fmt.Printf("Proposed: rank %d", *issue.ProposedOrder)
		if issue.ProposedReason != "" {
			fmt.Printf(" (%s)", issue.ProposedReason)
		}
		fmt.Println()
	}
	if issue.AIAssignedAt != nil {
		fmt.Printf("AI-assigned:       %s\n", issue.AIAssignedAt.Format("2006-01-02 15:04"))
	}
	if issue.AIReprioritizedAt != nil {
		fmt.Printf("AI-reprioritized:  %s\n", issue.AIReprioritizedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Created:  %s\n", issue.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Updated:  %s\n", issue.UpdatedAt.Format("2006-01-02 15:04"))
	if issue.Description != "" {
		fmt.Printf("\n%s\n", issue.Description)
	}
	return nil
}

func issueUpdateRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	issue, err := findIssue(ctx, s, "", args[0])
	if err != nil {
		return err
	}

	var patch store.IssuePatch

	if v, _ := cmd.Flags().GetString("title"); v != "" {
		patch.Title = &v
	}
	if cmd.Flags().Changed("description") {
		v, _ := cmd.Flags().GetString("description")
		patch.Description = &v
	}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		status := models.IssueStatus(v)
		if !models.ValidIssueStatus(status) {
			return fmt.Errorf("invalid status: %s", v)
		}
		patch.Status = &status
	}
	if v, _ := cmd.Flags().GetString("priority"); v != "" {
		priority := models.IssuePriority(v)
		if !models.ValidIssuePriority(priority) {
			return fmt.Errorf("invalid priority: %s", v)
		}
		patch.Priority = &priority
	}
	if v, _ := cmd.Flags().GetString("type"); v != "" {
		issueType := models.IssueType(v)
		if !models.ValidIssueType(issueType) {
			return fmt.Errorf("invalid type: %s", v)
		}
		patch.Type = &issueType
	}
	if v, _ := cmd.Flags().GetString("assignee"); v != "" {
		if v == "none" {
			empty := ""
			patch.AssigneeID = &empty
		} else {
			user, err := s.GetUser(ctx, v)
			if err != nil {
				return fmt.Errorf("resolve assignee: %w", err)
			}
			patch.AssigneeID = &user.ID
		}
	}
	if v, _ := cmd.Flags().GetInt("estimate"); v >= 0 {
		patch.Estimate = &v
	}

	if patch == (store.IssuePatch{}) {
		return fmt.Errorf("nothing to update: pass at least one field flag")
	}

	if dryRun {
		ui.DryRunMsg("Would update issue %s", shortID(issue.ID))
		return nil
	}

	updated, err := s.PatchIssue(ctx, issue.ID, patch)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	ui.Success("Updated %s (%s / %s)", output.Cyan(shortID(updated.ID)), updated.Status, updated.Priority)
	return nil
}

func issueDeleteRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	issue, err := findIssue(ctx, s, "", args[0])
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s and its descendants", shortID(issue.ID))
		return nil
	}

	if err := s.DeleteIssue(ctx, issue.ID); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}

	ui.Success("Deleted %s", shortID(issue.ID))
	return nil
}

// findIssue resolves an issue by exact id or unique id prefix. When
// projectID is set, prefix matching is scoped to that project.
func findIssue(ctx context.Context, s store.Store, projectID, idOrPrefix string) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, idOrPrefix)
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	prefix := strings.ToUpper(idOrPrefix)
	var matches []*models.Issue
	for _, candidate := range issues {
		if strings.HasPrefix(candidate.ID, prefix) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue id %s matches %d issues", idOrPrefix, len(matches))
	}
}

// userNames returns a lookup of user id to display name.
func userNames(ctx context.Context, s store.Store) map[string]string {
	names := map[string]string{}
	users, err := s.ListUsers(ctx, "")
	if err != nil {
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}
