package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/output"
	"github.com/ldsgroups225/taskora/internal/store"
	"github.com/ldsgroups225/taskora/internal/triage"
)

var triageCmd = &cobra.Command{
	Use:     "triage",
	Aliases: []string{"t"},
	Short:   "AI-assisted backlog triage",
}

var triageRankCmd = &cobra.Command{
	Use:   "rank <project>",
	Short: "Score the backlog and stage AI ranking proposals",
	Long: `Scores every non-done issue, asks the AI collaborator for a full
ranking, and stages the result as proposals. The live backlog order is
not touched until 'triage apply'.`,
	Args: cobra.ExactArgs(1),
	RunE: triageRankRun,
}

var triageProposalsCmd = &cobra.Command{
	Use:   "proposals <project>",
	Short: "Show staged ranking proposals",
	Args:  cobra.ExactArgs(1),
	RunE:  triageProposalsRun,
}

var triageApplyCmd = &cobra.Command{
	Use:   "apply <project>",
	Short: "Apply staged ranking proposals to the live backlog order",
	Args:  cobra.ExactArgs(1),
	RunE:  triageApplyRun,
}

var triageAssignCmd = &cobra.Command{
	Use:   "assign [project]",
	Short: "Auto-assign unassigned issues across developers",
	Long: `Distributes unassigned, non-done issues across developers by
priority, current load, and skill affinity. Without a project argument
the run covers all projects.`,
	Args: cobra.MaximumNArgs(1),
	RunE: triageAssignRun,
}

var triageCapacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show each developer's live workload",
	RunE:  triageCapacityRun,
}

func init() {
	triageCmd.AddCommand(triageRankCmd)
	triageCmd.AddCommand(triageProposalsCmd)
	triageCmd.AddCommand(triageApplyCmd)
	triageCmd.AddCommand(triageAssignCmd)
	triageCmd.AddCommand(triageCapacityCmd)
	rootCmd.AddCommand(triageCmd)
}

func triageRankRun(cmd *cobra.Command, args []string) error {
	svc, err := getTriage()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, dataStore, args[0])
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would reprioritize backlog of %s", project.Key)
		return nil
	}

	ui.Info("Ranking backlog of %s...", project.Key)
	outcome, err := svc.Reprioritize(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("reprioritize: %w", err)
	}

	if outcome.Degraded {
		ui.Warning("No proposals staged: %s", outcome.Detail)
		return nil
	}
	ui.Success("Staged %d proposals from %d scored issues", outcome.Proposed, outcome.Scored)
	ui.Info("Review with 'taskora triage proposals %s', then 'taskora triage apply %s'", project.Key, project.Key)
	return nil
}

func triageProposalsRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, s, args[0])
	if err != nil {
		return err
	}

	proposals, err := s.ListProposals(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}

	if len(proposals) == 0 {
		ui.Info("No staged proposals for %s. Run: taskora triage rank %s", project.Key, project.Key)
		return nil
	}

	table := ui.Table([]string{"RANK", "ID", "TITLE", "PRI", "CURRENT", "REASON"})
	for _, issue := range proposals {
		_ = table.Append(
			fmt.Sprintf("%d", *issue.ProposedOrder),
			shortID(issue.ID),
			issue.Title,
			output.PriorityColor(string(issue.Priority)),
			fmt.Sprintf("%d", issue.Order),
			issue.ProposedReason,
		)
	}
	_ = table.Render()
	return nil
}

func triageApplyRun(cmd *cobra.Command, args []string) error {
	svc, err := getTriage()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	project, err := resolveProject(ctx, dataStore, args[0])
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would apply staged proposals in %s", project.Key)
		return nil
	}

	applied, err := svc.ApplyRankings(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("apply rankings: %w", err)
	}

	if applied == 0 {
		ui.Info("No staged proposals to apply in %s", project.Key)
		return nil
	}
	ui.Success("Applied %d proposals to %s", applied, project.Key)
	return nil
}

func triageAssignRun(cmd *cobra.Command, args []string) error {
	svc, err := getTriage()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	projectID := ""
	scope := "all projects"
	if len(args) == 1 {
		project, err := resolveProject(ctx, dataStore, args[0])
		if err != nil {
			return err
		}
		projectID = project.ID
		scope = project.Key
	}

	if dryRun {
		ui.DryRunMsg("Would auto-assign unassigned issues in %s", scope)
		return nil
	}

	ui.Info("Assigning unassigned issues in %s...", scope)
	outcome, err := svc.AutoAssign(ctx, projectID)
	if err != nil {
		return fmt.Errorf("auto-assign: %w", err)
	}

	if outcome.Degraded {
		ui.Warning("No assignments made: %s", outcome.Detail)
		return nil
	}
	ui.Success("Assigned %d of %d candidate issues (%d skipped)", outcome.Assigned, outcome.Candidates, outcome.Skipped)
	return nil
}

func triageCapacityRun(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	devs, err := s.ListUsers(ctx, models.UserRoleDev)
	if err != nil {
		return fmt.Errorf("list developers: %w", err)
	}
	issues, err := s.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	snapshots := triage.EstimateCapacity(devs, issues)
	if len(snapshots) == 0 {
		ui.Info("No developers found")
		return nil
	}

	table := ui.Table([]string{"DEVELOPER", "ACTIVE", "POINTS", "LOAD"})
	for _, snap := range snapshots {
		_ = table.Append(
			snap.Name,
			fmt.Sprintf("%d", snap.ActiveCount),
			fmt.Sprintf("%d", snap.StoryPoints),
			fmt.Sprintf("%.1f", snap.LoadScore),
		)
	}
	_ = table.Render()
	return nil
}
