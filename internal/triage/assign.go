package triage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/store"
)

// ErrNoAssigner is returned when the assignment workflow runs without
// a configured AI collaborator.
var ErrNoAssigner = errors.New("no assignment collaborator configured (set anthropic.api_key)")

// AssignOutcome summarizes one auto-assignment run.
type AssignOutcome struct {
	Candidates int // unassigned issues submitted
	Assigned   int // assignments applied
	Skipped    int // stale decisions (issue gone or assigned meanwhile)
	Degraded   bool
	Detail     string
}

// AutoAssign distributes unassigned, non-done issues across available
// developers. projectID may be empty to run across all projects, in
// which case each project is processed sequentially under its own
// lock so the sweep serializes with any concurrent scoped run.
//
// Each decision is applied independently: the issue is re-fetched and
// patched only if it still exists and is still unassigned, so a race
// with a concurrent manual assignment skips that one item without
// aborting the batch. A failed or empty collaborator response degrades
// to a logged no-op.
func (s *Service) AutoAssign(ctx context.Context, projectID string) (*AssignOutcome, error) {
	if s.assigner == nil {
		return nil, ErrNoAssigner
	}
	if projectID == "" {
		return s.autoAssignAll(ctx)
	}
	unlock := s.locks.lock(projectID)
	defer unlock()
	return s.autoAssignProject(ctx, projectID)
}

// autoAssignAll sweeps every project in turn. Locks are taken
// per project, never globally, so a long sweep only ever excludes
// the one project it is currently working on.
func (s *Service) autoAssignAll(ctx context.Context) (*AssignOutcome, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	total := &AssignOutcome{Degraded: true, Detail: "nothing to assign"}
	var errs []error
	for _, p := range projects {
		outcome, err := func() (*AssignOutcome, error) {
			unlock := s.locks.lock(p.ID)
			defer unlock()
			return s.autoAssignProject(ctx, p.ID)
		}()
		if err != nil {
			errs = append(errs, err)
		}
		if outcome == nil {
			continue
		}
		total.Candidates += outcome.Candidates
		total.Assigned += outcome.Assigned
		total.Skipped += outcome.Skipped
		if !outcome.Degraded {
			total.Degraded = false
			total.Detail = ""
		}
	}
	return total, errors.Join(errs...)
}

// autoAssignProject runs one project's assignment pass. The caller
// holds the project lock.
func (s *Service) autoAssignProject(ctx context.Context, projectID string) (*AssignOutcome, error) {
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{
		ProjectID:  projectID,
		Unassigned: true,
		NotStatus:  models.IssueStatusDone,
	})
	if err != nil {
		return nil, fmt.Errorf("list unassigned issues: %w", err)
	}

	users, err := s.store.ListUsers(ctx, models.UserRoleDev)
	if err != nil {
		return nil, fmt.Errorf("list developers: %w", err)
	}

	// Capacity reflects all of each developer's issues, not just the
	// scoped project.
	allIssues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	capacity := EstimateCapacity(users, allIssues)

	if len(issues) == 0 || len(capacity) == 0 {
		return &AssignOutcome{Degraded: true, Detail: "nothing to assign"}, nil
	}

	// Priority-first ordering, stable otherwise.
	sort.SliceStable(issues, func(i, j int) bool {
		return models.PriorityWeight(issues[i].Priority) > models.PriorityWeight(issues[j].Priority)
	})

	items := make([]RankItem, 0, len(issues))
	now := time.Now().UTC()
	for _, issue := range issues {
		items = append(items, RankItem{
			ID:       issue.ID,
			Title:    issue.Title,
			Priority: issue.Priority,
			RawScore: Score(issue, now),
			Type:     issue.Type,
		})
	}

	decisions, err := s.assigner.AssignIssues(ctx, items, capacity)
	if err != nil {
		s.logOutcome(ctx, projectID, models.ActionAutoAssign,
			fmt.Sprintf("assignment call failed for %d issues", len(items)),
			models.AgentLogStatusFailed, err.Error())
		return &AssignOutcome{Candidates: len(items), Degraded: true, Detail: err.Error()},
			fmt.Errorf("assign issues: %w", err)
	}

	valid := validateAssignments(items, capacity, decisions)
	if len(valid) == 0 {
		s.logOutcome(ctx, projectID, models.ActionAutoAssign,
			fmt.Sprintf("no usable assignments for %d issues", len(items)),
			models.AgentLogStatusSuccess, "")
		return &AssignOutcome{Candidates: len(items), Degraded: true, Detail: "no usable assignments"}, nil
	}

	outcome := &AssignOutcome{Candidates: len(items)}
	for _, d := range valid {
		applied, err := s.applyAssignment(ctx, d)
		if err != nil {
			return outcome, fmt.Errorf("apply assignment for %s: %w", d.IssueID, err)
		}
		if applied {
			outcome.Assigned++
		} else {
			outcome.Skipped++
		}
	}
	return outcome, nil
}

// applyAssignment patches one issue if it still exists and is still
// unassigned. Returns false when the decision went stale.
func (s *Service) applyAssignment(ctx context.Context, d AssignDecision) (bool, error) {
	issue, err := s.store.GetIssue(ctx, d.IssueID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if issue.Assigned() {
		return false, nil
	}

	now := time.Now().UTC()
	issue.AssigneeID = d.AssigneeID
	issue.AIAssignedAt = &now
	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_ = s.store.AppendAgentLog(ctx, &models.AgentLog{
		ProjectID: issue.ProjectID,
		IssueID:   issue.ID,
		Action:    models.ActionAutoAssign,
		Result:    fmt.Sprintf("assigned to %s: %s", d.AssigneeID, d.Reason),
		Status:    models.AgentLogStatusSuccess,
	})
	return true, nil
}

// validateAssignments drops decisions whose issue was not in the
// request set or whose assignee is not a known developer.
func validateAssignments(items []RankItem, capacity []CapacitySnapshot, decisions []AssignDecision) []AssignDecision {
	knownIssue := make(map[string]bool, len(items))
	for _, it := range items {
		knownIssue[it.ID] = true
	}
	knownDev := make(map[string]bool, len(capacity))
	for _, c := range capacity {
		knownDev[c.UserID] = true
	}

	seen := make(map[string]bool)
	var valid []AssignDecision
	for _, d := range decisions {
		if !knownIssue[d.IssueID] || seen[d.IssueID] || !knownDev[d.AssigneeID] {
			continue
		}
		seen[d.IssueID] = true
		valid = append(valid, d)
	}
	return valid
}
