package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/store"
)

// ErrNoRanker is returned when a ranking workflow runs without a
// configured AI collaborator.
var ErrNoRanker = errors.New("no ranking collaborator configured (set anthropic.api_key)")

// RankingOutcome summarizes one reprioritization run.
type RankingOutcome struct {
	Scored   int // issues scored and submitted
	Proposed int // rankings staged
	Degraded bool
	Detail   string
}

// Reprioritize runs the score -> rank -> stage sequence for a project.
//
// A failure or useless response from the ranking collaborator degrades
// to "no proposals produced": nothing is partially staged, an agent
// log entry records the outcome, and the next invocation starts over
// from fresh scores. The returned error is non-nil only for external
// collaborator failures so interactive callers can surface them;
// scheduled callers should log and move on.
func (s *Service) Reprioritize(ctx context.Context, projectID string) (*RankingOutcome, error) {
	if s.ranker == nil {
		return nil, ErrNoRanker
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{
		ProjectID: projectID,
		NotStatus: models.IssueStatusDone,
	})
	if err != nil {
		return nil, fmt.Errorf("list backlog: %w", err)
	}
	if len(issues) == 0 {
		return &RankingOutcome{Degraded: true, Detail: "empty backlog"}, nil
	}

	scored := ScoreBacklog(issues, time.Now().UTC())
	items := make([]RankItem, 0, len(scored))
	for _, si := range scored {
		items = append(items, RankItem{
			ID:       si.Issue.ID,
			Title:    si.Issue.Title,
			Priority: si.Issue.Priority,
			RawScore: si.RawScore,
			Type:     si.Issue.Type,
		})
	}

	decisions, err := s.ranker.RankBacklog(ctx, items)
	if err != nil {
		s.logOutcome(ctx, projectID, models.ActionReprioritize,
			fmt.Sprintf("ranking call failed after scoring %d issues", len(items)),
			models.AgentLogStatusFailed, err.Error())
		return &RankingOutcome{Scored: len(items), Degraded: true, Detail: err.Error()},
			fmt.Errorf("rank backlog: %w", err)
	}

	valid := validateRankings(items, decisions)
	if len(valid) == 0 {
		s.logOutcome(ctx, projectID, models.ActionReprioritize,
			fmt.Sprintf("no usable rankings for %d scored issues", len(items)),
			models.AgentLogStatusSuccess, "")
		return &RankingOutcome{Scored: len(items), Degraded: true, Detail: "no usable rankings"}, nil
	}

	entries := make([]store.RankEntry, 0, len(valid))
	for _, d := range valid {
		entries = append(entries, store.RankEntry{IssueID: d.IssueID, Rank: d.Rank, Reason: d.Reason})
	}
	if err := s.store.SaveProposals(ctx, projectID, entries); err != nil {
		return nil, fmt.Errorf("stage proposals: %w", err)
	}

	s.logOutcome(ctx, projectID, models.ActionReprioritize,
		fmt.Sprintf("proposed new ranks for %d of %d issues", len(valid), len(items)),
		models.AgentLogStatusSuccess, "")

	return &RankingOutcome{Scored: len(items), Proposed: len(valid)}, nil
}

// ApplyRankings converts the project's staged proposals into the
// authoritative order. Idempotent: with nothing staged it returns 0.
func (s *Service) ApplyRankings(ctx context.Context, projectID string) (int, error) {
	unlock := s.locks.lock(projectID)
	defer unlock()

	updated, err := s.store.ApplyProposals(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.logOutcome(ctx, projectID, models.ActionApplyRankings,
			fmt.Sprintf("applied proposed order to %d issues", updated),
			models.AgentLogStatusSuccess, "")
	}
	return updated, nil
}

// validateRankings drops decisions referencing ids outside the request
// set and decisions reusing a rank already taken. The collaborator is
// asked not to invent ids, but the response is untrusted.
func validateRankings(items []RankItem, decisions []RankDecision) []RankDecision {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	seenIssue := make(map[string]bool)
	seenRank := make(map[int]bool)
	var valid []RankDecision
	for _, d := range decisions {
		if !known[d.IssueID] || seenIssue[d.IssueID] {
			continue
		}
		if d.Rank < 1 || seenRank[d.Rank] {
			continue
		}
		seenIssue[d.IssueID] = true
		seenRank[d.Rank] = true
		valid = append(valid, d)
	}
	return valid
}

// logOutcome appends an audit entry, best-effort.
func (s *Service) logOutcome(ctx context.Context, projectID, action, result string, status models.AgentLogStatus, errDetail string) {
	_ = s.store.AppendAgentLog(ctx, &models.AgentLog{
		ProjectID: projectID,
		Action:    action,
		Result:    result,
		Status:    status,
		Error:     errDetail,
	})
}
