// Package triage implements backlog scoring, capacity estimation, and
// the AI-backed reprioritization and auto-assignment workflows.
package triage

import (
	"context"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/store"
)

// RankItem is the bounded projection of a scored issue submitted to
// the external ranking collaborator.
type RankItem struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Priority models.IssuePriority `json:"priority"`
	RawScore int                  `json:"raw_score"`
	Type     models.IssueType     `json:"type"`
}

// RankDecision is one rank assignment returned by the collaborator.
type RankDecision struct {
	IssueID string `json:"issue_id"`
	Rank    int    `json:"rank"`
	Reason  string `json:"reason"`
}

// AssignDecision is one assignment returned by the collaborator.
type AssignDecision struct {
	IssueID    string `json:"issue_id"`
	AssigneeID string `json:"assignee_id"`
	Reason     string `json:"reason"`
}

// Ranker ranks a scored backlog. Implementations call out to an
// external model and may fail, time out, or return garbage; the
// orchestrator treats the response as untrusted.
type Ranker interface {
	RankBacklog(ctx context.Context, items []RankItem) ([]RankDecision, error)
}

// Assigner proposes assignees for unassigned issues given current
// developer capacity.
type Assigner interface {
	AssignIssues(ctx context.Context, issues []RankItem, capacity []CapacitySnapshot) ([]AssignDecision, error)
}

// Service coordinates the triage workflows over the store and the AI
// collaborators. Runs are serialized per project id.
type Service struct {
	store    store.Store
	ranker   Ranker
	assigner Assigner
	locks    *keyedMutex
}

// NewService creates a triage service. Either collaborator may be nil
// if no API key is configured; the corresponding workflow then returns
// an error when invoked.
func NewService(s store.Store, ranker Ranker, assigner Assigner) *Service {
	return &Service{
		store:    s,
		ranker:   ranker,
		assigner: assigner,
		locks:    newKeyedMutex(),
	}
}
