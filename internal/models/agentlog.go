package models

import "time"

// AgentLogStatus represents the outcome recorded in an audit entry.
type AgentLogStatus string

const (
	AgentLogStatusPending AgentLogStatus = "pending"
	AgentLogStatusSuccess AgentLogStatus = "success"
	AgentLogStatusFailed  AgentLogStatus = "failed"
)

// Well-known action labels written by the triage workflows and the
// issue patch path.
const (
	ActionReprioritize    = "reprioritize"
	ActionApplyRankings   = "apply_rankings"
	ActionAutoAssign      = "auto_assign"
	ActionStatusChanged   = "status_changed"
	ActionPriorityChanged = "priority_changed"
	ActionAssigneeChanged = "assignee_changed"
)

// AgentLog is an append-only audit record. Entries are never mutated
// or deleted once written.
type AgentLog struct {
	ID        string
	ProjectID string
	IssueID   string // optional
	Action    string
	Result    string
	Status    AgentLogStatus
	Error     string
	CreatedAt time.Time
}
