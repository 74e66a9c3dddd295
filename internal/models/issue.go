package models

import "time"

// IssueStatus represents the lifecycle state of an issue.
type IssueStatus string

const (
	IssueStatusBacklog    IssueStatus = "backlog"
	IssueStatusTodo       IssueStatus = "todo"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusInReview   IssueStatus = "in_review"
	IssueStatusDone       IssueStatus = "done"
)

// ActiveStatuses are the statuses that count toward a developer's live workload.
var ActiveStatuses = []IssueStatus{IssueStatusTodo, IssueStatusInProgress, IssueStatusInReview}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "low"
	IssuePriorityMedium   IssuePriority = "medium"
	IssuePriorityHigh     IssuePriority = "high"
	IssuePriorityCritical IssuePriority = "critical"
)

// PriorityWeight returns the numeric weight used for scoring and
// priority-first ordering. Unknown priorities weigh zero.
func PriorityWeight(p IssuePriority) int {
	switch p {
	case IssuePriorityCritical:
		return 100
	case IssuePriorityHigh:
		return 50
	case IssuePriorityMedium:
		return 20
	case IssuePriorityLow:
		return 5
	default:
		return 0
	}
}

// IssueType represents the kind of work an issue tracks.
type IssueType string

const (
	IssueTypeInitiative IssueType = "initiative"
	IssueTypeEpic       IssueType = "epic"
	IssueTypeStory      IssueType = "story"
	IssueTypeTask       IssueType = "task"
	IssueTypeBug        IssueType = "bug"
	IssueTypeSubtask    IssueType = "subtask"
)

// Issue represents a tracked work item within a project.
//
// Order is a dense per-project ranking key (not globally unique).
// The Proposed* fields are the staged-triage side channel: ProposedOrder
// holds an AI-suggested rank that has not been applied yet and carries
// no meaning once proposals have been applied for this issue.
type Issue struct {
	ID          string
	ProjectID   string
	ParentID    string // optional parent issue (tree)
	Title       string
	Description string
	Status      IssueStatus
	Priority    IssuePriority
	Type        IssueType
	AssigneeID  string // empty = unassigned
	CreatorID   string // immutable after creation
	Order       int
	Estimate    int // story points, 0 = unset

	ProposedOrder     *int
	ProposedReason    string
	LastProposedAt    *time.Time
	AIAssignedAt      *time.Time
	AIReprioritizedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether the issue has an assignee.
func (i *Issue) Assigned() bool { return i.AssigneeID != "" }

// HasProposal reports whether a staged rank proposal is pending.
func (i *Issue) HasProposal() bool { return i.ProposedOrder != nil }

// ValidIssueStatus reports whether s is a known status value.
func ValidIssueStatus(s IssueStatus) bool {
	switch s {
	case IssueStatusBacklog, IssueStatusTodo, IssueStatusInProgress, IssueStatusInReview, IssueStatusDone:
		return true
	}
	return false
}

// ValidIssuePriority reports whether p is a known priority value.
func ValidIssuePriority(p IssuePriority) bool {
	switch p {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityCritical:
		return true
	}
	return false
}

// ValidIssueType reports whether t is a known type value.
func ValidIssueType(t IssueType) bool {
	switch t {
	case IssueTypeInitiative, IssueTypeEpic, IssueTypeStory, IssueTypeTask, IssueTypeBug, IssueTypeSubtask:
		return true
	}
	return false
}
