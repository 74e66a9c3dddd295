package store

import (
	"context"
	"errors"

	"github.com/ldsgroups225/taskora/internal/models"
)

// ErrNotFound is returned (wrapped) when a referenced id does not resolve.
var ErrNotFound = errors.New("not found")

// IssueListFilter specifies filters for listing issues. Zero values
// mean "no constraint" except Unassigned, which is an explicit flag.
type IssueListFilter struct {
	ProjectID  string
	Status     models.IssueStatus
	NotStatus  models.IssueStatus
	AssigneeID string
	Unassigned bool
	ParentID   string
}

// IssuePatch describes a partial issue update. Nil fields are left
// untouched. Changing Status, Priority, or AssigneeID appends one
// audit entry per changed field in the same transaction.
type IssuePatch struct {
	Title       *string
	Description *string
	Status      *models.IssueStatus
	Priority    *models.IssuePriority
	Type        *models.IssueType
	AssigneeID  *string
	Estimate    *int
	Order       *int
}

// RankEntry is one staged rank proposal for an issue.
type RankEntry struct {
	IssueID string
	Rank    int
	Reason  string
}

// Store defines the persistence interface for taskora.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)
	ListUsers(ctx context.Context, role models.UserRole) ([]*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	PatchIssue(ctx context.Context, id string, patch IssuePatch) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id string) error

	// Rank proposals (staged overlay on issues)
	SaveProposals(ctx context.Context, projectID string, entries []RankEntry) error
	ListProposals(ctx context.Context, projectID string) ([]*models.Issue, error)
	ApplyProposals(ctx context.Context, projectID string) (int, error)

	// Agent logs (append-only)
	AppendAgentLog(ctx context.Context, entry *models.AgentLog) error
	ListAgentLogs(ctx context.Context, projectID string, limit int) ([]*models.AgentLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
