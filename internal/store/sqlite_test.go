package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldsgroups225/taskora/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func newTestProject(t *testing.T, s *SQLiteStore, key string) *models.Project {
	t.Helper()
	p := &models.Project{Key: key, Name: key + " project"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func newTestIssue(t *testing.T, s *SQLiteStore, projectID, title string) *models.Issue {
	t.Helper()
	issue := &models.Issue{ProjectID: projectID, Title: title}
	require.NoError(t, s.CreateIssue(context.Background(), issue))
	return issue
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Project CRUD ---

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Create
	p := &models.Project{
		Key:         "web",
		Name:        "Web App",
		Description: "frontend work",
	}
	err := s.CreateProject(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "WEB", p.Key, "key is stored upper-cased")
	assert.False(t, p.CreatedAt.IsZero())

	// Get by id
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Web App", got.Name)

	// Get by key, case-insensitive
	got, err = s.GetProjectByKey(ctx, "Web")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// Update
	got.Name = "Web Application"
	require.NoError(t, s.UpdateProject(ctx, got))
	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Web Application", got.Name)

	// List
	newTestProject(t, s, "API")
	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "API", projects[0].Key, "list is ordered by key")

	// Delete
	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProject_RemovesIssues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	issue := newTestIssue(t, s, p.ID, "orphan-to-be")

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err := s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProject_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProject(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- User CRUD ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{
		Subject: "auth0|alice",
		Name:    "Alice",
		Email:   "alice@example.com",
		Role:    models.UserRoleDev,
	}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	got, err = s.GetUserBySubject(ctx, "auth0|alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserBySubject(ctx, "auth0|nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	got.Email = "alice@corp.example"
	require.NoError(t, s.UpdateUser(ctx, got))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@corp.example", got.Email)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_DefaultsRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Subject: "auth0|bob", Name: "Bob"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, models.UserRoleDev, u.Role)
}

func TestListUsers_FilterByRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Subject: "s1", Name: "Dana", Role: models.UserRoleDev}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Subject: "s2", Name: "Mia", Role: models.UserRoleManager}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Subject: "s3", Name: "Carl", Role: models.UserRoleDev}))

	devs, err := s.ListUsers(ctx, models.UserRoleDev)
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "Carl", devs[0].Name, "list is ordered by name")

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// --- Issue CRUD ---

func TestIssueCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")

	issue := &models.Issue{
		ProjectID:   p.ID,
		Title:       "Fix login redirect",
		Description: "redirect loop after oauth callback",
		Priority:    models.IssuePriorityHigh,
		Type:        models.IssueTypeBug,
		Estimate:    3,
	}
	require.NoError(t, s.CreateIssue(ctx, issue))
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, models.IssueStatusBacklog, issue.Status, "status defaults to backlog")

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix login redirect", got.Title)
	assert.Equal(t, 3, got.Estimate)
	assert.Nil(t, got.ProposedOrder)
	assert.Nil(t, got.AIAssignedAt)

	got.Title = "Fix login redirect loop"
	got.Status = models.IssueStatusTodo
	require.NoError(t, s.UpdateIssue(ctx, got))
	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusTodo, got.Status)

	require.NoError(t, s.DeleteIssue(ctx, issue.ID))
	_, err = s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateIssue_AllocatesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")

	first := newTestIssue(t, s, p.ID, "first")
	second := newTestIssue(t, s, p.ID, "second")
	third := newTestIssue(t, s, p.ID, "third")

	assert.Equal(t, first.Order+10, second.Order)
	assert.Equal(t, second.Order+10, third.Order)

	issues, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "first", issues[0].Title, "list is ordered by sort order")
	assert.Equal(t, "third", issues[2].Title)
}

func TestListIssues_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	other := newTestProject(t, s, "API")

	dev := &models.User{Subject: "s1", Name: "Dana"}
	require.NoError(t, s.CreateUser(ctx, dev))

	a := &models.Issue{ProjectID: p.ID, Title: "a", Status: models.IssueStatusTodo, AssigneeID: dev.ID}
	require.NoError(t, s.CreateIssue(ctx, a))
	b := &models.Issue{ProjectID: p.ID, Title: "b", Status: models.IssueStatusDone}
	require.NoError(t, s.CreateIssue(ctx, b))
	c := &models.Issue{ProjectID: p.ID, Title: "c"}
	require.NoError(t, s.CreateIssue(ctx, c))
	newTestIssue(t, s, other.ID, "elsewhere")

	byProject, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Len(t, byProject, 3)

	byStatus, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID, Status: models.IssueStatusTodo})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "a", byStatus[0].Title)

	notDone, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID, NotStatus: models.IssueStatusDone})
	require.NoError(t, err)
	assert.Len(t, notDone, 2)

	byAssignee, err := s.ListIssues(ctx, IssueListFilter{AssigneeID: dev.ID})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, "a", byAssignee[0].Title)

	unassigned, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID, Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, unassigned, 2)
}

func TestDeleteIssue_CascadesToDescendants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")

	epic := newTestIssue(t, s, p.ID, "epic")
	story := &models.Issue{ProjectID: p.ID, ParentID: epic.ID, Title: "story"}
	require.NoError(t, s.CreateIssue(ctx, story))
	subtask := &models.Issue{ProjectID: p.ID, ParentID: story.ID, Title: "subtask"}
	require.NoError(t, s.CreateIssue(ctx, subtask))
	unrelated := newTestIssue(t, s, p.ID, "unrelated")

	require.NoError(t, s.DeleteIssue(ctx, epic.ID))

	// All descendants gone, not just direct children.
	for _, id := range []string{epic.ID, story.ID, subtask.ID} {
		_, err := s.GetIssue(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	_, err := s.GetIssue(ctx, unrelated.ID)
	assert.NoError(t, err)
}

// --- PatchIssue ---

func TestPatchIssue_RecordsActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	issue := newTestIssue(t, s, p.ID, "task")

	status := models.IssueStatusInProgress
	priority := models.IssuePriorityHigh
	patched, err := s.PatchIssue(ctx, issue.ID, IssuePatch{
		Status:   &status,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusInProgress, patched.Status)
	assert.Equal(t, models.IssuePriorityHigh, patched.Priority)

	entries, err := s.ListAgentLogs(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "one audit entry per changed field")

	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
		assert.Equal(t, issue.ID, e.IssueID)
		assert.Equal(t, models.AgentLogStatusSuccess, e.Status)
	}
	assert.True(t, actions[models.ActionStatusChanged])
	assert.True(t, actions[models.ActionPriorityChanged])
}

func TestPatchIssue_NoActivityWhenUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	issue := newTestIssue(t, s, p.ID, "task")

	// Same status as current: update succeeds, no audit entry.
	status := models.IssueStatusBacklog
	title := "renamed"
	_, err := s.PatchIssue(ctx, issue.ID, IssuePatch{Status: &status, Title: &title})
	require.NoError(t, err)

	entries, err := s.ListAgentLogs(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}

func TestPatchIssue_NotFound(t *testing.T) {
	s := newTestStore(t)

	title := "x"
	_, err := s.PatchIssue(context.Background(), "nonexistent", IssuePatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Proposals ---

func TestSaveProposals_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	a := newTestIssue(t, s, p.ID, "a")
	b := newTestIssue(t, s, p.ID, "b")

	err := s.SaveProposals(ctx, p.ID, []RankEntry{
		{IssueID: b.ID, Rank: 1, Reason: "critical path"},
		{IssueID: a.ID, Rank: 2, Reason: "follow-up"},
	})
	require.NoError(t, err)

	proposals, err := s.ListProposals(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, b.ID, proposals[0].ID, "sorted by proposed rank")
	assert.Equal(t, 1, *proposals[0].ProposedOrder)
	assert.Equal(t, "critical path", proposals[0].ProposedReason)
	assert.NotNil(t, proposals[0].LastProposedAt)

	// Authoritative order untouched by staging.
	got, err := s.GetIssue(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Order, got.Order)
}

func TestSaveProposals_SkipsVanishedIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	a := newTestIssue(t, s, p.ID, "a")

	err := s.SaveProposals(ctx, p.ID, []RankEntry{
		{IssueID: a.ID, Rank: 1},
		{IssueID: "01JXVANISHED0000000000000A", Rank: 2},
	})
	require.NoError(t, err, "vanished issue is skipped, not an error")

	proposals, err := s.ListProposals(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, proposals, 1)
}

func TestSaveProposals_ScopedToProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	other := newTestProject(t, s, "API")
	foreign := newTestIssue(t, s, other.ID, "foreign")

	err := s.SaveProposals(ctx, p.ID, []RankEntry{{IssueID: foreign.ID, Rank: 1}})
	require.NoError(t, err)

	got, err := s.GetIssue(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProposedOrder, "cross-project entries do not stage")
}

func TestListProposals_ExcludesDone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	a := newTestIssue(t, s, p.ID, "a")
	done := &models.Issue{ProjectID: p.ID, Title: "done", Status: models.IssueStatusDone}
	require.NoError(t, s.CreateIssue(ctx, done))

	require.NoError(t, s.SaveProposals(ctx, p.ID, []RankEntry{
		{IssueID: a.ID, Rank: 1},
		{IssueID: done.ID, Rank: 2},
	}))

	proposals, err := s.ListProposals(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, a.ID, proposals[0].ID)
}

func TestApplyProposals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	a := newTestIssue(t, s, p.ID, "a")
	b := newTestIssue(t, s, p.ID, "b")
	c := newTestIssue(t, s, p.ID, "c")

	require.NoError(t, s.SaveProposals(ctx, p.ID, []RankEntry{
		{IssueID: c.ID, Rank: 1, Reason: "r1"},
		{IssueID: a.ID, Rank: 2, Reason: "r2"},
		{IssueID: b.ID, Rank: 3, Reason: "r3"},
	}))

	applied, err := s.ApplyProposals(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	issues, err := s.ListIssues(ctx, IssueListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, issues, 3)

	// New order follows proposed ranks with a stride of 10.
	assert.Equal(t, c.ID, issues[0].ID)
	assert.Equal(t, 0, issues[0].Order)
	assert.Equal(t, a.ID, issues[1].ID)
	assert.Equal(t, 10, issues[1].Order)
	assert.Equal(t, b.ID, issues[2].ID)
	assert.Equal(t, 20, issues[2].Order)

	// Proposal fields cleared, apply timestamp set.
	for _, issue := range issues {
		assert.Nil(t, issue.ProposedOrder)
		assert.Empty(t, issue.ProposedReason)
		assert.Nil(t, issue.LastProposedAt)
		assert.NotNil(t, issue.AIReprioritizedAt)
	}
}

func TestApplyProposals_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")
	a := newTestIssue(t, s, p.ID, "a")

	require.NoError(t, s.SaveProposals(ctx, p.ID, []RankEntry{{IssueID: a.ID, Rank: 1}}))

	applied, err := s.ApplyProposals(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = s.ApplyProposals(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "second apply is a no-op")
}

// --- Agent logs ---

func TestAgentLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s, "WEB")

	require.NoError(t, s.AppendAgentLog(ctx, &models.AgentLog{
		ProjectID: p.ID,
		Action:    models.ActionReprioritize,
		Result:    "proposed 5 rankings",
		Status:    models.AgentLogStatusSuccess,
	}))
	require.NoError(t, s.AppendAgentLog(ctx, &models.AgentLog{
		ProjectID: p.ID,
		Action:    models.ActionAutoAssign,
		Status:    models.AgentLogStatusFailed,
		Error:     "anthropic API call: timeout",
	}))

	entries, err := s.ListAgentLogs(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionAutoAssign, entries[0].Action, "newest first")
	assert.Equal(t, models.AgentLogStatusFailed, entries[0].Status)

	limited, err := s.ListAgentLogs(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreImplementsInterface(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
}

func TestErrNotFound_Wrapping(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetIssue(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "missing")
}
