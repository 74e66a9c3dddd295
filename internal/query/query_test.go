package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldsgroups225/taskora/internal/models"
)

func TestEvaluate_Conjunctive(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", Title: "fix login", Status: models.IssueStatusTodo, Priority: models.IssuePriorityHigh, Type: models.IssueTypeBug},
		{ID: "2", Title: "fix logout", Status: models.IssueStatusTodo, Priority: models.IssuePriorityLow, Type: models.IssueTypeBug},
		{ID: "3", Title: "new dashboard", Status: models.IssueStatusTodo, Priority: models.IssuePriorityHigh, Type: models.IssueTypeStory},
	}

	got := Evaluate(issues, Filter{
		Priority: models.IssuePriorityHigh,
		Type:     models.IssueTypeBug,
	}, Viewer{})

	require.Len(t, got, 1, "all specified fields must match")
	assert.Equal(t, "1", got[0].ID)
}

func TestEvaluate_EmptyFilterMatchesAll(t *testing.T) {
	issues := []*models.Issue{{ID: "1"}, {ID: "2"}}

	got := Evaluate(issues, Filter{}, Viewer{})
	assert.Len(t, got, 2)
}

func TestEvaluate_CapsAtTen(t *testing.T) {
	var issues []*models.Issue
	for i := 0; i < 25; i++ {
		issues = append(issues, &models.Issue{ID: fmt.Sprintf("%02d", i)})
	}

	got := Evaluate(issues, Filter{}, Viewer{})
	require.Len(t, got, 10)
	assert.Equal(t, "00", got[0].ID, "first matches in input order win")
	assert.Equal(t, "09", got[9].ID)
}

func TestEvaluate_Unassigned(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", Priority: models.IssuePriorityHigh, AssigneeID: "u1"},
		{ID: "2", Priority: models.IssuePriorityHigh},
		{ID: "3", Priority: models.IssuePriorityLow},
	}

	got := Evaluate(issues, Filter{
		Priority: models.IssuePriorityHigh,
		Assignee: AssigneeUnassigned,
	}, Viewer{})

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestEvaluate_Me(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", AssigneeID: "u1"},
		{ID: "2", AssigneeID: "u2"},
	}

	got := Evaluate(issues, Filter{Assignee: AssigneeMe}, Viewer{UserID: "u2"})
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	// Without an identity, "me" matches nothing rather than everything.
	got = Evaluate(issues, Filter{Assignee: AssigneeMe}, Viewer{})
	assert.Empty(t, got)
}

func TestEvaluate_AssigneeByName(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", AssigneeID: "u1"},
		{ID: "2", AssigneeID: "u2"},
	}
	viewer := Viewer{NameToID: map[string]string{"dana": "u1"}}

	got := Evaluate(issues, Filter{Assignee: "Dana"}, viewer)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got = Evaluate(issues, Filter{Assignee: "Unknown Person"}, viewer)
	assert.Empty(t, got)
}

func TestEvaluate_TextSearch(t *testing.T) {
	issues := []*models.Issue{
		{ID: "1", Title: "Fix OAuth redirect"},
		{ID: "2", Title: "dashboard", Description: "the oauth flow breaks here too"},
		{ID: "3", Title: "unrelated"},
	}

	got := Evaluate(issues, Filter{TextSearch: "oauth"}, Viewer{})
	require.Len(t, got, 2, "match is case-insensitive over title and description")
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestEvaluate_DateFilters(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &models.Issue{ID: "old", CreatedAt: cutoff.AddDate(0, -2, 0), UpdatedAt: cutoff.AddDate(0, 1, 0)}
	recent := &models.Issue{ID: "recent", CreatedAt: cutoff.AddDate(0, 2, 0), UpdatedAt: cutoff.AddDate(0, 2, 0)}
	issues := []*models.Issue{old, recent}

	got := Evaluate(issues, Filter{
		DateFilter: &DateFilter{Field: FieldCreated, Op: OpAfter, Value: cutoff},
	}, Viewer{})
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].ID)

	got = Evaluate(issues, Filter{
		DateFilter: &DateFilter{Field: FieldCreated, Op: OpBefore, Value: cutoff},
	}, Viewer{})
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].ID)

	got = Evaluate(issues, Filter{
		DateFilter: &DateFilter{Field: FieldUpdated, Op: OpAfter, Value: cutoff},
	}, Viewer{})
	assert.Len(t, got, 2)

	// An unknown operator matches nothing instead of silently passing.
	got = Evaluate(issues, Filter{
		DateFilter: &DateFilter{Field: FieldCreated, Op: "around", Value: cutoff},
	}, Viewer{})
	assert.Empty(t, got)
}
