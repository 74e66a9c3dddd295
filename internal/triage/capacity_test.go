package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldsgroups225/taskora/internal/models"
)

func TestEstimateCapacity(t *testing.T) {
	users := []*models.User{
		{ID: "u1", Name: "Dana", Role: models.UserRoleDev},
		{ID: "u2", Name: "Carl", Role: models.UserRoleDev},
		{ID: "u3", Name: "Mia", Role: models.UserRoleManager},
	}
	issues := []*models.Issue{
		{AssigneeID: "u1", Status: models.IssueStatusInProgress, Estimate: 3},
		{AssigneeID: "u1", Status: models.IssueStatusTodo, Estimate: 2},
		{AssigneeID: "u1", Status: models.IssueStatusDone, Type: models.IssueTypeBug},
		{AssigneeID: "u2", Status: models.IssueStatusInReview, Estimate: 1},
		{AssigneeID: "u3", Status: models.IssueStatusTodo, Estimate: 8},
		{Status: models.IssueStatusTodo, Estimate: 5},
	}

	snapshots := EstimateCapacity(users, issues)
	require.Len(t, snapshots, 2, "managers are not assignable")

	// Ascending by load score: Carl = 1 + 0.5*1 = 1.5, Dana = 2 + 0.5*5 = 4.5.
	assert.Equal(t, "u2", snapshots[0].UserID)
	assert.Equal(t, 1.5, snapshots[0].LoadScore)
	assert.Equal(t, "u1", snapshots[1].UserID)
	assert.Equal(t, 4.5, snapshots[1].LoadScore)
	assert.Equal(t, 2, snapshots[1].ActiveCount)
	assert.Equal(t, 5, snapshots[1].StoryPoints)

	// Completed issues feed the skill profile, not the load.
	assert.Equal(t, 1, snapshots[1].Skills[models.IssueTypeBug])
}

func TestEstimateCapacity_IdleDev(t *testing.T) {
	users := []*models.User{{ID: "u1", Name: "Dana", Role: models.UserRoleDev}}

	snapshots := EstimateCapacity(users, nil)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 0.0, snapshots[0].LoadScore)
	assert.Equal(t, 0, snapshots[0].ActiveCount)
}

func TestEstimateCapacity_TiesBreakOnUserID(t *testing.T) {
	users := []*models.User{
		{ID: "u2", Name: "Carl", Role: models.UserRoleDev},
		{ID: "u1", Name: "Dana", Role: models.UserRoleDev},
	}

	snapshots := EstimateCapacity(users, nil)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "u1", snapshots[0].UserID)
}
