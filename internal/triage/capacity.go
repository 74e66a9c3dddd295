package triage

import (
	"sort"

	"github.com/ldsgroups225/taskora/internal/models"
)

// CapacitySnapshot summarizes one developer's live workload and
// historical skill profile. Lower LoadScore means more available.
type CapacitySnapshot struct {
	UserID      string
	Name        string
	ActiveCount int
	StoryPoints int
	LoadScore   float64
	Skills      map[models.IssueType]int // completed issues by type
}

// EstimateCapacity aggregates each developer's issues into a capacity
// snapshot, sorted ascending by load score (ties break on user id).
// The result reflects live workload and must be recomputed on every
// invocation, never cached.
func EstimateCapacity(users []*models.User, issues []*models.Issue) []CapacitySnapshot {
	byUser := make(map[string]*CapacitySnapshot)
	var order []string
	for _, u := range users {
		if u.Role != models.UserRoleDev {
			continue
		}
		byUser[u.ID] = &CapacitySnapshot{
			UserID: u.ID,
			Name:   u.Name,
			Skills: make(map[models.IssueType]int),
		}
		order = append(order, u.ID)
	}

	for _, issue := range issues {
		snap, ok := byUser[issue.AssigneeID]
		if !ok {
			continue
		}
		switch issue.Status {
		case models.IssueStatusTodo, models.IssueStatusInProgress, models.IssueStatusInReview:
			snap.ActiveCount++
			snap.StoryPoints += issue.Estimate
		case models.IssueStatusDone:
			snap.Skills[issue.Type]++
		}
	}

	snapshots := make([]CapacitySnapshot, 0, len(order))
	for _, id := range order {
		snap := byUser[id]
		snap.LoadScore = float64(snap.ActiveCount) + 0.5*float64(snap.StoryPoints)
		snapshots = append(snapshots, *snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].LoadScore != snapshots[j].LoadScore {
			return snapshots[i].LoadScore < snapshots[j].LoadScore
		}
		return snapshots[i].UserID < snapshots[j].UserID
	})
	return snapshots
}
