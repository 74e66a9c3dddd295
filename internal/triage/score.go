package triage

import (
	"sort"
	"time"

	"github.com/ldsgroups225/taskora/internal/models"
)

// maxAgeDays caps the age contribution to a score so very old backlog
// items cannot inflate without bound.
const maxAgeDays = 50

// ScoredIssue pairs an issue with its computed raw score.
type ScoredIssue struct {
	Issue    *models.Issue
	RawScore int
}

// Score computes the deterministic priority score of an issue at a
// given instant: priority weight + age in days (capped) + 2x the story
// point estimate. Pure, no side effects.
func Score(issue *models.Issue, now time.Time) int {
	ageDays := int(now.Sub(issue.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > maxAgeDays {
		ageDays = maxAgeDays
	}
	return models.PriorityWeight(issue.Priority) + ageDays + 2*issue.Estimate
}

// ScoreBacklog scores every issue and returns them sorted by score
// descending. Ties break on ascending issue id so the ordering is
// reproducible.
func ScoreBacklog(issues []*models.Issue, now time.Time) []ScoredIssue {
	scored := make([]ScoredIssue, 0, len(issues))
	for _, issue := range issues {
		scored = append(scored, ScoredIssue{Issue: issue, RawScore: Score(issue, now)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].RawScore != scored[j].RawScore {
			return scored[i].RawScore > scored[j].RawScore
		}
		return scored[i].Issue.ID < scored[j].Issue.ID
	})
	return scored
}
