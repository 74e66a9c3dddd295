package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ldsgroups225/taskora/internal/triage"
)

// capacityPayload is the wire projection of a capacity snapshot.
type capacityPayload struct {
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	ActiveCount int            `json:"active_count"`
	StoryPoints int            `json:"story_points"`
	LoadScore   float64        `json:"load_score"`
	Skills      map[string]int `json:"skills"`
}

// buildAssignPrompt constructs the system and user prompts for auto-assignment.
func buildAssignPrompt(issues []triage.RankItem, capacity []triage.CapacitySnapshot) (system string, user string, err error) {
	system = `You distribute unassigned issues across a development team. You receive two JSON arrays: "issues" (each with "id", "title", "priority", "raw_score", "type", sorted most urgent first) and "developers" (each with "user_id", "name", "active_count", "story_points", "load_score", and "skills" — a map of completed issue types to counts; lower load_score means more available).

Return ONLY a JSON array of assignments:
- "issue_id": the id copied exactly from the issues array. Never invent ids.
- "assignee_id": the user_id copied exactly from the developers array.
- "reason": one sentence justifying the match.

Rules:
- Assign higher-priority issues first.
- Balance load: prefer developers with lower load_score.
- Prefer skill affinity: a developer who has completed many issues of the same type is a better match.
- Avoid giving any developer more than 2 critical issues.
- If every developer is overloaded, it is acceptable to leave low-priority issues unassigned (omit them from the output).
- Return valid JSON only, no markdown fencing or explanation`

	caps := make([]capacityPayload, 0, len(capacity))
	for _, c := range capacity {
		skills := make(map[string]int, len(c.Skills))
		for t, n := range c.Skills {
			skills[string(t)] = n
		}
		caps = append(caps, capacityPayload{
			UserID:      c.UserID,
			Name:        c.Name,
			ActiveCount: c.ActiveCount,
			StoryPoints: c.StoryPoints,
			LoadScore:   c.LoadScore,
			Skills:      skills,
		})
	}

	issueJSON, err := json.Marshal(issues)
	if err != nil {
		return "", "", fmt.Errorf("marshal issues: %w", err)
	}
	capJSON, err := json.Marshal(caps)
	if err != nil {
		return "", "", fmt.Errorf("marshal capacity: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("issues:\n")
	sb.Write(issueJSON)
	sb.WriteString("\n\ndevelopers:\n")
	sb.Write(capJSON)
	user = sb.String()
	return system, user, nil
}

// AssignIssues submits unassigned issues and developer capacity to the
// model and returns its assignment decisions. Implements triage.Assigner.
func (c *Client) AssignIssues(ctx context.Context, issues []triage.RankItem, capacity []triage.CapacitySnapshot) ([]triage.AssignDecision, error) {
	system, user, err := buildAssignPrompt(issues, capacity)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, system, user, 4096)
	if err != nil {
		return nil, err
	}

	var decisions []triage.AssignDecision
	if err := decodeJSON(text, &decisions); err != nil {
		return nil, err
	}
	return decisions, nil
}
