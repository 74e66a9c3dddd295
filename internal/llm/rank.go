package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ldsgroups225/taskora/internal/triage"
)

// buildRankPrompt constructs the system and user prompts for backlog ranking.
func buildRankPrompt(items []triage.RankItem) (system string, user string, err error) {
	system = `You rank a software project backlog. You receive a JSON array of issues, each with "id", "title", "priority", "raw_score", and "type". The raw_score already combines priority, age, and estimate; use it as the primary signal but adjust when titles reveal dependencies, quick wins, or risk.

Return ONLY a JSON array with one object per input issue:
- "issue_id": the id copied exactly from the input. Never invent ids.
- "rank": integer position starting at 1, each rank used exactly once.
- "reason": one sentence justifying the position.

Rules:
- Rank 1 is the most urgent issue.
- Every input issue must appear exactly once.
- Return valid JSON only, no markdown fencing or explanation`

	payload, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("marshal rank items: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Rank this backlog:\n\n")
	sb.Write(payload)
	user = sb.String()
	return system, user, nil
}

// RankBacklog submits scored issues to the model and returns its rank
// decisions. Implements triage.Ranker.
func (c *Client) RankBacklog(ctx context.Context, items []triage.RankItem) ([]triage.RankDecision, error) {
	system, user, err := buildRankPrompt(items)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, system, user, 4096)
	if err != nil {
		return nil, err
	}

	var decisions []triage.RankDecision
	if err := decodeJSON(text, &decisions); err != nil {
		return nil, err
	}
	return decisions, nil
}
