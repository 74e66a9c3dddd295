package llm

import (
	"context"
	"strings"

	"github.com/ldsgroups225/taskora/internal/query"
)

// buildQueryPrompt constructs the system and user prompts for query translation.
func buildQueryPrompt(text string) (system string, user string) {
	system = `You translate a free-text issue search into a structured filter. Return ONLY a JSON object with any of these optional fields (omit fields the query does not constrain):
- "status": one of "backlog", "todo", "in_progress", "in_review", "done"
- "priority": one of "low", "medium", "high", "critical"
- "type": one of "initiative", "epic", "story", "task", "bug", "subtask"
- "assignee": "me", "unassigned", or a person's name
- "date_filter": object with "field" ("created" or "updated"), "operator" ("before" or "after"), and "value" (RFC 3339 timestamp)
- "text_search": keywords to match against title or description

Rules:
- "my issues", "assigned to me" -> assignee "me"
- "nobody's", "unassigned", "no owner" -> assignee "unassigned"
- Only set text_search for words that are not status, priority, type, or assignee constraints
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Translate this search:\n\n")
	sb.WriteString(text)
	user = sb.String()
	return
}

// ParseQuery translates free text into a structured issue filter.
// Implements the query translator collaborator.
func (c *Client) ParseQuery(ctx context.Context, text string) (*query.Filter, error) {
	system, user := buildQueryPrompt(text)

	raw, err := c.complete(ctx, system, user, 1024)
	if err != nil {
		return nil, err
	}

	var f query.Filter
	if err := decodeJSON(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
