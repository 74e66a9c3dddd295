package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/query"
	"github.com/ldsgroups225/taskora/internal/triage"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var decisions []triage.RankDecision
	err := decodeJSON("```json\n[{\"issue_id\":\"A\",\"rank\":1,\"reason\":\"urgent\"}]\n```", &decisions)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "A", decisions[0].IssueID)
	assert.Equal(t, 1, decisions[0].Rank)
}

func TestDecodeJSON_BadPayload(t *testing.T) {
	var decisions []triage.RankDecision
	err := decodeJSON("I cannot rank this backlog.", &decisions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse LLM response")
}

func TestBuildRankPrompt(t *testing.T) {
	items := []triage.RankItem{
		{ID: "01A", Title: "Fix login", Priority: models.IssuePriorityHigh, RawScore: 64, Type: models.IssueTypeBug},
	}

	system, user, err := buildRankPrompt(items)
	require.NoError(t, err)

	assert.Contains(t, system, "Never invent ids")
	assert.Contains(t, system, "each rank used exactly once")
	assert.Contains(t, user, `"id":"01A"`)
	assert.Contains(t, user, `"raw_score":64`)
}

func TestBuildAssignPrompt(t *testing.T) {
	issues := []triage.RankItem{
		{ID: "01A", Title: "Fix login", Priority: models.IssuePriorityCritical, RawScore: 101, Type: models.IssueTypeBug},
	}
	capacity := []triage.CapacitySnapshot{
		{
			UserID:      "u1",
			Name:        "Dana",
			ActiveCount: 2,
			StoryPoints: 5,
			LoadScore:   4.5,
			Skills:      map[models.IssueType]int{models.IssueTypeBug: 7},
		},
	}

	system, user, err := buildAssignPrompt(issues, capacity)
	require.NoError(t, err)

	assert.Contains(t, system, "more than 2 critical issues")
	assert.Contains(t, system, "lower load_score")
	assert.Contains(t, user, `"user_id":"u1"`)
	assert.Contains(t, user, `"load_score":4.5`)
	assert.Contains(t, user, `"bug":7`)
	assert.Contains(t, user, `"id":"01A"`)
}

func TestBuildQueryPrompt(t *testing.T) {
	system, user := buildQueryPrompt("high priority bugs assigned to me")

	assert.Contains(t, system, `"assignee": "me", "unassigned"`)
	assert.Contains(t, system, "RFC 3339")
	assert.Contains(t, user, "high priority bugs assigned to me")
}

func TestClientImplementsCollaborators(t *testing.T) {
	var _ triage.Ranker = (*Client)(nil)
	var _ triage.Assigner = (*Client)(nil)
}

func TestParseQueryFilterShape(t *testing.T) {
	var f query.Filter
	err := decodeJSON(`{"status":"todo","assignee":"unassigned","date_filter":{"field":"created","operator":"after","value":"2026-01-01T00:00:00Z"}}`, &f)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusTodo, f.Status)
	assert.Equal(t, query.AssigneeUnassigned, f.Assignee)
	require.NotNil(t, f.DateFilter)
	assert.Equal(t, query.FieldCreated, f.DateFilter.Field)
	assert.Equal(t, query.OpAfter, f.DateFilter.Op)
}
