// Package query evaluates structured filters over a project's issues.
// Filters are typically produced from free text by the AI query
// translator, but the evaluator itself is pure and synchronous.
package query

import (
	"strings"
	"time"

	"github.com/ldsgroups225/taskora/internal/models"
)

// Assignee filter sentinels. Any other non-empty value matches the
// assignee's display name.
const (
	AssigneeMe         = "me"
	AssigneeUnassigned = "unassigned"
)

// Date filter operators and fields.
const (
	OpBefore = "before"
	OpAfter  = "after"

	FieldCreated = "created"
	FieldUpdated = "updated"
)

// maxResults caps evaluator output at the first matches in underlying
// query order, not global relevance order.
const maxResults = 10

// DateFilter constrains a timestamp field.
type DateFilter struct {
	Field string    `json:"field"`    // "created" or "updated"
	Op    string    `json:"operator"` // "before" or "after"
	Value time.Time `json:"value"`
}

// Filter is the structured form of a free-text query. Empty fields are
// unconstrained; specified fields combine conjunctively.
type Filter struct {
	Status     models.IssueStatus   `json:"status,omitempty"`
	Priority   models.IssuePriority `json:"priority,omitempty"`
	Type       models.IssueType     `json:"type,omitempty"`
	Assignee   string               `json:"assignee,omitempty"` // "me", "unassigned", or a display name
	DateFilter *DateFilter          `json:"date_filter,omitempty"`
	TextSearch string               `json:"text_search,omitempty"`
}

// Viewer supplies the identity context needed to resolve "me" and
// display names to user ids.
type Viewer struct {
	UserID   string
	NameToID map[string]string // lower-cased display name -> user id
}

// Evaluate returns the issues matching every specified filter field,
// capped to the first 10 matches in input order.
func Evaluate(issues []*models.Issue, f Filter, viewer Viewer) []*models.Issue {
	var matched []*models.Issue
	for _, issue := range issues {
		if !matches(issue, f, viewer) {
			continue
		}
		matched = append(matched, issue)
		if len(matched) == maxResults {
			break
		}
	}
	return matched
}

func matches(issue *models.Issue, f Filter, viewer Viewer) bool {
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.Type != "" && issue.Type != f.Type {
		return false
	}
	if f.Assignee != "" && !matchesAssignee(issue, f.Assignee, viewer) {
		return false
	}
	if f.DateFilter != nil && !matchesDate(issue, f.DateFilter) {
		return false
	}
	if f.TextSearch != "" {
		needle := strings.ToLower(f.TextSearch)
		if !strings.Contains(strings.ToLower(issue.Title), needle) &&
			!strings.Contains(strings.ToLower(issue.Description), needle) {
			return false
		}
	}
	return true
}

func matchesAssignee(issue *models.Issue, assignee string, viewer Viewer) bool {
	switch assignee {
	case AssigneeUnassigned:
		return !issue.Assigned()
	case AssigneeMe:
		return viewer.UserID != "" && issue.AssigneeID == viewer.UserID
	default:
		id, ok := viewer.NameToID[strings.ToLower(assignee)]
		return ok && issue.AssigneeID == id
	}
}

func matchesDate(issue *models.Issue, df *DateFilter) bool {
	var ts time.Time
	switch df.Field {
	case FieldUpdated:
		ts = issue.UpdatedAt
	default:
		ts = issue.CreatedAt
	}
	switch df.Op {
	case OpBefore:
		return ts.Before(df.Value)
	case OpAfter:
		return ts.After(df.Value)
	default:
		return false
	}
}
