// Package mcp exposes the taskora data layer and triage workflows as
// MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/query"
	"github.com/ldsgroups225/taskora/internal/store"
	"github.com/ldsgroups225/taskora/internal/triage"
)

// QueryParser translates free text into a structured issue filter.
type QueryParser interface {
	ParseQuery(ctx context.Context, text string) (*query.Filter, error)
}

// Server wraps the taskora data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	triage *triage.Service
	parser QueryParser
}

// NewServer creates the MCP server wrapper with all required dependencies.
// The parser may be nil if no API key is configured.
func NewServer(s store.Store, t *triage.Service, parser QueryParser) *Server {
	return &Server{store: s, triage: t, parser: parser}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("taskora", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.reprioritizeTool())
	srv.AddTool(s.listProposalsTool())
	srv.AddTool(s.applyRankingsTool())
	srv.AddTool(s.autoAssignTool())
	srv.AddTool(s.queryTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// resolveProject accepts a project key or id.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	if p, err := s.store.GetProjectByKey(ctx, ref); err == nil {
		return p, nil
	}
	return s.store.GetProject(ctx, ref)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issueOut is the compact issue projection returned by tools.
type issueOut struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Type           string `json:"type"`
	AssigneeID     string `json:"assignee_id,omitempty"`
	Order          int    `json:"order"`
	Estimate       int    `json:"estimate,omitempty"`
	ProposedOrder  *int   `json:"proposed_order,omitempty"`
	ProposedReason string `json:"proposed_reason,omitempty"`
}

func toIssueOut(issues []*models.Issue) []issueOut {
	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = issueOut{
			ID:             issue.ID,
			Title:          issue.Title,
			Status:         string(issue.Status),
			Priority:       string(issue.Priority),
			Type:           string(issue.Type),
			AssigneeID:     issue.AssigneeID,
			Order:          issue.Order,
			Estimate:       issue.Estimate,
			ProposedOrder:  issue.ProposedOrder,
			ProposedReason: issue.ProposedReason,
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// taskora_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array with id, key, name, description, and lead."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID          string `json:"id"`
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
		LeadID      string `json:"lead_id,omitempty"`
	}
	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{ID: p.ID, Key: p.Key, Name: p.Name, Description: p.Description, LeadID: p.LeadID}
	}
	return jsonResult(out)
}

// taskora_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_list_issues",
		mcp.WithDescription("List issues for a project, ordered by rank. Optionally filter by status or restrict to unassigned issues."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
		mcp.WithString("status", mcp.Description("Filter by status: backlog, todo, in_progress, in_review, done")),
		mcp.WithBoolean("unassigned", mcp.Description("Only show unassigned issues")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	filter := store.IssueListFilter{
		ProjectID:  p.ID,
		Status:     models.IssueStatus(request.GetString("status", "")),
		Unassigned: request.GetBool("unassigned", false),
	}
	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	return jsonResult(toIssueOut(issues))
}

// taskora_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_create_issue",
		mcp.WithDescription("Create an issue in a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("priority", mcp.Description("Priority: low, medium, high, critical (default medium)")),
		mcp.WithString("type", mcp.Description("Type: initiative, epic, story, task, bug, subtask (default task)")),
		mcp.WithNumber("estimate", mcp.Description("Story point estimate")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	issue := &models.Issue{
		ProjectID:   p.ID,
		Title:       title,
		Description: request.GetString("description", ""),
		Priority:    models.IssuePriority(request.GetString("priority", string(models.IssuePriorityMedium))),
		Type:        models.IssueType(request.GetString("type", string(models.IssueTypeTask))),
		Estimate:    request.GetInt("estimate", 0),
	}
	if !models.ValidIssuePriority(issue.Priority) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", issue.Priority)), nil
	}
	if !models.ValidIssueType(issue.Type) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid type: %s", issue.Type)), nil
	}

	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create issue: %v", err)), nil
	}
	return jsonResult(toIssueOut([]*models.Issue{issue})[0])
}

// taskora_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_update_issue",
		mcp.WithDescription("Update an issue's status, priority, type, assignee, or estimate. Status and priority changes are recorded in the activity log."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithString("type", mcp.Description("New type")),
		mcp.WithString("assignee_id", mcp.Description("New assignee user id (empty string to unassign)")),
		mcp.WithNumber("estimate", mcp.Description("New story point estimate")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	var patch store.IssuePatch
	if v := request.GetString("status", ""); v != "" {
		status := models.IssueStatus(v)
		if !models.ValidIssueStatus(status) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", v)), nil
		}
		patch.Status = &status
	}
	if v := request.GetString("priority", ""); v != "" {
		priority := models.IssuePriority(v)
		if !models.ValidIssuePriority(priority) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", v)), nil
		}
		patch.Priority = &priority
	}
	if v := request.GetString("type", ""); v != "" {
		issueType := models.IssueType(v)
		if !models.ValidIssueType(issueType) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid type: %s", v)), nil
		}
		patch.Type = &issueType
	}
	if request.GetArguments()["assignee_id"] != nil {
		assignee := request.GetString("assignee_id", "")
		patch.AssigneeID = &assignee
	}
	if request.GetArguments()["estimate"] != nil {
		estimate := request.GetInt("estimate", 0)
		patch.Estimate = &estimate
	}

	issue, err := s.store.PatchIssue(ctx, issueID, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}
	return jsonResult(toIssueOut([]*models.Issue{issue})[0])
}

// taskora_reprioritize
func (s *Server) reprioritizeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_reprioritize",
		mcp.WithDescription("Score a project's backlog and stage AI-proposed rankings. Proposals do not change the live order until applied."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
	)
	return tool, s.handleReprioritize
}

func (s *Server) handleReprioritize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	outcome, err := s.triage.Reprioritize(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reprioritization failed: %v", err)), nil
	}
	return jsonResult(outcome)
}

// taskora_list_proposals
func (s *Server) listProposalsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_list_proposals",
		mcp.WithDescription("List a project's staged rank proposals, ascending by proposed rank."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
	)
	return tool, s.handleListProposals
}

func (s *Server) handleListProposals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	issues, err := s.store.ListProposals(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list proposals: %v", err)), nil
	}
	return jsonResult(toIssueOut(issues))
}

// taskora_apply_rankings
func (s *Server) applyRankingsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_apply_rankings",
		mcp.WithDescription("Apply a project's staged rank proposals to the authoritative order. No-op when nothing is staged."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
	)
	return tool, s.handleApplyRankings
}

func (s *Server) handleApplyRankings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	updated, err := s.triage.ApplyRankings(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to apply rankings: %v", err)), nil
	}
	return jsonResult(map[string]int{"updated_count": updated})
}

// taskora_auto_assign
func (s *Server) autoAssignTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_auto_assign",
		mcp.WithDescription("Distribute unassigned issues across developers by priority, load, and skill affinity. Optionally scoped to one project."),
		mcp.WithString("project", mcp.Description("Project key or id (omit to run across all projects)")),
	)
	return tool, s.handleAutoAssign
}

func (s *Server) handleAutoAssign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var projectID string
	if ref := request.GetString("project", ""); ref != "" {
		p, err := s.resolveProject(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
		}
		projectID = p.ID
	}

	outcome, err := s.triage.AutoAssign(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("auto-assignment failed: %v", err)), nil
	}
	return jsonResult(outcome)
}

// taskora_query
func (s *Server) queryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("taskora_query",
		mcp.WithDescription("Search a project's issues with a free-text query (e.g. \"unassigned critical bugs created after june\"). Returns at most 10 matches."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Free-text search")),
		mcp.WithString("as_subject", mcp.Description("Identity subject used to resolve \"my issues\"")),
	)
	return tool, s.handleQuery
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	if s.parser == nil {
		return mcp.NewToolResultError("no query translator configured (set anthropic.api_key)"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	filter, err := s.parser.ParseQuery(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query translation failed: %v", err)), nil
	}

	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	viewer := query.Viewer{NameToID: make(map[string]string)}
	if subject := request.GetString("as_subject", ""); subject != "" {
		if user, err := s.store.GetUserBySubject(ctx, subject); err == nil {
			viewer.UserID = user.ID
		}
	}
	users, err := s.store.ListUsers(ctx, "")
	if err == nil {
		for _, u := range users {
			viewer.NameToID[strings.ToLower(u.Name)] = u.ID
		}
	}

	matched := query.Evaluate(issues, *filter, viewer)
	return jsonResult(map[string]any{
		"filter":       filter,
		"issues":       toIssueOut(matched),
		"evaluated_at": time.Now().UTC().Format(time.RFC3339),
	})
}
