// Package api exposes the taskora operations surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ldsgroups225/taskora/internal/models"
	"github.com/ldsgroups225/taskora/internal/query"
	"github.com/ldsgroups225/taskora/internal/store"
	"github.com/ldsgroups225/taskora/internal/triage"
)

// SubjectHeader carries the authenticated subject id supplied by the
// external identity provider. Absence means unauthenticated.
const SubjectHeader = "X-Taskora-Subject"

// QueryParser translates free text into a structured issue filter.
type QueryParser interface {
	ParseQuery(ctx context.Context, text string) (*query.Filter, error)
}

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	triage *triage.Service
	parser QueryParser
}

// NewServer creates a new API server. The parser may be nil if no API
// key is configured; free-text queries then return an error while
// structured filters keep working.
func NewServer(s store.Store, t *triage.Service, parser QueryParser) *Server {
	return &Server{store: s, triage: t, parser: parser}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}", s.updateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/users", s.listUsers)
	mux.HandleFunc("POST /api/v1/users", s.createUser)

	mux.HandleFunc("GET /api/v1/projects/{id}/issues", s.listProjectIssues)
	mux.HandleFunc("POST /api/v1/projects/{id}/issues", s.createProjectIssue)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}", s.patchIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)

	mux.HandleFunc("POST /api/v1/projects/{id}/triage/reprioritize", s.reprioritize)
	mux.HandleFunc("GET /api/v1/projects/{id}/triage/proposals", s.listProposals)
	mux.HandleFunc("POST /api/v1/projects/{id}/triage/apply", s.applyRankings)
	mux.HandleFunc("POST /api/v1/triage/assign", s.autoAssign)

	mux.HandleFunc("POST /api/v1/projects/{id}/query", s.executeQuery)
	mux.HandleFunc("GET /api/v1/projects/{id}/logs", s.listAgentLogs)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SubjectHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps persistence errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// identify resolves the request's subject header to a user. Returns
// nil without error when the request is unauthenticated.
func (s *Server) identify(r *http.Request) (*models.User, error) {
	subject := r.Header.Get(SubjectHeader)
	if subject == "" {
		return nil, nil
	}
	user, err := s.store.GetUserBySubject(r.Context(), subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// requireIdentity resolves the caller or writes a 401.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) *models.User {
	user, err := s.identify(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil
	}
	return user
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(p.Key) == "" || strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusBadRequest, "key and name are required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	existing, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patchString(patch, "Key", &existing.Key)
	patchString(patch, "Name", &existing.Name)
	patchString(patch, "Description", &existing.Description)
	patchString(patch, "LeadID", &existing.LeadID)

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// patchString applies a string value from a JSON patch map to the target if the key is present and non-empty.
func patchString(patch map[string]any, key string, target *string) {
	if v, ok := patch[key]; ok {
		if str, ok := v.(string); ok && str != "" {
			*target = str
		}
	}
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	role := models.UserRole(r.URL.Query().Get("role"))
	users, err := s.store.ListUsers(r.Context(), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if u.Subject == "" || u.Name == "" {
		writeError(w, http.StatusBadRequest, "subject and name are required")
		return
	}
	if u.Role != "" && !models.ValidUserRole(u.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// --- Issues ---

func (s *Server) listProjectIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueListFilter{
		ProjectID:  r.PathValue("id"),
		Status:     models.IssueStatus(r.URL.Query().Get("status")),
		AssigneeID: r.URL.Query().Get("assignee"),
		Unassigned: r.URL.Query().Get("unassigned") == "true",
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createProjectIssue(w http.ResponseWriter, r *http.Request) {
	user := s.requireIdentity(w, r)
	if user == nil {
		return
	}

	var issue models.Issue
	if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	issue.ProjectID = r.PathValue("id")
	issue.CreatorID = user.ID

	if strings.TrimSpace(issue.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if issue.Status != "" && !models.ValidIssueStatus(issue.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if issue.Priority != "" && !models.ValidIssuePriority(issue.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	if issue.Type != "" && !models.ValidIssueType(issue.Type) {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	if err := s.store.CreateIssue(r.Context(), &issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// issuePatchBody is the JSON shape of a partial issue update.
type issuePatchBody struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Status      *models.IssueStatus   `json:"status"`
	Priority    *models.IssuePriority `json:"priority"`
	Type        *models.IssueType     `json:"type"`
	AssigneeID  *string               `json:"assignee_id"`
	Estimate    *int                  `json:"estimate"`
	Order       *int                  `json:"order"`
}

func (s *Server) patchIssue(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}

	var body issuePatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Status != nil && !models.ValidIssueStatus(*body.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if body.Priority != nil && !models.ValidIssuePriority(*body.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	if body.Type != nil && !models.ValidIssueType(*body.Type) {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	issue, err := s.store.PatchIssue(r.Context(), r.PathValue("id"), store.IssuePatch{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		Type:        body.Type,
		AssigneeID:  body.AssigneeID,
		Estimate:    body.Estimate,
		Order:       body.Order,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	if err := s.store.DeleteIssue(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Triage ---

func (s *Server) reprioritize(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	outcome, err := s.triage.Reprioritize(r.Context(), r.PathValue("id"))
	if err != nil {
		// Interactive trigger: surface the failure so the UI can show it.
		slog.Error("reprioritize failed", "project", r.PathValue("id"), "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListProposals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) applyRankings(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	updated, err := s.triage.ApplyRankings(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated_count": updated})
}

func (s *Server) autoAssign(w http.ResponseWriter, r *http.Request) {
	if s.requireIdentity(w, r) == nil {
		return
	}
	outcome, err := s.triage.AutoAssign(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		slog.Error("auto-assign failed", "project", r.URL.Query().Get("project"), "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// --- Query ---

// queryBody carries either free text to translate or an explicit filter.
type queryBody struct {
	Text   string        `json:"text"`
	Filter *query.Filter `json:"filter"`
}

func (s *Server) executeQuery(w http.ResponseWriter, r *http.Request) {
	user := s.requireIdentity(w, r)
	if user == nil {
		return
	}

	var body queryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	filter := body.Filter
	if filter == nil {
		if strings.TrimSpace(body.Text) == "" {
			writeError(w, http.StatusBadRequest, "text or filter is required")
			return
		}
		if s.parser == nil {
			writeError(w, http.StatusBadRequest, "no query translator configured")
			return
		}
		parsed, err := s.parser.ParseQuery(r.Context(), body.Text)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		filter = parsed
	}

	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{ProjectID: r.PathValue("id")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	users, err := s.store.ListUsers(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	viewer := query.Viewer{UserID: user.ID, NameToID: make(map[string]string, len(users))}
	for _, u := range users {
		viewer.NameToID[strings.ToLower(u.Name)] = u.ID
	}

	matched := query.Evaluate(issues, *filter, viewer)
	writeJSON(w, http.StatusOK, map[string]any{
		"filter": filter,
		"issues": matched,
	})
}

// --- Agent logs ---

func (s *Server) listAgentLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAgentLogs(r.Context(), r.PathValue("id"), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
