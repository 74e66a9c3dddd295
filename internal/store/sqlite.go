package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ldsgroups225/taskora/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	p.Key = models.NormalizeProjectKey(p.Key)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, key, name, description, lead_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Key, p.Name, p.Description, p.LeadID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getProjectWhere(ctx context.Context, where string, arg any) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, name, description, lead_id, created_at, updated_at
		FROM projects WHERE `+where, arg,
	).Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.LeadID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.getProjectWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetProjectByKey(ctx context.Context, key string) (*models.Project, error) {
	return s.getProjectWhere(ctx, "key = ?", models.NormalizeProjectKey(key))
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, name, description, lead_id, created_at, updated_at
		FROM projects ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.LeadID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.Key = models.NormalizeProjectKey(p.Key)
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET key=?, name=?, description=?, lead_id=?, updated_at=? WHERE id=?`,
		p.Key, p.Name, p.Description, p.LeadID, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("delete project issues: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	if u.Role == "" {
		u.Role = models.UserRoleDev
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, subject, name, email, role, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Subject, u.Name, u.Email, string(u.Role), u.AvatarURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getUserWhere(ctx context.Context, where string, arg any) (*models.User, error) {
	u := &models.User{}
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subject, name, email, role, avatar_url, created_at, updated_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Subject, &u.Name, &u.Email, &role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.UserRole(role)
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return s.getUserWhere(ctx, "subject = ?", subject)
}

func (s *SQLiteStore) ListUsers(ctx context.Context, role models.UserRole) ([]*models.User, error) {
	query := `SELECT id, subject, name, email, role, avatar_url, created_at, updated_at FROM users`
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var r string
		if err := rows.Scan(&u.ID, &u.Subject, &u.Name, &u.Email, &r, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.UserRole(r)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET subject=?, name=?, email=?, role=?, avatar_url=?, updated_at=? WHERE id=?`,
		u.Subject, u.Name, u.Email, string(u.Role), u.AvatarURL, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Issues ---

const issueCols = `id, project_id, parent_id, title, description, status, priority, type,
	assignee_id, creator_id, sort_order, estimate,
	proposed_order, proposed_reason, last_proposed_at, ai_assigned_at, ai_reprioritized_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var status, priority, issueType string
	var proposedOrder sql.NullInt64
	var lastProposedAt, aiAssignedAt, aiReprioritizedAt sql.NullTime

	err := row.Scan(&issue.ID, &issue.ProjectID, &issue.ParentID, &issue.Title, &issue.Description,
		&status, &priority, &issueType,
		&issue.AssigneeID, &issue.CreatorID, &issue.Order, &issue.Estimate,
		&proposedOrder, &issue.ProposedReason, &lastProposedAt, &aiAssignedAt, &aiReprioritizedAt,
		&issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	issue.Type = models.IssueType(issueType)
	if proposedOrder.Valid {
		v := int(proposedOrder.Int64)
		issue.ProposedOrder = &v
	}
	if lastProposedAt.Valid {
		issue.LastProposedAt = &lastProposedAt.Time
	}
	if aiAssignedAt.Valid {
		issue.AIAssignedAt = &aiAssignedAt.Time
	}
	if aiReprioritizedAt.Valid {
		issue.AIReprioritizedAt = &aiReprioritizedAt.Time
	}
	return issue, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusBacklog
	}
	if issue.Priority == "" {
		issue.Priority = models.IssuePriorityMedium
	}
	if issue.Type == "" {
		issue.Type = models.IssueTypeTask
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Allocate the next order slot at the end of the project backlog
	// when the caller did not position the issue explicitly.
	if issue.Order == 0 {
		var maxOrder sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			"SELECT MAX(sort_order) FROM issues WHERE project_id = ?", issue.ProjectID,
		).Scan(&maxOrder); err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		if maxOrder.Valid {
			issue.Order = int(maxOrder.Int64) + 10
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO issues (id, project_id, parent_id, title, description, status, priority, type,
			assignee_id, creator_id, sort_order, estimate, proposed_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		issue.ID, issue.ProjectID, issue.ParentID, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), string(issue.Type),
		issue.AssigneeID, issue.CreatorID, issue.Order, issue.Estimate,
		issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueCols+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueCols + ` FROM issues`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.NotStatus != "" {
		conditions = append(conditions, "status != ?")
		args = append(args, string(filter.NotStatus))
	}
	if filter.Unassigned {
		conditions = append(conditions, "assignee_id = ''")
	} else if filter.AssigneeID != "" {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.ParentID != "" {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, filter.ParentID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sort_order, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	var proposedOrder any
	if issue.ProposedOrder != nil {
		proposedOrder = *issue.ProposedOrder
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET parent_id=?, title=?, description=?, status=?, priority=?, type=?,
			assignee_id=?, sort_order=?, estimate=?,
			proposed_order=?, proposed_reason=?, last_proposed_at=?, ai_assigned_at=?, ai_reprioritized_at=?,
			updated_at=?
		WHERE id=?`,
		issue.ParentID, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), string(issue.Type),
		issue.AssigneeID, issue.Order, issue.Estimate,
		proposedOrder, issue.ProposedReason, issue.LastProposedAt, issue.AIAssignedAt, issue.AIReprioritizedAt,
		issue.UpdatedAt, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", issue.ID, ErrNotFound)
	}
	return nil
}

// PatchIssue applies a partial update and appends one audit entry per
// changed tracked field (status, priority, assignee) in the same
// transaction.
func (s *SQLiteStore) PatchIssue(ctx context.Context, id string, patch IssuePatch) (*models.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+issueCols+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	var activity []*models.AgentLog

	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != issue.Status {
		activity = append(activity, &models.AgentLog{
			ProjectID: issue.ProjectID,
			IssueID:   issue.ID,
			Action:    models.ActionStatusChanged,
			Result:    fmt.Sprintf("%s -> %s", issue.Status, *patch.Status),
			Status:    models.AgentLogStatusSuccess,
		})
		issue.Status = *patch.Status
	}
	if patch.Priority != nil && *patch.Priority != issue.Priority {
		activity = append(activity, &models.AgentLog{
			ProjectID: issue.ProjectID,
			IssueID:   issue.ID,
			Action:    models.ActionPriorityChanged,
			Result:    fmt.Sprintf("%s -> %s", issue.Priority, *patch.Priority),
			Status:    models.AgentLogStatusSuccess,
		})
		issue.Priority = *patch.Priority
	}
	if patch.Type != nil {
		issue.Type = *patch.Type
	}
	if patch.AssigneeID != nil && *patch.AssigneeID != issue.AssigneeID {
		activity = append(activity, &models.AgentLog{
			ProjectID: issue.ProjectID,
			IssueID:   issue.ID,
			Action:    models.ActionAssigneeChanged,
			Result:    fmt.Sprintf("%q -> %q", issue.AssigneeID, *patch.AssigneeID),
			Status:    models.AgentLogStatusSuccess,
		})
		issue.AssigneeID = *patch.AssigneeID
	}
	if patch.Estimate != nil {
		issue.Estimate = *patch.Estimate
	}
	if patch.Order != nil {
		issue.Order = *patch.Order
	}

	issue.UpdatedAt = time.Now().UTC()
	var proposedOrder any
	if issue.ProposedOrder != nil {
		proposedOrder = *issue.ProposedOrder
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE issues SET parent_id=?, title=?, description=?, status=?, priority=?, type=?,
			assignee_id=?, sort_order=?, estimate=?,
			proposed_order=?, proposed_reason=?, last_proposed_at=?, ai_assigned_at=?, ai_reprioritized_at=?,
			updated_at=?
		WHERE id=?`,
		issue.ParentID, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), string(issue.Type),
		issue.AssigneeID, issue.Order, issue.Estimate,
		proposedOrder, issue.ProposedReason, issue.LastProposedAt, issue.AIAssignedAt, issue.AIReprioritizedAt,
		issue.UpdatedAt, issue.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("patch issue: %w", err)
	}

	for _, entry := range activity {
		if err := insertAgentLog(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return issue, nil
}

// DeleteIssue removes an issue and all of its descendants. The cascade
// is recursive over the parent tree, not just direct children.
func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`WITH RECURSIVE descendants(id) AS (
			SELECT id FROM issues WHERE id = ?
			UNION ALL
			SELECT i.id FROM issues i JOIN descendants d ON i.parent_id = d.id
		)
		DELETE FROM issues WHERE id IN (SELECT id FROM descendants)`, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Rank proposals ---

// SaveProposals merges staged rank proposals onto issues without
// touching any authoritative field. Entries whose issue no longer
// exists in the project are skipped silently: an issue deleted between
// scoring and staging is expected, not an error.
func (s *SQLiteStore) SaveProposals(ctx context.Context, projectID string, entries []RankEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`UPDATE issues SET proposed_order=?, proposed_reason=?, last_proposed_at=?
			WHERE id=? AND project_id=?`,
			e.Rank, e.Reason, now, e.IssueID, projectID,
		)
		if err != nil {
			return fmt.Errorf("save proposal for %s: %w", e.IssueID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListProposals returns the non-done issues of a project with a staged
// proposal, ascending by proposed rank.
func (s *SQLiteStore) ListProposals(ctx context.Context, projectID string) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issueCols+` FROM issues
		WHERE project_id = ? AND proposed_order IS NOT NULL AND status != ?
		ORDER BY proposed_order, id`,
		projectID, string(models.IssueStatusDone))
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// ApplyProposals converts every pending proposal in the project into
// the authoritative order, using a stride of 10 to leave gaps for
// manual midpoint reordering. The whole batch commits in one
// transaction; with no pending proposals it is a no-op returning 0.
func (s *SQLiteStore) ApplyProposals(ctx context.Context, projectID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM issues
		WHERE project_id = ? AND proposed_order IS NOT NULL
		ORDER BY proposed_order, id`, projectID)
	if err != nil {
		return 0, fmt.Errorf("load proposals: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan proposal: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("load proposals: %w", err)
	}
	_ = rows.Close()

	now := time.Now().UTC()
	for i, id := range ids {
		_, err := tx.ExecContext(ctx,
			`UPDATE issues SET sort_order=?, proposed_order=NULL, proposed_reason='',
				last_proposed_at=NULL, ai_reprioritized_at=?, updated_at=?
			WHERE id=?`,
			i*10, now, now, id,
		)
		if err != nil {
			return 0, fmt.Errorf("apply proposal for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(ids), nil
}

// --- Agent logs ---

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAgentLog(ctx context.Context, db execer, entry *models.AgentLog) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.Status == "" {
		entry.Status = models.AgentLogStatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO agent_logs (id, project_id, issue_id, action, result, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProjectID, entry.IssueID, entry.Action, entry.Result,
		string(entry.Status), entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append agent log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendAgentLog(ctx context.Context, entry *models.AgentLog) error {
	return insertAgentLog(ctx, s.db, entry)
}

func (s *SQLiteStore) ListAgentLogs(ctx context.Context, projectID string, limit int) ([]*models.AgentLog, error) {
	query := `SELECT id, project_id, issue_id, action, result, status, error, created_at FROM agent_logs`
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agent logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.AgentLog
	for rows.Next() {
		e := &models.AgentLog{}
		var status string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.IssueID, &e.Action, &e.Result, &status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		e.Status = models.AgentLogStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
