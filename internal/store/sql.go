package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/studyhall/pkg/models"

	// SQL drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLStore implements Store on PostgreSQL or SQLite.
// Queries are written with `?` placeholders and rebound for postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenSQL opens a database and returns a store over it. The schema is not
// created until Migrate is called.
func OpenSQL(driver, dsn string, maxConns int) (*SQLStore, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite3)", driver)
	}
	db, err := sql.Open(sqlDriverName(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// One writer at a time; a single connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	} else {
		if maxConns > 0 {
			db.SetMaxOpenConns(maxConns)
			db.SetMaxIdleConns(maxConns / 2)
		}
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return NewSQLStore(db, driver)
}

// sqlDriverName maps a dialect onto its registered database/sql driver.
// Postgres is served by pgx.
func sqlDriverName(dialect string) string {
	if dialect == "postgres" {
		return "pgx"
	}
	return dialect
}

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "sqlite" {
		dialect = "sqlite3"
	}
	if dialect != "postgres" && dialect != "sqlite3" {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate executes the embedded schema one statement at a time.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Debug().Str("dialect", s.dialect).Msg("Schema migrated")
	return nil
}

// q rebinds `?` placeholders to `$n` for postgres.
func (s *SQLStore) q(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	return convertToPostgresPlaceholders(query)
}

func convertToPostgresPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ── Conversations ───────────────────────────────────────────

func (s *SQLStore) GetConversation(ctx context.Context, id, userID string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, agent_id, model_version, course_id, module_id, page_id, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?`), id, userID)

	var c models.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.AgentID, &c.ModelVersion,
		&c.ContextSnapshot.CourseID, &c.ContextSnapshot.ModuleID, &c.ContextSnapshot.PageID,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "conversation", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO conversations (id, user_id, agent_id, model_version, course_id, module_id, page_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		conv.ID, conv.UserID, conv.AgentID, conv.ModelVersion,
		conv.ContextSnapshot.CourseID, conv.ContextSnapshot.ModuleID, conv.ContextSnapshot.PageID,
		conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateConversationModel(ctx context.Context, id, modelVersion string) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE conversations SET model_version = ?, updated_at = ? WHERE id = ?`),
		modelVersion, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update conversation model: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	return nil
}

// ── Messages ────────────────────────────────────────────────

func (s *SQLStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	const cols = `id, conversation_id, sender, content, created_at, position`
	query := `SELECT ` + cols + ` FROM messages WHERE conversation_id = ? ORDER BY position ASC`
	args := []any{conversationID}
	if limit > 0 {
		// Newest N in chronological order.
		query = `SELECT ` + cols + ` FROM (
			SELECT ` + cols + ` FROM messages WHERE conversation_id = ?
			ORDER BY position DESC LIMIT ?
		) sub ORDER BY position ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m      models.Message
			sender string
			pos    int
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &sender, &m.Content, &m.CreatedAt, &pos); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = models.Sender(sender)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendTurn inserts both messages in one transaction. A cancelled context
// rolls back the whole turn.
func (s *SQLStore) AppendTurn(ctx context.Context, user, agent *models.Message) error {
	if user.ConversationID != agent.ConversationID {
		return fmt.Errorf("append turn: messages belong to different conversations")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pos int
	if err := tx.QueryRowContext(ctx, s.q(
		`SELECT COALESCE(MAX(position), 0) FROM messages WHERE conversation_id = ?`),
		user.ConversationID).Scan(&pos); err != nil {
		return fmt.Errorf("next message position: %w", err)
	}

	now := time.Now().UTC()
	insert := s.q(`INSERT INTO messages (id, conversation_id, position, sender, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, m := range []*models.Message{user, agent} {
		pos++
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.CreatedAt = now
		if _, err := tx.ExecContext(ctx, insert, m.ID, m.ConversationID, pos, string(m.Sender), m.Content, m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.q(`UPDATE conversations SET updated_at = ? WHERE id = ?`),
		now, user.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ── Agents ──────────────────────────────────────────────────

func (s *SQLStore) EnsureAgent(ctx context.Context, def models.AgentDefinition) (*models.AgentRecord, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO agents (id, name, description, default_model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING`),
		uuid.New().String(), def.Name, def.Description, def.DefaultModel, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ensure agent: %w", err)
	}

	var rec models.AgentRecord
	err = s.db.QueryRowContext(ctx, s.q(
		`SELECT id, name, description, default_model, created_at FROM agents WHERE name = ?`), def.Name).
		Scan(&rec.ID, &rec.Name, &rec.Description, &rec.DefaultModel, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	return &rec, nil
}

// ── Content ─────────────────────────────────────────────────

func (s *SQLStore) GetCourse(ctx context.Context, tenantID, courseID string) (*models.Course, error) {
	var c models.Course
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, tenant_id, title, description FROM courses WHERE id = ? AND tenant_id = ?`),
		courseID, tenantID).Scan(&c.ID, &c.TenantID, &c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "course", Key: courseID}
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

const pageCols = `id, course_id, module_id, title, body_markdown, position`

func scanPage(sc interface{ Scan(...any) error }) (models.Page, error) {
	var p models.Page
	err := sc.Scan(&p.ID, &p.CourseID, &p.ModuleID, &p.Title, &p.BodyMarkdown, &p.Position)
	return p, err
}

func (s *SQLStore) GetPage(ctx context.Context, pageID string) (*models.Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, s.q(`SELECT `+pageCols+` FROM pages WHERE id = ?`), pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "page", Key: pageID}
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &p, nil
}

func (s *SQLStore) GetModule(ctx context.Context, moduleID string) (*models.Module, error) {
	var m models.Module
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, course_id, name, position FROM modules WHERE id = ?`), moduleID).
		Scan(&m.ID, &m.CourseID, &m.Name, &m.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "module", Key: moduleID}
	}
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}
	return &m, nil
}

func (s *SQLStore) listPages(ctx context.Context, query string, arg string) ([]models.Page, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), arg)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	var out []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListCoursePages(ctx context.Context, courseID string) ([]models.Page, error) {
	return s.listPages(ctx, `SELECT `+pageCols+` FROM pages WHERE course_id = ? ORDER BY position ASC, id ASC`, courseID)
}

func (s *SQLStore) ListModulePages(ctx context.Context, moduleID string) ([]models.Page, error) {
	return s.listPages(ctx, `SELECT `+pageCols+` FROM pages WHERE module_id = ? ORDER BY id ASC`, moduleID)
}

func (s *SQLStore) ListModuleAssignments(ctx context.Context, moduleID string) ([]models.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, course_id, module_id, name, description, due_at
		FROM assignments WHERE module_id = ? ORDER BY due_at ASC, id ASC`), moduleID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.ModuleID, &a.Name, &a.Description, &a.DueAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) IsMember(ctx context.Context, courseID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM course_memberships WHERE course_id = ? AND user_id = ?`),
		courseID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// ── Content writes ──────────────────────────────────────────

func (s *SQLStore) PutCourse(ctx context.Context, c *models.Course) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO courses (id, tenant_id, title, description) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET tenant_id = excluded.tenant_id, title = excluded.title,
			description = excluded.description`),
		c.ID, c.TenantID, c.Title, c.Description)
	return wrapPut("course", err)
}

func (s *SQLStore) PutModule(ctx context.Context, m *models.Module) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO modules (id, course_id, name, position) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET course_id = excluded.course_id, name = excluded.name,
			position = excluded.position`),
		m.ID, m.CourseID, m.Name, m.Position)
	return wrapPut("module", err)
}

func (s *SQLStore) PutPage(ctx context.Context, p *models.Page) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO pages (id, course_id, module_id, title, body_markdown, position) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET course_id = excluded.course_id, module_id = excluded.module_id,
			title = excluded.title, body_markdown = excluded.body_markdown, position = excluded.position`),
		p.ID, p.CourseID, p.ModuleID, p.Title, p.BodyMarkdown, p.Position)
	return wrapPut("page", err)
}

func (s *SQLStore) PutAssignment(ctx context.Context, a *models.Assignment) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO assignments (id, course_id, module_id, name, description, due_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET course_id = excluded.course_id, module_id = excluded.module_id,
			name = excluded.name, description = excluded.description, due_at = excluded.due_at`),
		a.ID, a.CourseID, a.ModuleID, a.Name, a.Description, a.DueAt.UTC())
	return wrapPut("assignment", err)
}

func (s *SQLStore) PutMembership(ctx context.Context, m *models.Membership) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO course_memberships (course_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (course_id, user_id) DO UPDATE SET role = excluded.role`),
		m.CourseID, m.UserID, string(m.Role))
	return wrapPut("membership", err)
}

func wrapPut(entity string, err error) error {
	if err != nil {
		return fmt.Errorf("put %s: %w", entity, err)
	}
	return nil
}
