// Package store provides the persistence collaborator for the agent plane.
// MemoryStore backs local dev and tests; SQLStore backs PostgreSQL and SQLite.
package store

import (
	"context"
	"errors"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/pkg/models"
)

// Store is the storage interface used by the orchestrator, retrievers and tools.
// All handler code depends on this interface, so the memory and SQL
// implementations are interchangeable.
type Store interface {
	ConversationStore
	MessageStore
	AgentStore
	ContentStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate creates the schema if needed.
	Migrate(ctx context.Context) error
}

// ── Conversation Store ──────────────────────────────────────

type ConversationStore interface {
	// GetConversation returns the conversation only if userID owns it.
	// A conversation owned by someone else is reported as not found.
	GetConversation(ctx context.Context, id, userID string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	UpdateConversationModel(ctx context.Context, id, modelVersion string) error
}

// ── Message Store ───────────────────────────────────────────

type MessageStore interface {
	// ListRecentMessages returns the newest limit messages, oldest first.
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// AppendTurn writes the user and agent messages of one turn together.
	// Either both land or neither does.
	AppendTurn(ctx context.Context, user, agent *models.Message) error
}

// ── Agent Store ─────────────────────────────────────────────

type AgentStore interface {
	// EnsureAgent returns the persisted record for the agent, creating it
	// on first use.
	EnsureAgent(ctx context.Context, def models.AgentDefinition) (*models.AgentRecord, error)
}

// ── Content Store ───────────────────────────────────────────

// ContentStore is the read side of course content. Every course lookup is
// tenant-scoped; pages and modules are fetched by id and callers must check
// the owning course against the caller's tenant.
type ContentStore interface {
	GetCourse(ctx context.Context, tenantID, courseID string) (*models.Course, error)
	GetPage(ctx context.Context, pageID string) (*models.Page, error)
	GetModule(ctx context.Context, moduleID string) (*models.Module, error)
	// ListCoursePages returns pages of a course ordered by position then id.
	ListCoursePages(ctx context.Context, courseID string) ([]models.Page, error)
	// ListModulePages returns pages of a module ordered by id.
	ListModulePages(ctx context.Context, moduleID string) ([]models.Page, error)
	// ListModuleAssignments returns assignments ordered by due date.
	ListModuleAssignments(ctx context.Context, moduleID string) ([]models.Assignment, error)
	IsMember(ctx context.Context, courseID, userID string) (bool, error)
}

// ContentWriter loads course content. Used by seeding and tests; the chat
// path never writes content.
type ContentWriter interface {
	PutCourse(ctx context.Context, c *models.Course) error
	PutModule(ctx context.Context, m *models.Module) error
	PutPage(ctx context.Context, p *models.Page) error
	PutAssignment(ctx context.Context, a *models.Assignment) error
	PutMembership(ctx context.Context, m *models.Membership) error
}

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// AsDomainError maps a not-found store error onto errs.NotFound with a
// client-safe message that never echoes the key.
func AsDomainError(err error) error {
	var nf *ErrNotFound
	if errors.As(err, &nf) {
		return &errs.Error{Kind: errs.NotFound, Message: nf.Entity + " not found", Err: err}
	}
	return err
}
