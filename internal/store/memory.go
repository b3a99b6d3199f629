// Package store: in-memory Store implementation.
// Used when no database is configured (local dev, tests).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentoven/studyhall/pkg/models"
)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation // key: id
	messages      map[string][]models.Message     // key: conversation id, append order
	agents        map[string]*models.AgentRecord  // key: name
	courses       map[string]*models.Course       // key: id
	modules       map[string]*models.Module       // key: id
	pages         map[string]*models.Page         // key: id
	assignments   map[string]*models.Assignment   // key: id
	members       map[string]models.Role          // key: course:user

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		agents:        make(map[string]*models.AgentRecord),
		courses:       make(map[string]*models.Course),
		modules:       make(map[string]*models.Module),
		pages:         make(map[string]*models.Page),
		assignments:   make(map[string]*models.Assignment),
		members:       make(map[string]models.Role),
		now:           time.Now,
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Conversations ───────────────────────────────────────────

func (m *MemoryStore) GetConversation(_ context.Context, id, userID string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return nil, &ErrNotFound{Entity: "conversation", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := m.now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	cp := *conv
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateConversationModel(_ context.Context, id, modelVersion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	c.ModelVersion = modelVersion
	c.UpdatedAt = m.now().UTC()
	return nil
}

// ── Messages ────────────────────────────────────────────────

func (m *MemoryStore) ListRecentMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[conversationID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]models.Message, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

func (m *MemoryStore) AppendTurn(ctx context.Context, user, agent *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ConversationID != agent.ConversationID {
		return &ErrNotFound{Entity: "conversation", Key: agent.ConversationID}
	}
	if _, ok := m.conversations[user.ConversationID]; !ok {
		return &ErrNotFound{Entity: "conversation", Key: user.ConversationID}
	}
	now := m.now().UTC()
	for _, msg := range []*models.Message{user, agent} {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		msg.CreatedAt = now
		m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	}
	return nil
}

// ── Agents ──────────────────────────────────────────────────

func (m *MemoryStore) EnsureAgent(_ context.Context, def models.AgentDefinition) (*models.AgentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.agents[def.Name]; ok {
		cp := *rec
		return &cp, nil
	}
	rec := &models.AgentRecord{
		ID:           uuid.New().String(),
		Name:         def.Name,
		Description:  def.Description,
		DefaultModel: def.DefaultModel,
		CreatedAt:    m.now().UTC(),
	}
	m.agents[def.Name] = rec
	cp := *rec
	return &cp, nil
}

// ── Content ─────────────────────────────────────────────────

func (m *MemoryStore) GetCourse(_ context.Context, tenantID, courseID string) (*models.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok || c.TenantID != tenantID {
		return nil, &ErrNotFound{Entity: "course", Key: courseID}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetPage(_ context.Context, pageID string) (*models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[pageID]
	if !ok {
		return nil, &ErrNotFound{Entity: "page", Key: pageID}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetModule(_ context.Context, moduleID string) (*models.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[moduleID]
	if !ok {
		return nil, &ErrNotFound{Entity: "module", Key: moduleID}
	}
	cp := *mod
	return &cp, nil
}

func (m *MemoryStore) ListCoursePages(_ context.Context, courseID string) ([]models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Page
	for _, p := range m.pages {
		if p.CourseID == courseID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListModulePages(_ context.Context, moduleID string) ([]models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Page
	for _, p := range m.pages {
		if p.ModuleID == moduleID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListModuleAssignments(_ context.Context, moduleID string) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.ModuleID == moduleID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) IsMember(_ context.Context, courseID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[courseID+":"+userID]
	return ok, nil
}

// ── Content writes ──────────────────────────────────────────

func (m *MemoryStore) PutCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *MemoryStore) PutModule(_ context.Context, mod *models.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mod
	m.modules[mod.ID] = &cp
	return nil
}

func (m *MemoryStore) PutPage(_ context.Context, p *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pages[p.ID] = &cp
	return nil
}

func (m *MemoryStore) PutAssignment(_ context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *MemoryStore) PutMembership(_ context.Context, mem *models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.CourseID+":"+mem.UserID] = mem.Role
	return nil
}
