package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

type testStore interface {
	store.Store
	store.ContentWriter
}

// newTestStores returns every implementation so each test runs against both.
func newTestStores(t *testing.T) map[string]testStore {
	t.Helper()

	sqlite, err := store.OpenSQL("sqlite3", ":memory:", 0)
	if err != nil {
		t.Fatalf("OpenSQL() error = %v", err)
	}
	if err := sqlite.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]testStore{
		"memory": store.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func seedContent(t *testing.T, s store.ContentWriter) {
	t.Helper()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := store.ApplySeed(context.Background(), s, &store.Seed{
		Courses: []models.Course{
			{ID: "c1", TenantID: "t1", Title: "ML 101"},
			{ID: "c2", TenantID: "t2", Title: "Other tenant"},
		},
		Modules: []models.Module{{ID: "m1", CourseID: "c1", Name: "Basics"}},
		Pages: []models.Page{
			{ID: "p2", CourseID: "c1", ModuleID: "m1", Title: "Second", BodyMarkdown: "b", Position: 2},
			{ID: "p1", CourseID: "c1", ModuleID: "m1", Title: "Intro", BodyMarkdown: "a", Position: 1},
			{ID: "p9", CourseID: "c2", Title: "Hidden", BodyMarkdown: "secret"},
		},
		Assignments: []models.Assignment{
			{ID: "a-late", CourseID: "c1", ModuleID: "m1", Name: "Late", DueAt: due.Add(48 * time.Hour)},
			{ID: "a-early", CourseID: "c1", ModuleID: "m1", Name: "Early", DueAt: due},
		},
		Memberships: []models.Membership{{CourseID: "c1", UserID: "u1", Role: models.RoleStudent}},
	})
	if err != nil {
		t.Fatalf("ApplySeed() error = %v", err)
	}
}

// ─── Conversations ───────────────────────────────────────────

func TestConversationOwnership(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agent, err := s.EnsureAgent(ctx, models.AgentDefinition{Name: "content_helper", DefaultModel: "gpt-4-turbo"})
			if err != nil {
				t.Fatalf("EnsureAgent() error = %v", err)
			}

			conv := &models.Conversation{
				UserID:          "u1",
				AgentID:         agent.ID,
				ContextSnapshot: models.ContextSnapshot{CourseID: "c1", PageID: "p1"},
			}
			if err := s.CreateConversation(ctx, conv); err != nil {
				t.Fatalf("CreateConversation() error = %v", err)
			}
			if conv.ID == "" {
				t.Fatal("CreateConversation() did not assign an id")
			}

			got, err := s.GetConversation(ctx, conv.ID, "u1")
			if err != nil {
				t.Fatalf("GetConversation() error = %v", err)
			}
			if got.ContextSnapshot.PageID != "p1" {
				t.Errorf("ContextSnapshot.PageID = %q, want %q", got.ContextSnapshot.PageID, "p1")
			}

			_, err = s.GetConversation(ctx, conv.ID, "someone-else")
			if !store.IsNotFound(err) {
				t.Errorf("GetConversation(other user) error = %v, want not found", err)
			}
			if errs.KindOf(store.AsDomainError(err)) != errs.NotFound {
				t.Errorf("AsDomainError() kind = %v, want %v", errs.KindOf(store.AsDomainError(err)), errs.NotFound)
			}

			if err := s.UpdateConversationModel(ctx, conv.ID, "gpt-4-turbo-2024-04-09"); err != nil {
				t.Fatalf("UpdateConversationModel() error = %v", err)
			}
			got, _ = s.GetConversation(ctx, conv.ID, "u1")
			if got.ModelVersion != "gpt-4-turbo-2024-04-09" {
				t.Errorf("ModelVersion = %q, want %q", got.ModelVersion, "gpt-4-turbo-2024-04-09")
			}
		})
	}
}

func TestEnsureAgentIsIdempotent(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			def := models.AgentDefinition{Name: "content_helper"}
			first, err := s.EnsureAgent(ctx, def)
			if err != nil {
				t.Fatalf("EnsureAgent() error = %v", err)
			}
			second, err := s.EnsureAgent(ctx, def)
			if err != nil {
				t.Fatalf("EnsureAgent() second call error = %v", err)
			}
			if first.ID != second.ID {
				t.Errorf("EnsureAgent() ids differ: %q vs %q", first.ID, second.ID)
			}
		})
	}
}

// ─── Messages ────────────────────────────────────────────────

func TestAppendTurnAndRecentWindow(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agent, _ := s.EnsureAgent(ctx, models.AgentDefinition{Name: "a"})
			conv := &models.Conversation{UserID: "u1", AgentID: agent.ID}
			if err := s.CreateConversation(ctx, conv); err != nil {
				t.Fatalf("CreateConversation() error = %v", err)
			}

			for i := 0; i < 3; i++ {
				user := &models.Message{ConversationID: conv.ID, Sender: models.SenderUser, Content: "q" + string(rune('0'+i))}
				reply := &models.Message{ConversationID: conv.ID, Sender: models.SenderAgent, Content: "a" + string(rune('0'+i))}
				if err := s.AppendTurn(ctx, user, reply); err != nil {
					t.Fatalf("AppendTurn() error = %v", err)
				}
			}

			all, err := s.ListRecentMessages(ctx, conv.ID, 0)
			if err != nil {
				t.Fatalf("ListRecentMessages() error = %v", err)
			}
			if len(all) != 6 {
				t.Fatalf("ListRecentMessages() returned %d, want 6", len(all))
			}

			recent, err := s.ListRecentMessages(ctx, conv.ID, 3)
			if err != nil {
				t.Fatalf("ListRecentMessages() error = %v", err)
			}
			want := []string{"a1", "q2", "a2"}
			if len(recent) != len(want) {
				t.Fatalf("ListRecentMessages(3) returned %d, want %d", len(recent), len(want))
			}
			for i, m := range recent {
				if m.Content != want[i] {
					t.Errorf("recent[%d].Content = %q, want %q", i, m.Content, want[i])
				}
			}
			if recent[1].Sender != models.SenderUser {
				t.Errorf("recent[1].Sender = %q, want %q", recent[1].Sender, models.SenderUser)
			}
		})
	}
}

func TestAppendTurnCancelledWritesNothing(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agent, _ := s.EnsureAgent(ctx, models.AgentDefinition{Name: "a"})
			conv := &models.Conversation{UserID: "u1", AgentID: agent.ID}
			s.CreateConversation(ctx, conv)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			err := s.AppendTurn(cancelled,
				&models.Message{ConversationID: conv.ID, Sender: models.SenderUser, Content: "q"},
				&models.Message{ConversationID: conv.ID, Sender: models.SenderAgent, Content: "a"})
			if err == nil {
				t.Fatal("AppendTurn() with cancelled context succeeded, want error")
			}
			msgs, _ := s.ListRecentMessages(ctx, conv.ID, 10)
			if len(msgs) != 0 {
				t.Errorf("ListRecentMessages() returned %d after cancelled turn, want 0", len(msgs))
			}
		})
	}
}

// ─── Content ─────────────────────────────────────────────────

func TestContentScoping(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedContent(t, s)

			if _, err := s.GetCourse(ctx, "t1", "c1"); err != nil {
				t.Fatalf("GetCourse() error = %v", err)
			}
			if _, err := s.GetCourse(ctx, "t1", "c2"); !store.IsNotFound(err) {
				t.Errorf("GetCourse(cross tenant) error = %v, want not found", err)
			}

			pages, err := s.ListCoursePages(ctx, "c1")
			if err != nil {
				t.Fatalf("ListCoursePages() error = %v", err)
			}
			if len(pages) != 2 || pages[0].ID != "p1" || pages[1].ID != "p2" {
				t.Errorf("ListCoursePages() = %+v, want p1 then p2", pages)
			}

			assignments, err := s.ListModuleAssignments(ctx, "m1")
			if err != nil {
				t.Fatalf("ListModuleAssignments() error = %v", err)
			}
			if len(assignments) != 2 || assignments[0].ID != "a-early" {
				t.Errorf("ListModuleAssignments() = %+v, want a-early first", assignments)
			}

			ok, _ := s.IsMember(ctx, "c1", "u1")
			if !ok {
				t.Error("IsMember(c1, u1) = false, want true")
			}
			ok, _ = s.IsMember(ctx, "c1", "u2")
			if ok {
				t.Error("IsMember(c1, u2) = true, want false")
			}

			if _, err := s.GetPage(ctx, "missing"); !store.IsNotFound(err) {
				t.Errorf("GetPage(missing) error = %v, want not found", err)
			}
			if _, err := s.GetModule(ctx, "missing"); !store.IsNotFound(err) {
				t.Errorf("GetModule(missing) error = %v, want not found", err)
			}
		})
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	fixture := `
courses:
  - {id: c1, tenant_id: t1, title: Intro to ML}
pages:
  - id: p1
    course_id: c1
    title: Intro
    body: Welcome to machine learning basics
memberships:
  - {course_id: c1, user_id: u1, role: student}
`
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}

	s := store.NewMemoryStore()
	if err := store.LoadSeed(context.Background(), s, path); err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	p, err := s.GetPage(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if p.BodyMarkdown != "Welcome to machine learning basics" {
		t.Errorf("BodyMarkdown = %q", p.BodyMarkdown)
	}
}

func TestOpenSQLDrivers(t *testing.T) {
	// database/sql opens lazily, so this only checks that the postgres
	// driver is registered; no server is contacted.
	pg, err := store.OpenSQL("postgres", "postgres://studyhall@127.0.0.1:1/studyhall", 4)
	if err != nil {
		t.Fatalf("OpenSQL(postgres) error = %v", err)
	}
	pg.Close()

	if _, err := store.OpenSQL("mysql", "dsn", 0); err == nil {
		t.Fatal("OpenSQL(mysql) error = nil, want unsupported driver")
	}
}
