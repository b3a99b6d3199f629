package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/studyhall/internal/api/handlers"
	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/internal/tools"
	"github.com/agentoven/studyhall/pkg/contracts"
	pkgmw "github.com/agentoven/studyhall/pkg/middleware"
	"github.com/agentoven/studyhall/pkg/models"
)

type stubChatter struct {
	gotCaller models.ExecutionContext
	gotReq    models.ChatRequest
	resp      *models.ChatResponse
	err       error
}

func (s *stubChatter) Chat(_ context.Context, caller models.ExecutionContext, req models.ChatRequest) (*models.ChatResponse, error) {
	s.gotCaller, s.gotReq = caller, req
	return s.resp, s.err
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newHandlers(t *testing.T, chat handlers.Chatter) *handlers.Handlers {
	t.Helper()
	agents := catalog.Default()
	tc, err := tools.NewCatalog(agents.ToolBindings())
	require.NoError(t, err)
	return handlers.New(chat, agents, tc, store.NewMemoryStore(), "v-test")
}

func asCaller(r *http.Request, role models.Role) *http.Request {
	id := &contracts.Identity{UserID: "u1", TenantID: "t1", Role: role, Provider: "dev"}
	return r.WithContext(pkgmw.WithIdentity(r.Context(), id))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPostChat(t *testing.T) {
	chat := &stubChatter{resp: &models.ChatResponse{ConversationID: "c1", Reply: "hello"}}
	h := newHandlers(t, chat)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat",
		strings.NewReader(`{"agentName":"content_helper","message":"hi","courseId":"C1"}`))
	rec := httptest.NewRecorder()
	h.PostChat(rec, asCaller(req, models.RoleStudent))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "c1", body["conversationId"])
	assert.Equal(t, "hello", body["reply"])
	assert.NotContains(t, body, "toolCalls")

	assert.Equal(t, models.ExecutionContext{UserID: "u1", TenantID: "t1", Role: models.RoleStudent}, chat.gotCaller)
	assert.Equal(t, "C1", chat.gotReq.CourseID)
}

func TestPostChatRequiresIdentity(t *testing.T) {
	h := newHandlers(t, &stubChatter{})
	rec := httptest.NewRecorder()
	h.PostChat(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostChatMalformedBody(t *testing.T) {
	h := newHandlers(t, &stubChatter{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat", strings.NewReader(`{"agentName":`))
	h.PostChat(rec, asCaller(req, models.RoleStudent))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode(t, rec)["error"])
}

func TestPostChatErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{errs.New(errs.UnknownAgent, "Unknown agent: %s", "nope"), http.StatusBadRequest, "Unknown agent: nope"},
		{errs.New(errs.NotFound, "conversation not found"), http.StatusNotFound, "conversation not found"},
		{errs.New(errs.BadRequest, "agentName and message are required"), http.StatusBadRequest, "agentName and message are required"},
		{errs.Wrap(errs.ModelUnavailable, errors.New("dial tcp"), "AI model request failed"), http.StatusServiceUnavailable, "AI model request failed"},
		{errs.Wrap(errs.ModelUnavailable, context.DeadlineExceeded, "AI model timed out"), http.StatusGatewayTimeout, "AI model timed out"},
		{errs.Wrap(errs.Internal, errors.New("ERROR: relation \"messages\" does not exist (SQLSTATE 42P01)"), "failed to save conversation"), http.StatusInternalServerError, "failed to save conversation"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status, " ", tc.msg), func(t *testing.T) {
			h := newHandlers(t, &stubChatter{err: tc.err})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat",
				strings.NewReader(`{"agentName":"content_helper","message":"hi"}`))
			h.PostChat(rec, asCaller(req, models.RoleStudent))

			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.msg, body["error"])
			assert.NotContains(t, rec.Body.String(), "SQLSTATE")
			assert.NotContains(t, rec.Body.String(), "dial tcp")
		})
	}
}

func TestStatusForForeignError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, handlers.StatusFor(errors.New("boom")))
	assert.Equal(t, http.StatusForbidden, handlers.StatusFor(errs.New(errs.Forbidden, "no")))
	assert.Equal(t, http.StatusBadGateway, handlers.StatusFor(errs.New(errs.InvalidToolOutput, "bad")))
}

func TestListAgents(t *testing.T) {
	h := newHandlers(t, &stubChatter{})
	rec := httptest.NewRecorder()
	h.ListAgents(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/ai/agents", nil), models.RoleStudent))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Agents []map[string]any `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Agents)
	assert.Equal(t, "content_helper", body.Agents[0]["name"])
	assert.NotContains(t, body.Agents[0], "defaultModel")
	assert.NotContains(t, rec.Body.String(), "gpt-4")
}

func toolNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var body struct {
		Tools []models.ToolSummary `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Tools))
	for _, tl := range body.Tools {
		names = append(names, tl.Name)
	}
	return names
}

func TestListTools(t *testing.T) {
	h := newHandlers(t, &stubChatter{})

	rec := httptest.NewRecorder()
	h.ListTools(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/ai/tools", nil), models.RoleStudent))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"search_course_content", "summarize_module"}, toolNames(t, rec))

	rec = httptest.NewRecorder()
	h.ListTools(rec, asCaller(httptest.NewRequest(http.MethodGet,
		"/api/v1/ai/tools?agentName=content_helper&contextType=module_page", nil), models.RoleInstructor))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"generate_practice_questions", "summarize_module"}, toolNames(t, rec))

	rec = httptest.NewRecorder()
	h.ListTools(rec, asCaller(httptest.NewRequest(http.MethodGet,
		"/api/v1/ai/tools?agentName=unknown", nil), models.RoleInstructor))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, toolNames(t, rec))
}

func TestHealth(t *testing.T) {
	h := newHandlers(t, &stubChatter{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	h.Store = downStore{}
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
