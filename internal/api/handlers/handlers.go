// Package handlers implements the HTTP handlers for the studyhall AI API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/tools"
	pkgmw "github.com/agentoven/studyhall/pkg/middleware"
	"github.com/agentoven/studyhall/pkg/models"
)

// maxChatBody caps the request body of a chat turn.
const maxChatBody = 1 << 20

// Chatter runs one chat turn.
type Chatter interface {
	Chat(ctx context.Context, caller models.ExecutionContext, req models.ChatRequest) (*models.ChatResponse, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Chat    Chatter
	Agents  *catalog.Catalog
	Tools   *tools.Catalog
	Store   Pinger
	Version string
}

// New creates a new Handlers instance with all dependencies.
func New(chat Chatter, agents *catalog.Catalog, tc *tools.Catalog, store Pinger, version string) *Handlers {
	return &Handlers{Chat: chat, Agents: agents, Tools: tc, Store: store, Version: version}
}

// ── AI ──────────────────────────────────────────────────────

// PostChat handles POST /api/v1/ai/chat.
func (h *Handlers) PostChat(w http.ResponseWriter, r *http.Request) {
	caller, ok := pkgmw.ExecutionContextFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Chat.Chat(r.Context(), caller, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListAgents handles GET /api/v1/ai/agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	defs := h.Agents.List()
	out := make([]models.AgentSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Summary())
	}
	respondJSON(w, http.StatusOK, map[string]any{"agents": out})
}

// ListTools handles GET /api/v1/ai/tools?agentName=&contextType=.
// Without agentName every tool the caller's role may run is listed.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	caller, ok := pkgmw.ExecutionContextFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	var defs []models.ToolDefinition
	if agent := q.Get("agentName"); agent != "" {
		defs = h.Tools.Contextual(agent, caller.Role, models.ContextType(q.Get("contextType")))
	} else {
		defs = h.Tools.ForRole(caller.Role)
	}

	out := make([]models.ToolSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Summary())
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// ── Service ─────────────────────────────────────────────────

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check: store unavailable")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "studyhall-ai",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "studyhall-ai",
	})
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
		"service": "studyhall-ai",
	})
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr writes a classified error. Only the client-safe message
// leaves the process.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, StatusFor(err), errs.PublicMessage(err))
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Forbidden:
		return http.StatusForbidden
	case errs.InvalidArguments, errs.UnknownAgent, errs.UnknownTool, errs.BadRequest:
		return http.StatusBadRequest
	case errs.InvalidToolOutput:
		return http.StatusBadGateway
	case errs.ModelUnavailable:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case errs.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
