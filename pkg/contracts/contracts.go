// Package contracts defines the service interfaces of the agent plane.
//
// The orchestrator and HTTP handlers depend on these interfaces, so a
// provider, retriever or store can be swapped in the wiring code
// (pkg/server) without touching the turn loop.
package contracts

import (
	"context"

	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

// Store is a type alias for the internal Store interface.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Chat Model ──────────────────────────────────────────────

// ChatModel is the Model Gateway contract. It is the only path to the
// external chat-completion service.
type ChatModel interface {
	CallChatModel(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error)
}

// ── Provider Driver ─────────────────────────────────────────

// ProviderDriver translates a provider-neutral request into one vendor's
// wire format and back.
// Ships: OpenAI and Anthropic drivers (internal/gateway).
type ProviderDriver interface {
	// Kind returns the provider identifier (e.g., "openai", "anthropic").
	Kind() string

	// Configured reports whether a credential is present. The gateway checks
	// it before any network call.
	Configured() bool

	// DefaultModel is the model used when no served model is requested.
	DefaultModel() string

	// Serves reports whether the provider accepts this model id.
	Serves(model string) bool

	// Call sends a chat completion request to the provider.
	Call(ctx context.Context, req *models.ProviderRequest) (*models.CompletionResponse, error)
}

// ── Retriever ───────────────────────────────────────────────

// Retriever returns ranked content chunks for a query. Implementations must
// honor tenant scoping and return results in descending score order with
// ties kept in stable input order.
type Retriever interface {
	Name() string
	Search(ctx context.Context, q models.RetrievalQuery) ([]models.RetrievedChunk, error)
}

// ── Tool Executor ───────────────────────────────────────────

// ToolExecutor runs one tool call under the caller's execution context.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, ec models.ExecutionContext) (any, error)
	DefinitionsFor(agentName string) []models.ToolDefinition
}
