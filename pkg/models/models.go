// Package models holds the shared domain types for the StudyHall agent plane.
package models

import (
	"sort"
	"strings"
	"time"
)

// ── Sets ─────────────────────────────────────────────────────

// Set is a membership set over a string-backed enumeration.
// Sets are built once when a catalog is constructed and are read-only afterwards.
type Set[T ~string] map[T]struct{}

// NewSet builds a set from the given members.
func NewSet[T ~string](members ...T) Set[T] {
	s := make(Set[T], len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// ParseSet splits a comma-separated list into a set, dropping blanks.
func ParseSet[T ~string](csv string) Set[T] {
	s := make(Set[T])
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			s[T(part)] = struct{}{}
		}
	}
	return s
}

// Has reports whether m is a member.
func (s Set[T]) Has(m T) bool {
	_, ok := s[m]
	return ok
}

// Empty reports whether the set has no members.
func (s Set[T]) Empty() bool { return len(s) == 0 }

// Sorted returns the members in lexical order.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ── Roles & Context Types ────────────────────────────────────

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ContextType names the navigational surface a tool applies to.
type ContextType string

const (
	ContextCoursePage ContextType = "course_page"
	ContextModulePage ContextType = "module_page"
)

type LatencyClass string

const (
	LatencySync  LatencyClass = "sync"
	LatencyAsync LatencyClass = "async"
)

// ── Agent Catalog ────────────────────────────────────────────

// ContextPolicy bounds how much retrieved content goes into a prompt.
type ContextPolicy struct {
	MaxContextTokens int `json:"maxContextTokens" yaml:"max_context_tokens"`
	RetrievalTopK    int `json:"retrievalTopK" yaml:"retrieval_top_k"`
}

// AgentDefinition is the process-wide, immutable description of an agent.
type AgentDefinition struct {
	Name          string
	Description   string
	DefaultModel  string
	ContextPolicy ContextPolicy
	UISurfaces    []string
	TargetRoles   Set[Role]
}

// AgentSummary is the client-safe projection of an AgentDefinition.
// It never carries model identifiers or context policy.
type AgentSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	UISurfaces  []string `json:"uiSurfaces"`
	TargetRoles []Role   `json:"targetRoles"`
}

// Summary returns the client-safe view of the agent.
func (a AgentDefinition) Summary() AgentSummary {
	surfaces := make([]string, len(a.UISurfaces))
	copy(surfaces, a.UISurfaces)
	return AgentSummary{
		Name:        a.Name,
		Description: a.Description,
		UISurfaces:  surfaces,
		TargetRoles: a.TargetRoles.Sorted(),
	}
}

// AgentRecord is the persisted foreign-key anchor for an agent.
// The catalog entry stays the source of truth for behavior.
type AgentRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DefaultModel string    `json:"defaultModel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ── Tool Catalog ─────────────────────────────────────────────

// ToolDefinition describes one tool the model may ask to invoke.
type ToolDefinition struct {
	ID                  string
	Name                string
	DisplayName         string
	Description         string
	InputSchema         map[string]any
	OutputSchema        map[string]any
	PermissionsRequired Set[Role]
	ContextTypes        Set[ContextType]
	LatencyClass        LatencyClass
}

// Permits reports whether role may execute the tool. An empty permission
// set means the tool is unrestricted.
func (t ToolDefinition) Permits(role Role) bool {
	return t.PermissionsRequired.Empty() || t.PermissionsRequired.Has(role)
}

// AppliesTo reports whether the tool is offered on the given context type.
func (t ToolDefinition) AppliesTo(ct ContextType) bool {
	return t.ContextTypes.Has(ct)
}

// ToolSummary is the client-facing projection of a ToolDefinition.
type ToolSummary struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"displayName"`
	Description  string        `json:"description"`
	ContextTypes []ContextType `json:"contextTypes"`
	LatencyClass LatencyClass  `json:"latencyClass"`
}

// Summary returns the client-facing view of the tool.
func (t ToolDefinition) Summary() ToolSummary {
	return ToolSummary{
		Name:         t.Name,
		DisplayName:  t.DisplayName,
		Description:  t.Description,
		ContextTypes: t.ContextTypes.Sorted(),
		LatencyClass: t.LatencyClass,
	}
}

// ExecutionContext identifies the caller for every permission check and
// data-access filter. It is built per request and never persisted.
type ExecutionContext struct {
	UserID   string
	TenantID string
	Role     Role
}

// ── Retrieval ────────────────────────────────────────────────

type ChunkMetadata struct {
	Title      string `json:"title"`
	SourceType string `json:"sourceType"`
	CourseID   string `json:"courseId,omitempty"`
	ModuleID   string `json:"moduleId,omitempty"`
}

// RetrievedChunk is one ranked unit of content returned by a retriever.
type RetrievedChunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// RetrievalQuery scopes one retriever search. TenantID is mandatory; a
// course outside the tenant yields no chunks.
type RetrievalQuery struct {
	TenantID   string
	CourseID   string
	Query      string
	TopK       int
	ExcludeIDs []string
}

// ── Chat Completion ──────────────────────────────────────────

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatTurn is one message sent to the chat model.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ToolCall is a structured function-call request parsed from a model response.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CompletionRequest is the provider-neutral input to the Model Gateway.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []ChatTurn
	Tools        []ToolDefinition
	// ModelHint is usually the agent's default model; the gateway may be
	// pinned to a different one.
	ModelHint string
}

// ProviderRequest is a CompletionRequest resolved against gateway settings.
type ProviderRequest struct {
	CompletionRequest
	Model       string
	Temperature float64
	MaxTokens   int
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// CompletionResponse is the provider-neutral output of the Model Gateway.
// ModelVersion is the identifier the provider reported, not the requested one.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	ModelVersion string
	Usage        TokenUsage
}

// ── Conversations ────────────────────────────────────────────

// ContextSnapshot records where the user was when a conversation started.
type ContextSnapshot struct {
	CourseID string `json:"courseId,omitempty" yaml:"course_id"`
	ModuleID string `json:"moduleId,omitempty" yaml:"module_id"`
	PageID   string `json:"pageId,omitempty" yaml:"page_id"`
}

type Conversation struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	AgentID         string          `json:"agentId"`
	ModelVersion    string          `json:"modelVersion"`
	ContextSnapshot ContextSnapshot `json:"contextSnapshot"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ChatRole maps a persisted sender onto the chat model role.
func (s Sender) ChatRole() ChatRole {
	if s == SenderUser {
		return ChatRoleUser
	}
	return ChatRoleAssistant
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ── Course Content ───────────────────────────────────────────

type Course struct {
	ID          string `json:"id" yaml:"id"`
	TenantID    string `json:"tenantId" yaml:"tenant_id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

type Module struct {
	ID       string `json:"id" yaml:"id"`
	CourseID string `json:"courseId" yaml:"course_id"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

type Page struct {
	ID           string `json:"id" yaml:"id"`
	CourseID     string `json:"courseId" yaml:"course_id"`
	ModuleID     string `json:"moduleId,omitempty" yaml:"module_id"`
	Title        string `json:"title" yaml:"title"`
	BodyMarkdown string `json:"bodyMarkdown" yaml:"body"`
	Position     int    `json:"position" yaml:"position"`
}

type Assignment struct {
	ID          string    `json:"id" yaml:"id"`
	CourseID    string    `json:"courseId" yaml:"course_id"`
	ModuleID    string    `json:"moduleId" yaml:"module_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	DueAt       time.Time `json:"dueAt" yaml:"due_at"`
}

type Membership struct {
	CourseID string `json:"courseId" yaml:"course_id"`
	UserID   string `json:"userId" yaml:"user_id"`
	Role     Role   `json:"role" yaml:"role"`
}

// ── Chat API ─────────────────────────────────────────────────

type ChatRequest struct {
	AgentName      string `json:"agentName"`
	Message        string `json:"message"`
	CourseID       string `json:"courseId,omitempty"`
	PageID         string `json:"pageId,omitempty"`
	ModuleID       string `json:"moduleId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ToolCallSummary reports a tool that actually ran during a turn.
type ToolCallSummary struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

type ChatResponse struct {
	ConversationID string            `json:"conversationId"`
	Reply          string            `json:"reply"`
	ToolCalls      []ToolCallSummary `json:"toolCalls,omitempty"`
}
