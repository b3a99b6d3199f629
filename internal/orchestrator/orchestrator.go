// Package orchestrator runs one chat turn end to end.
//
// A turn walks a fixed sequence of states:
//
//	RESOLVE_AGENT → LOAD_OR_CREATE_CONVERSATION → LOAD_HISTORY →
//	BUILD_CONTEXT → FIRST_MODEL_CALL → [EXECUTE_TOOL → SECOND_MODEL_CALL] →
//	PERSIST → RESPOND
//
// At most one tool runs per turn, and the follow-up model call never
// advertises tools. A tool failure becomes an apology reply rather than a
// failed turn. Nothing is written until PERSIST, so a turn that fails
// earlier leaves no trace in the store.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/internal/contextbuilder"
	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/metrics"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// DefaultHistoryWindow is how many prior messages are replayed to the model.
const DefaultHistoryWindow = 10

var tracer = otel.Tracer("studyhall/orchestrator")

// State names one step of a turn.
type State string

const (
	StateResolveAgent     State = "RESOLVE_AGENT"
	StateLoadConversation State = "LOAD_OR_CREATE_CONVERSATION"
	StateLoadHistory      State = "LOAD_HISTORY"
	StateBuildContext     State = "BUILD_CONTEXT"
	StateFirstModelCall   State = "FIRST_MODEL_CALL"
	StateExecuteTool      State = "EXECUTE_TOOL"
	StateSecondModelCall  State = "SECOND_MODEL_CALL"
	StatePersist          State = "PERSIST"
)

// Persistence is the slice of the store a turn writes to.
type Persistence interface {
	store.ConversationStore
	store.MessageStore
	store.AgentStore
}

// Orchestrator turns a ChatRequest into a persisted reply.
type Orchestrator struct {
	agents  *catalog.Catalog
	store   Persistence
	context *contextbuilder.Builder
	model   contracts.ChatModel
	tools   contracts.ToolExecutor
	metrics *metrics.Metrics

	historyWindow int

	// In-flight guard keyed by conversation id.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistoryWindow overrides DefaultHistoryWindow.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

// WithMetrics records turn outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator.
func New(agents *catalog.Catalog, s Persistence, cb *contextbuilder.Builder, model contracts.ChatModel, tools contracts.ToolExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents:        agents,
		store:         s,
		context:       cb,
		model:         model,
		tools:         tools,
		historyWindow: DefaultHistoryWindow,
		inFlight:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turn carries the state accumulated while one request moves through the
// state machine.
type turn struct {
	req    models.ChatRequest
	caller models.ExecutionContext

	agent        models.AgentDefinition
	conv         *models.Conversation
	isNew        bool
	messages     []models.ChatTurn
	systemPrompt string
	offered      []models.ToolDefinition

	pending      *models.ToolCall
	toolResult   string
	reply        string
	modelVersion string
	toolCalls    []models.ToolCallSummary
}

// Chat runs one turn for the caller.
func (o *Orchestrator) Chat(ctx context.Context, caller models.ExecutionContext, req models.ChatRequest) (*models.ChatResponse, error) {
	if req.AgentName == "" {
		return nil, errs.New(errs.BadRequest, "agentName is required")
	}
	if req.Message == "" {
		return nil, errs.New(errs.BadRequest, "message is required")
	}

	ctx, span := tracer.Start(ctx, "orchestrator.Chat", trace.WithAttributes(
		attribute.String("agent.name", req.AgentName),
		attribute.String("tenant.id", caller.TenantID),
	))
	defer span.End()

	t := &turn{req: req, caller: caller}
	err := o.run(ctx, t)
	o.metrics.Turn(req.AgentName, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ev := log.Warn()
		if errs.KindOf(err) == errs.Internal {
			ev = log.Error()
		}
		ev.Err(err).
			Str("user_id", caller.UserID).
			Str("tenant_id", caller.TenantID).
			Str("agent", req.AgentName).
			Str("conversation_id", t.conversationID()).
			Str("kind", string(errs.KindOf(err))).
			Msg("Chat turn failed")
		return nil, err
	}

	log.Info().
		Str("event", "ai_chat").
		Str("user_id", caller.UserID).
		Str("tenant_id", caller.TenantID).
		Str("agent", t.agent.Name).
		Str("conversation_id", t.conv.ID).
		Bool("used_tool", len(t.toolCalls) > 0).
		Str("model_version", t.modelVersion).
		Msg("AI chat turn completed")

	return &models.ChatResponse{
		ConversationID: t.conv.ID,
		Reply:          t.reply,
		ToolCalls:      t.toolCalls,
	}, nil
}

func (o *Orchestrator) run(ctx context.Context, t *turn) error {
	if err := o.step(ctx, StateResolveAgent, t, o.resolveAgent); err != nil {
		return err
	}
	if err := o.step(ctx, StateLoadConversation, t, o.loadConversation); err != nil {
		return err
	}
	release, err := o.acquire(t.conv.ID)
	if err != nil {
		return err
	}
	defer release()

	steps := []struct {
		state State
		fn    func(context.Context, *turn) error
	}{
		{StateLoadHistory, o.loadHistory},
		{StateBuildContext, o.buildContext},
		{StateFirstModelCall, o.firstModelCall},
		{StateExecuteTool, o.executeTool},
		{StateSecondModelCall, o.secondModelCall},
		{StatePersist, o.persist},
	}
	for _, s := range steps {
		if err := o.step(ctx, s.state, t, s.fn); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) step(ctx context.Context, state State, t *turn, fn func(context.Context, *turn) error) error {
	ctx, span := tracer.Start(ctx, "orchestrator."+string(state))
	defer span.End()
	start := time.Now()
	err := fn(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	log.Debug().
		Str("state", string(state)).
		Str("conversation_id", t.conversationID()).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("Turn state")
	return err
}

// acquire rejects a second concurrent turn on the same conversation.
func (o *Orchestrator) acquire(id string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return nil, errs.New(errs.BadRequest, "conversation busy: another message is still being answered")
	}
	o.inFlight[id] = struct{}{}
	return func() {
		o.mu.Lock()
		delete(o.inFlight, id)
		o.mu.Unlock()
	}, nil
}

func (t *turn) conversationID() string {
	if t.conv != nil {
		return t.conv.ID
	}
	return t.req.ConversationID
}

// ── States ──────────────────────────────────────────────────

func (o *Orchestrator) resolveAgent(_ context.Context, t *turn) error {
	agent, ok := o.agents.Get(t.req.AgentName)
	if !ok {
		return errs.New(errs.UnknownAgent, "Unknown agent: %s", t.req.AgentName)
	}
	t.agent = agent
	return nil
}

// loadConversation fetches an owned conversation or prepares a new one.
// A new conversation is only written at PERSIST.
func (o *Orchestrator) loadConversation(ctx context.Context, t *turn) error {
	if t.req.ConversationID != "" {
		conv, err := o.store.GetConversation(ctx, t.req.ConversationID, t.caller.UserID)
		if err != nil {
			return store.AsDomainError(err)
		}
		t.conv = conv
		return nil
	}
	t.isNew = true
	t.conv = &models.Conversation{
		ID:     uuid.New().String(),
		UserID: t.caller.UserID,
		ContextSnapshot: models.ContextSnapshot{
			CourseID: t.req.CourseID,
			ModuleID: t.req.ModuleID,
			PageID:   t.req.PageID,
		},
	}
	return nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, t *turn) error {
	if !t.isNew {
		history, err := o.store.ListRecentMessages(ctx, t.conv.ID, o.historyWindow)
		if err != nil {
			return err
		}
		for _, m := range history {
			t.messages = append(t.messages, models.ChatTurn{Role: m.Sender.ChatRole(), Content: m.Content})
		}
	}
	t.messages = append(t.messages, models.ChatTurn{Role: models.ChatRoleUser, Content: t.req.Message})
	return nil
}

func (o *Orchestrator) buildContext(ctx context.Context, t *turn) error {
	res, err := o.context.Build(ctx, contextbuilder.Request{
		Agent:        t.agent,
		TenantID:     t.caller.TenantID,
		CourseID:     t.req.CourseID,
		PageID:       t.req.PageID,
		UserQuestion: t.req.Message,
	})
	if err != nil {
		return err
	}
	t.systemPrompt = res.SystemPrompt
	return nil
}

func (o *Orchestrator) firstModelCall(ctx context.Context, t *turn) error {
	t.offered = o.tools.DefinitionsFor(t.agent.Name)
	resp, err := o.model.CallChatModel(ctx, &models.CompletionRequest{
		SystemPrompt: t.systemPrompt,
		Messages:     t.messages,
		Tools:        t.offered,
		ModelHint:    t.agent.DefaultModel,
	})
	if err != nil {
		return err
	}
	t.reply = resp.Content
	t.modelVersion = resp.ModelVersion
	if len(resp.ToolCalls) > 0 {
		// Only the first call runs; the rest are dropped.
		first := resp.ToolCalls[0]
		t.pending = &first
		if len(resp.ToolCalls) > 1 {
			log.Debug().
				Str("conversation_id", t.conv.ID).
				Int("ignored", len(resp.ToolCalls)-1).
				Msg("Ignoring extra tool calls")
		}
	}
	return nil
}

func (o *Orchestrator) executeTool(ctx context.Context, t *turn) error {
	if t.pending == nil {
		return nil
	}
	call := *t.pending

	result, err := o.runTool(ctx, t, call)
	if err != nil {
		t.pending = nil
		t.reply = apology(err)
		return nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		t.pending = nil
		t.reply = apology(errs.Wrap(errs.InvalidToolOutput, err, "tool result could not be encoded"))
		return nil
	}
	t.toolResult = string(encoded)
	t.toolCalls = append(t.toolCalls, models.ToolCallSummary{
		Name:      call.Name,
		Arguments: call.Arguments,
		Result:    result,
	})
	return nil
}

// runTool refuses calls to tools the agent was not offered.
func (o *Orchestrator) runTool(ctx context.Context, t *turn, call models.ToolCall) (any, error) {
	offered := false
	for _, d := range t.offered {
		if d.Name == call.Name {
			offered = true
			break
		}
	}
	if !offered {
		return nil, errs.New(errs.UnknownTool, "Unknown tool: %s", call.Name)
	}
	return o.tools.Execute(ctx, call.Name, call.Arguments, t.caller)
}

func (o *Orchestrator) secondModelCall(ctx context.Context, t *turn) error {
	if t.pending == nil || t.toolResult == "" {
		return nil
	}
	messages := append(t.messages[:len(t.messages):len(t.messages)],
		models.ChatTurn{Role: models.ChatRoleAssistant, Content: fmt.Sprintf("[Tool call: %s]", t.pending.Name)},
		models.ChatTurn{Role: models.ChatRoleUser, Content: "Tool result: " + t.toolResult},
	)
	resp, err := o.model.CallChatModel(ctx, &models.CompletionRequest{
		SystemPrompt: t.systemPrompt,
		Messages:     messages,
		ModelHint:    t.agent.DefaultModel,
	})
	if err != nil {
		// The tool ran; keep its summary and answer with an apology.
		t.reply = apology(err)
		return nil
	}
	t.reply = resp.Content
	t.modelVersion = resp.ModelVersion
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) error {
	// A cancelled turn writes nothing, not even a new conversation.
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.BadRequest, err, "request cancelled")
	}
	if t.isNew {
		rec, err := o.store.EnsureAgent(ctx, t.agent)
		if err != nil {
			return err
		}
		t.conv.AgentID = rec.ID
		// Only a version the provider reported is recorded.
		t.conv.ModelVersion = t.modelVersion
		if err := o.store.CreateConversation(ctx, t.conv); err != nil {
			return err
		}
	}

	user := &models.Message{ConversationID: t.conv.ID, Sender: models.SenderUser, Content: t.req.Message}
	agent := &models.Message{ConversationID: t.conv.ID, Sender: models.SenderAgent, Content: t.reply}
	if err := o.store.AppendTurn(ctx, user, agent); err != nil {
		return errs.Wrap(errs.Internal, err, "failed to save conversation")
	}

	if !t.isNew && t.modelVersion != "" {
		if err := o.store.UpdateConversationModel(ctx, t.conv.ID, t.modelVersion); err != nil {
			// The messages are saved; this partial write is reported, not retried.
			log.Error().
				Err(err).
				Str("user_id", t.caller.UserID).
				Str("tenant_id", t.caller.TenantID).
				Str("agent", t.agent.Name).
				Str("conversation_id", t.conv.ID).
				Msg("Turn persisted without model version")
			return errs.Wrap(errs.Internal, err, "failed to save conversation")
		}
	}
	return nil
}

func apology(err error) string {
	return "I encountered an error while using a tool: " + errs.PublicMessage(err)
}
