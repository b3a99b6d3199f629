package tools

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/metrics"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

var tracer = otel.Tracer("studyhall/tools")

// Executor runs tool calls. It implements contracts.ToolExecutor.
type Executor struct {
	catalog *Catalog
	content store.ContentStore
	model   contracts.ChatModel
	metrics *metrics.Metrics
}

// NewExecutor creates an executor. model serves the tools that call the
// chat model themselves; m may be nil.
func NewExecutor(c *Catalog, content store.ContentStore, model contracts.ChatModel, m *metrics.Metrics) *Executor {
	return &Executor{catalog: c, content: content, model: model, metrics: m}
}

// DefinitionsFor returns the tools bound to an agent.
func (e *Executor) DefinitionsFor(agentName string) []models.ToolDefinition {
	return e.catalog.DefinitionsFor(agentName)
}

// Execute resolves, authorizes, validates and runs one tool call. The
// checks run in that order so an unauthorized caller never learns whether
// its arguments were valid.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, ec models.ExecutionContext) (any, error) {
	ctx, span := tracer.Start(ctx, "tools.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", name),
		attribute.String("tenant.id", ec.TenantID),
		attribute.String("user.role", string(ec.Role)),
	)

	start := time.Now()
	result, err := e.execute(ctx, name, args, ec)
	e.metrics.ToolExecution(name, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Err(err).
			Str("tool", name).
			Str("kind", string(errs.KindOf(err))).
			Str("user_id", ec.UserID).
			Str("tenant_id", ec.TenantID).
			Msg("Tool execution failed")
		return nil, err
	}
	log.Debug().
		Str("tool", name).
		Str("user_id", ec.UserID).
		Dur("elapsed", time.Since(start)).
		Msg("Tool executed")
	return result, nil
}

func (e *Executor) execute(ctx context.Context, name string, args map[string]any, ec models.ExecutionContext) (any, error) {
	def, ok := e.catalog.Get(name)
	if !ok {
		return nil, errs.New(errs.UnknownTool, "unknown tool: %s", name)
	}
	if !def.Permits(ec.Role) {
		return nil, errs.New(errs.Forbidden, "you do not have permission to use %s", def.DisplayName)
	}
	if args == nil {
		args = map[string]any{}
	}

	switch Name(name) {
	case SearchCourseContent:
		a, err := decodeArgs[SearchArgs](def.InputSchema, args)
		if err != nil {
			return nil, err
		}
		return e.searchCourseContent(ctx, a, ec)
	case GeneratePracticeQuestions:
		a, err := decodeArgs[PracticeQuestionsArgs](def.InputSchema, args)
		if err != nil {
			return nil, err
		}
		return e.generatePracticeQuestions(ctx, a, ec)
	case SummarizeModule:
		a, err := decodeArgs[SummarizeArgs](def.InputSchema, args)
		if err != nil {
			return nil, err
		}
		return e.summarizeModule(ctx, a, ec)
	default:
		// A catalog entry with no implementation.
		return nil, errs.New(errs.Internal, "tool %s is not implemented", name)
	}
}

// askModel issues the single chat call a model-backed tool is allowed.
// Gateway failures keep their kind so they stay distinct from
// InvalidToolOutput.
func (e *Executor) askModel(ctx context.Context, what, systemPrompt, content string) (string, error) {
	if e.model == nil {
		return "", errs.NotConfigured("tools")
	}
	resp, err := e.model.CallChatModel(ctx, &models.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []models.ChatTurn{{Role: models.ChatRoleUser, Content: content}},
	})
	if err != nil {
		return "", &errs.Error{
			Kind:    errs.KindOf(err),
			Message: "failed to " + what + ": " + errs.PublicMessage(err),
			Err:     err,
		}
	}
	return resp.Content, nil
}
