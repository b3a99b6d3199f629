// Package gateway implements the Model Gateway: the single path from the
// agent plane to the external chat-completion service.
//
// A Gateway owns one ProviderDriver (OpenAI or Anthropic), applies the
// operator's model settings, bounds every call with a timeout and maps
// transport failures onto the errs taxonomy. It keeps no per-call state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/metrics"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// Defaults applied when Settings leaves a field zero. Temperature has no
// default here: zero is a valid operator choice.
const (
	DefaultMaxTokens = 2000
	DefaultTimeout   = 60 * time.Second
)

var tracer = otel.Tracer("studyhall/gateway")

// Settings are the operator-controlled knobs for every call.
type Settings struct {
	// Model pins the model for all agents. Empty defers to the agent's
	// default model when the driver serves it, then the driver's default.
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Gateway implements contracts.ChatModel on top of a ProviderDriver.
type Gateway struct {
	driver   contracts.ProviderDriver
	settings Settings
	metrics  *metrics.Metrics
}

// New creates a gateway. m may be nil.
func New(driver contracts.ProviderDriver, s Settings, m *metrics.Metrics) *Gateway {
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return &Gateway{driver: driver, settings: s, metrics: m}
}

// Provider returns the driver kind.
func (g *Gateway) Provider() string { return g.driver.Kind() }

// Configured reports whether the driver has a credential.
func (g *Gateway) Configured() bool { return g.driver.Configured() }

// CallChatModel sends one completion request. Tools are offered only when
// req.Tools is non-empty. A missing credential fails before any network I/O.
func (g *Gateway) CallChatModel(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	if req == nil {
		return nil, errs.New(errs.Internal, "nil completion request")
	}
	if !g.driver.Configured() {
		return nil, errs.NotConfigured(g.driver.Kind())
	}

	model := g.resolveModel(req.ModelHint)

	ctx, span := tracer.Start(ctx, "gateway.CallChatModel")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.driver.Kind()),
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.tools", len(req.Tools)),
	)

	callCtx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.driver.Call(callCtx, &models.ProviderRequest{
		CompletionRequest: *req,
		Model:             model,
		Temperature:       g.settings.Temperature,
		MaxTokens:         g.settings.MaxTokens,
	})
	elapsed := time.Since(start)

	if err != nil {
		err = classify(callCtx, err)
		g.metrics.ModelCall(g.driver.Kind(), elapsed, 0, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Err(err).
			Str("provider", g.driver.Kind()).
			Str("model", model).
			Dur("elapsed", elapsed).
			Msg("Model call failed")
		return nil, err
	}

	if resp.ModelVersion == "" {
		log.Warn().
			Str("provider", g.driver.Kind()).
			Str("model", model).
			Msg("Provider response carried no model version")
	}
	g.metrics.ModelCall(g.driver.Kind(), elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	span.SetAttributes(
		attribute.String("llm.model_version", resp.ModelVersion),
		attribute.Int("llm.tool_calls", len(resp.ToolCalls)),
		attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
	)
	log.Debug().
		Str("provider", g.driver.Kind()).
		Str("model", resp.ModelVersion).
		Int("tool_calls", len(resp.ToolCalls)).
		Dur("elapsed", elapsed).
		Msg("Model call completed")
	return resp, nil
}

// DefaultModel returns the model used when neither the operator nor the
// agent names one the driver serves.
func (g *Gateway) DefaultModel() string { return g.driver.DefaultModel() }

func (g *Gateway) resolveModel(hint string) string {
	switch {
	case g.settings.Model != "":
		return g.settings.Model
	case hint != "" && g.driver.Serves(hint):
		return hint
	case hint != "":
		log.Debug().
			Str("provider", g.driver.Kind()).
			Str("hint", hint).
			Msg("Agent model not served by provider, using provider default")
	}
	return g.driver.DefaultModel()
}

// classify maps a driver failure onto the errs taxonomy. Already
// classified errors (malformed tool arguments) pass through.
func classify(ctx context.Context, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.Wrap(errs.ModelUnavailable, context.DeadlineExceeded, "AI model timed out")
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ModelUnavailable, err, "AI model request cancelled")
	}
	return errs.Wrap(errs.ModelUnavailable, err, "AI model request failed")
}

// ── Driver helpers ──────────────────────────────────────────

// parseArguments decodes a tool call's argument payload. Anything that is
// not a JSON object is a hard failure, never an empty argument set.
func parseArguments(tool string, raw []byte) (map[string]any, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errs.New(errs.InvalidArguments, "model returned empty arguments for tool %s", tool)
	}
	args, err := decodeObject(raw)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArguments, err, fmt.Sprintf("model returned malformed arguments for tool %s", tool))
	}
	return args, nil
}
