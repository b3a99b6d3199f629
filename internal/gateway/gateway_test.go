package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/gateway"
	"github.com/agentoven/studyhall/internal/metrics"
	"github.com/agentoven/studyhall/pkg/models"
)

// scriptedDriver is a test ProviderDriver.
type scriptedDriver struct {
	configured bool
	calls      int
	last       *models.ProviderRequest
	call       func(ctx context.Context, req *models.ProviderRequest) (*models.CompletionResponse, error)
}

func (d *scriptedDriver) Kind() string         { return "scripted" }
func (d *scriptedDriver) Configured() bool     { return d.configured }
func (d *scriptedDriver) DefaultModel() string { return "scripted-default" }
func (d *scriptedDriver) Serves(model string) bool {
	return strings.HasPrefix(model, "gpt-")
}
func (d *scriptedDriver) Call(ctx context.Context, req *models.ProviderRequest) (*models.CompletionResponse, error) {
	d.calls++
	d.last = req
	return d.call(ctx, req)
}

func searchTool() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "search_course_content",
		Description: "Searches pages in the current course by query and returns snippets.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"courseId": map[string]any{"type": "string"},
				"query":    map[string]any{"type": "string"},
			},
			"required": []any{"courseId", "query"},
		},
	}
}

func TestNotConfiguredFailsBeforeNetwork(t *testing.T) {
	d := &scriptedDriver{}
	g := gateway.New(d, gateway.Settings{}, nil)

	_, err := g.CallChatModel(context.Background(), &models.CompletionRequest{SystemPrompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotConfigured))
	assert.Equal(t, errs.ModelUnavailable, errs.KindOf(err))
	assert.Equal(t, 0, d.calls)
}

func TestModelResolutionAndDefaults(t *testing.T) {
	d := &scriptedDriver{configured: true, call: func(context.Context, *models.ProviderRequest) (*models.CompletionResponse, error) {
		return &models.CompletionResponse{Content: "hello"}, nil
	}}

	g := gateway.New(d, gateway.Settings{}, metrics.New())
	resp, err := g.CallChatModel(context.Background(), &models.CompletionRequest{ModelHint: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", d.last.Model)
	assert.Empty(t, resp.ModelVersion, "an unreported version is never filled in")
	assert.Equal(t, gateway.DefaultMaxTokens, d.last.MaxTokens)

	_, err = g.CallChatModel(context.Background(), &models.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "scripted-default", d.last.Model)

	_, err = g.CallChatModel(context.Background(), &models.CompletionRequest{ModelHint: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	assert.Equal(t, "scripted-default", d.last.Model, "a hint the driver does not serve is replaced")

	pinned := gateway.New(d, gateway.Settings{Model: "gpt-4o-mini"}, nil)
	_, err = pinned.CallChatModel(context.Background(), &models.CompletionRequest{ModelHint: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", d.last.Model)
}

func TestTemperatureIsPassedThrough(t *testing.T) {
	d := &scriptedDriver{configured: true, call: func(context.Context, *models.ProviderRequest) (*models.CompletionResponse, error) {
		return &models.CompletionResponse{Content: "ok", ModelVersion: "gpt-4o"}, nil
	}}

	_, err := gateway.New(d, gateway.Settings{Temperature: 0}, nil).CallChatModel(context.Background(), &models.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.last.Temperature)

	_, err = gateway.New(d, gateway.Settings{Temperature: 0.3}, nil).CallChatModel(context.Background(), &models.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, d.last.Temperature)
}

func TestTimeoutIsModelUnavailable(t *testing.T) {
	d := &scriptedDriver{configured: true, call: func(ctx context.Context, _ *models.ProviderRequest) (*models.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := gateway.New(d, gateway.Settings{Timeout: 20 * time.Millisecond}, nil)

	_, err := g.CallChatModel(context.Background(), &models.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, errs.ModelUnavailable, errs.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTransportErrorIsModelUnavailable(t *testing.T) {
	d := &scriptedDriver{configured: true, call: func(context.Context, *models.ProviderRequest) (*models.CompletionResponse, error) {
		return nil, errors.New("connection refused")
	}}
	_, err := gateway.New(d, gateway.Settings{}, nil).CallChatModel(context.Background(), &models.CompletionRequest{})
	assert.Equal(t, errs.ModelUnavailable, errs.KindOf(err))
	assert.Equal(t, "AI model request failed", errs.PublicMessage(err))
}

// ── OpenAI driver ───────────────────────────────────────────

func openAIServer(t *testing.T, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIDriverToolCall(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1,
		"model": "gpt-4-turbo-2024-04-09",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant", "content": null,
			"tool_calls": [{"id": "call_1", "type": "function", "function": {
				"name": "search_course_content",
				"arguments": "{\"courseId\":\"C1\",\"query\":\"regression\"}"}}]}}],
		"usage": {"prompt_tokens": 40, "completion_tokens": 12, "total_tokens": 52}
	}`, &seen)

	g := gateway.New(gateway.NewOpenAIDriver("sk-test", srv.URL, 0), gateway.Settings{}, nil)
	resp, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
		SystemPrompt: "You are helpful.",
		Messages:     []models.ChatTurn{{Role: models.ChatRoleUser, Content: "find regression"}},
		Tools:        []models.ToolDefinition{searchTool()},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo-2024-04-09", resp.ModelVersion)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_course_content", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"courseId": "C1", "query": "regression"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, int64(40), resp.Usage.InputTokens)

	assert.Equal(t, "auto", seen["tool_choice"])
	assert.Len(t, seen["tools"], 1)
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIDriverOmitsToolsWhenEmpty(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, `{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4-turbo",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Here you go."}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, &seen)

	g := gateway.New(gateway.NewOpenAIDriver("sk-test", srv.URL, 0), gateway.Settings{}, nil)
	resp, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
		Messages: []models.ChatTurn{{Role: models.ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Here you go.", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.NotContains(t, seen, "tools")
	assert.NotContains(t, seen, "tool_choice")
}

func TestOpenAIDriverMalformedArguments(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, `{
		"id": "chatcmpl-3", "object": "chat.completion", "created": 1, "model": "gpt-4-turbo",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant", "content": null,
			"tool_calls": [{"id": "call_1", "type": "function", "function": {
				"name": "summarize_module", "arguments": "{moduleId: M1"}}]}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, &seen)

	g := gateway.New(gateway.NewOpenAIDriver("sk-test", srv.URL, 0), gateway.Settings{}, nil)
	_, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
		Messages: []models.ChatTurn{{Role: models.ChatRoleUser, Content: "summarize"}},
	})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArguments, errs.KindOf(err))
}

func TestOpenAIDriverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	g := gateway.New(gateway.NewOpenAIDriver("sk-test", srv.URL, 0), gateway.Settings{}, nil)
	_, err := g.CallChatModel(context.Background(), &models.CompletionRequest{})
	assert.Equal(t, errs.ModelUnavailable, errs.KindOf(err))
}

// ── Anthropic driver ────────────────────────────────────────

func TestAnthropicDriverToolUse(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "toolu_1", "name": "search_course_content",
				 "input": {"courseId": "C1", "query": "regression"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 30, "output_tokens": 9}
		}`)
	}))
	t.Cleanup(srv.Close)

	g := gateway.New(gateway.NewAnthropicDriver("key", srv.URL, 0), gateway.Settings{Model: "claude-3-5-sonnet-20241022"}, nil)
	resp, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
		SystemPrompt: "You are helpful.",
		Messages:     []models.ChatTurn{{Role: models.ChatRoleUser, Content: "find regression"}},
		Tools:        []models.ToolDefinition{searchTool()},
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", resp.Content)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.ModelVersion)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "C1", resp.ToolCalls[0].Arguments["courseId"])
	assert.Equal(t, int64(9), resp.Usage.OutputTokens)

	require.NotNil(t, seen["system"])
	tools := seen["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "search_course_content", tool["name"])
	assert.Equal(t, []any{"courseId", "query"}, tool["input_schema"].(map[string]any)["required"])
}

func TestAnthropicDriverUsesClaudeDefault(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		sent = append(sent, body.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant",
			"model": "`+body.Model+`",
			"content": [{"type": "text", "text": "hi"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 1}
		}`)
	}))
	t.Cleanup(srv.Close)

	g := gateway.New(gateway.NewAnthropicDriver("key", srv.URL, 0), gateway.Settings{}, nil)
	assert.Equal(t, gateway.DefaultAnthropicModel, g.DefaultModel())

	// The catalog's OpenAI default and an empty hint both resolve to Claude.
	for _, hint := range []string{"gpt-4-turbo", ""} {
		resp, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
			ModelHint: hint,
			Messages:  []models.ChatTurn{{Role: models.ChatRoleUser, Content: "hello"}},
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.DefaultAnthropicModel, resp.ModelVersion)
	}

	_, err := g.CallChatModel(context.Background(), &models.CompletionRequest{
		ModelHint: "claude-3-5-haiku-latest",
		Messages:  []models.ChatTurn{{Role: models.ChatRoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{gateway.DefaultAnthropicModel, gateway.DefaultAnthropicModel, "claude-3-5-haiku-latest"}, sent)
}

func TestOpenAIDriverServes(t *testing.T) {
	d := gateway.NewOpenAIDriver("", "", 0)
	assert.True(t, d.Serves("gpt-4-turbo"))
	assert.True(t, d.Serves("llama3.1:8b"))
	assert.False(t, d.Serves("claude-sonnet-4-20250514"))
	assert.Equal(t, gateway.DefaultOpenAIModel, d.DefaultModel())
}
