package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/agentoven/studyhall/pkg/models"
)

// DefaultAnthropicModel is the Claude model used when none is requested.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

const anthropicModelPrefix = "claude-"

// AnthropicDriver talks to the Messages API.
type AnthropicDriver struct {
	client     *anthropic.Client
	configured bool
}

// NewAnthropicDriver builds a driver. An empty apiKey yields a driver that
// reports Configured() == false; baseURL may be empty.
func NewAnthropicDriver(apiKey, baseURL string, maxRetries int) *AnthropicDriver {
	opts := []option.RequestOption{option.WithMaxRetries(maxRetries)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicDriver{client: &client, configured: apiKey != ""}
}

func (d *AnthropicDriver) Kind() string     { return "anthropic" }
func (d *AnthropicDriver) Configured() bool { return d.configured }

func (d *AnthropicDriver) DefaultModel() string { return DefaultAnthropicModel }

func (d *AnthropicDriver) Serves(model string) bool {
	return strings.HasPrefix(model, anthropicModelPrefix)
}

// Call sends one non-streaming message request.
func (d *AnthropicDriver) Call(ctx context.Context, req *models.ProviderRequest) (*models.CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    anthropicMessages(req.Messages),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if system := systemText(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, len(req.Tools))
		for i, t := range req.Tools {
			props, required := schemaParts(t.InputSchema)
			tools[i] = anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
				Type:       constant.Object("object"),
				Properties: props,
				Required:   required,
			}, t.Name)
			tools[i].OfTool.Description = anthropic.String(t.Description)
		}
		params.Tools = tools
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &models.CompletionResponse{
		ModelVersion: string(resp.Model),
		Usage: models.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			raw, err := json.Marshal(tu.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic tool input: %w", err)
			}
			args, err := parseArguments(tu.Name, raw)
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	return out, nil
}

// systemText folds the system prompt and any system-role turns into the
// top-level system field; the Messages API has no system role.
func systemText(req *models.ProviderRequest) string {
	parts := []string{}
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == models.ChatRoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func anthropicMessages(turns []models.ChatTurn) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case models.ChatRoleSystem:
			continue
		case models.ChatRoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	return msgs
}
