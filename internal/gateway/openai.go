package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agentoven/studyhall/pkg/models"
)

// DefaultOpenAIModel is the OpenAI model used when none is requested.
const DefaultOpenAIModel = "gpt-4-turbo"

// OpenAIDriver talks to the Chat Completions API.
type OpenAIDriver struct {
	client     *openai.Client
	configured bool
}

// NewOpenAIDriver builds a driver. An empty apiKey yields a driver that
// reports Configured() == false; baseURL may be empty.
func NewOpenAIDriver(apiKey, baseURL string, maxRetries int) *OpenAIDriver {
	opts := []option.RequestOption{option.WithMaxRetries(maxRetries)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIDriver{client: &client, configured: apiKey != ""}
}

func (d *OpenAIDriver) Kind() string     { return "openai" }
func (d *OpenAIDriver) Configured() bool { return d.configured }

func (d *OpenAIDriver) DefaultModel() string { return DefaultOpenAIModel }

// Serves accepts any id outside other vendors' families: compatible servers
// behind a custom base URL use their own model names.
func (d *OpenAIDriver) Serves(model string) bool {
	return !strings.HasPrefix(model, anthropicModelPrefix)
}

// Call sends one non-streaming completion.
func (d *OpenAIDriver) Call(ctx context.Context, req *models.ProviderRequest) (*models.CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    openAIMessages(req),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.InputSchema),
				},
			}
		}
		params.Tools = tools
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &models.CompletionResponse{
		Content:      msg.Content,
		ModelVersion: resp.Model,
		Usage: models.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		args, err := parseArguments(tc.Function.Name, []byte(tc.Function.Arguments))
		if err != nil {
			return nil, err
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func openAIMessages(req *models.ProviderRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.ChatRoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case models.ChatRoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}
