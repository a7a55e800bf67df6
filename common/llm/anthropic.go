package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(cfg Config) (Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Chat forces a single tool call carrying the response schema; the model's
// tool input is the structured result. Anthropic has no response_format
// equivalent, so this is the reliable way to get schema-shaped output.
func (c *anthropicClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type: "object",
	}
	if req.Schema != nil {
		inputSchema.Properties = schemaProperties(req.Schema)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(req.UserPrompt),
				},
			},
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        req.SchemaName,
					Description: anthropic.String("Record the structured response."),
					InputSchema: inputSchema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{
				Type: "tool",
				Name: req.SchemaName,
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	for _, block := range resp.Content {
		if block.Type == "tool_use" {
			if err := json.Unmarshal(block.Input, result); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			return &Response{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
			}, nil
		}
	}

	return nil, fmt.Errorf("no tool_use block in response")
}

func (c *anthropicClient) Model() string {
	return c.model
}

// schemaProperties extracts the properties object from a generated JSON
// schema, since the Anthropic tool schema wants them unwrapped.
func schemaProperties(schema any) any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	if props, ok := m["properties"]; ok {
		return props
	}
	return m
}
