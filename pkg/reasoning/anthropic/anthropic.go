// Package anthropic adapts the Anthropic Messages API to the reasoning
// provider contract, including function/tool calling.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/loomworks/loom/pkg/reasoning"
)

// Options configure the Anthropic provider adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind reasoning.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// NewProvider creates a provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewProviderFromClient creates a provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{client: client, opts: opts}
}

// Complete implements reasoning.Provider for the non-streaming path.
func (p *Provider) Complete(ctx context.Context, system string, messages []reasoning.Message, tools []reasoning.ToolDefinition) (*reasoning.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    buildMessages(messages),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	result := &reasoning.Response{
		Usage: &reasoning.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()

			args := json.RawMessage("{}")
			if toolBlock.Input != nil {
				if encoded, err := json.Marshal(toolBlock.Input); err == nil {
					args = encoded
				}
			}

			result.ToolCalls = append(result.ToolCalls, reasoning.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	return result, nil
}

// Info implements reasoning.Provider.
func (p *Provider) Info() reasoning.Info {
	return reasoning.Info{Model: string(p.opts.Model), Provider: "anthropic"}
}

// buildMessages converts normalized messages to the Anthropic message format,
// embedding tool results as tool_result blocks on user turns.
func buildMessages(messages []reasoning.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			var content []anthropic.ContentBlockParamUnion

			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}

			for _, call := range msg.ToolCalls {
				var input any

				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						input = string(call.Arguments)
					}
				}

				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}

			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case "tool":
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	return out
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []reasoning.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}

			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}

	return out
}
