// Package openai adapts the OpenAI Chat Completions API to the reasoning
// provider contract, including function/tool calling.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/loomworks/loom/pkg/reasoning"
)

// Options configure the OpenAI provider adapter. Fields mirror a minimal
// subset of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Provider wraps the OpenAI Chat Completions API behind reasoning.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// NewProvider creates a provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()

	return NewProviderFromClient(&client, optFns...)
}

// NewProviderFromClient creates a provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{client: client, opts: opts}
}

// Complete implements reasoning.Provider for the non-streaming path.
func (p *Provider) Complete(ctx context.Context, system string, messages []reasoning.Message, tools []reasoning.ToolDefinition) (*reasoning.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(system, messages),
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}

	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}

	choice := resp.Choices[0]

	result := &reasoning.Response{
		Text: choice.Message.Content,
		Usage: &reasoning.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	for _, call := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, reasoning.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return result, nil
}

// Info implements reasoning.Provider.
func (p *Provider) Info() reasoning.Info {
	return reasoning.Info{Model: p.opts.Model, Provider: "openai"}
}

// buildMessages converts normalized messages into OpenAI chat messages,
// attaching tool responses after the assistant turns that requested them.
func buildMessages(system string, messages []reasoning.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}

			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, call := range msg.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				}
			}

			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case "tool":
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}

	return out
}

// buildTools converts tool definitions to the OpenAI tool format.
func buildTools(tools []reasoning.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))

	for i, tool := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  tool.Parameters,
			},
		}
	}

	return out
}
