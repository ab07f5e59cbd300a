package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1/"
	defaultOllamaHost    = "http://localhost:11434"
)

// OpenAIClient implements Client using the chat completions API. It works
// with OpenAI, Ollama and any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client  openai.Client
	baseURL string
}

// NewOpenAIClient creates a client for the OpenAI API, or for a compatible
// endpoint when baseURL is set.
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/") + "/"

	clientOpts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIClient{
		client:  openai.NewClient(clientOpts...),
		baseURL: baseURL,
	}
}

// NewOllamaClient creates a client for a local Ollama instance.
func NewOllamaClient(host string, opts ...option.RequestOption) *OpenAIClient {
	if host == "" {
		host = defaultOllamaHost
	}
	return NewOpenAIClient("ollama", strings.TrimRight(host, "/")+"/v1", opts...)
}

// Chat sends a non-streaming chat request.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat: response has no choices")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:    choice.Message.Content,
		StopReason: mapOAIStopReason(string(choice.FinishReason)),
		Usage: TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func mapOAIStopReason(reason string) StopReason {
	switch reason {
	case "stop":
		return StopEndTurn
	case "length":
		return StopMaxTokens
	case "tool_calls", "function_call":
		return StopToolUse
	default:
		return StopReason(reason)
	}
}
