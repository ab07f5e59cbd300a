package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseModelString Tests (table-driven) ---

func TestParseModelString(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		creds        Credentials
		wantProvider Provider
		wantModel    string
	}{
		{name: "anthropic prefix", input: "anthropic/claude-3", wantProvider: ProviderAnthropic, wantModel: "claude-3"},
		{name: "openai prefix", input: "openai/gpt-4", wantProvider: ProviderOpenAI, wantModel: "gpt-4"},
		{name: "ollama prefix", input: "ollama/llama2", wantProvider: ProviderOllama, wantModel: "llama2"},
		{name: "claude inferred", input: "claude-sonnet-4-20250514", wantProvider: ProviderAnthropic, wantModel: "claude-sonnet-4-20250514"},
		{name: "gpt inferred", input: "gpt-4o", wantProvider: ProviderOpenAI, wantModel: "gpt-4o"},
		{name: "o3 inferred", input: "o3-mini", wantProvider: ProviderOpenAI, wantModel: "o3-mini"},
		{name: "case-insensitive prefix", input: "Anthropic/claude-3.5", wantProvider: ProviderAnthropic, wantModel: "claude-3.5"},
		{name: "unknown defaults to anthropic", input: "llama3.2", wantProvider: ProviderAnthropic, wantModel: "llama3.2"},
		{name: "unknown with ollama host", input: "llama3.2", creds: Credentials{OllamaHost: "http://h:1"}, wantProvider: ProviderOllama, wantModel: "llama3.2"},
		{name: "unknown with openai key", input: "mistral", creds: Credentials{OpenAIAPIKey: "k"}, wantProvider: ProviderOpenAI, wantModel: "mistral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotProvider, gotModel := ParseModelString(tt.input, tt.creds)
			assert.Equal(t, tt.wantProvider, gotProvider)
			assert.Equal(t, tt.wantModel, gotModel)
		})
	}
}

func TestNewClientForModel(t *testing.T) {
	client, model := NewClientForModel("ollama/llama3.2", Credentials{OllamaHost: "http://myhost:1234/"})
	require.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "http://myhost:1234/v1/", client.(*OpenAIClient).baseURL)
	assert.Equal(t, "llama3.2", model)

	client, _ = NewClientForModel("gpt-4o", Credentials{OpenAIBaseURL: "http://proxy/api"})
	require.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "http://proxy/api/", client.(*OpenAIClient).baseURL)

	client, _ = NewClientForModel("claude-3", Credentials{AnthropicAPIKey: "k"})
	assert.IsType(t, &AnthropicClient{}, client)
}

// --- MockClient Tests ---

func TestMockClientSequence(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Content: "first", StopReason: StopEndTurn},
		MockResponse{Content: "second", StopReason: StopEndTurn},
	)
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		resp, err := mock.Chat(ctx, ChatRequest{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
	assert.Len(t, mock.Calls(), 3)

	mock.Reset()
	assert.Empty(t, mock.Calls())
	resp, err := mock.Chat(ctx, ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)
}

func TestMockClientErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewMockClient(MockResponse{Error: boom}).Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, boom)

	_, err = NewMockClient().Chat(context.Background(), ChatRequest{})
	assert.Error(t, err)
}

func TestTokenUsageTotal(t *testing.T) {
	assert.Equal(t, 7, TokenUsage{InputTokens: 3, OutputTokens: 4}.Total())
}

// --- OpenAIClient Tests ---

func TestOpenAIClientChat(t *testing.T) {
	var req map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from OpenAI!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
		}`)
	}))
	defer server.Close()

	temp := 0.2
	client := NewOpenAIClient("test-key", server.URL+"/v1")
	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:       "gpt-4",
		System:      "You are a tutor.",
		Messages:    []Message{{Role: RoleUser, Content: "Hi"}},
		MaxTokens:   100,
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI!", resp.Content)
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 20}, resp.Usage)

	assert.Equal(t, "gpt-4", req["model"])
	assert.Equal(t, 0.2, req["temperature"])
	msgs, _ := req["messages"].([]any)
	require.Len(t, msgs, 2)
	first, _ := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
}

func TestOpenAIClientChatHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "bad model", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("k", server.URL, openaiopt.WithMaxRetries(0))
	_, err := client.Chat(context.Background(), ChatRequest{Model: "nope", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "openai chat")
}

func TestOpenAIClientChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`)
	}))
	defer server.Close()

	_, err := NewOpenAIClient("k", server.URL).Chat(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorContains(t, err, "no choices")
}

func TestMapOAIStopReason(t *testing.T) {
	tests := map[string]StopReason{
		"stop":       StopEndTurn,
		"length":     StopMaxTokens,
		"tool_calls": StopToolUse,
		"other":      StopReason("other"),
	}
	for in, want := range tests {
		assert.Equal(t, want, mapOAIStopReason(in), in)
	}
}

// --- AnthropicClient Tests ---

func TestAnthropicClientChat(t *testing.T) {
	var req map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "max_tokens", "stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`)
	}))
	defer server.Close()

	client := NewAnthropicClient("ant-key", anthropicopt.WithBaseURL(server.URL))
	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:     "claude-3",
		System:    "tutor",
		Messages:  []Message{{Role: RoleUser, Content: "Hi"}, {Role: RoleAssistant, Content: "Hey"}, {Role: RoleUser, Content: "F=ma?"}},
		MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, StopMaxTokens, resp.StopReason)
	assert.Equal(t, 7, resp.Usage.Total())

	assert.Equal(t, float64(64), req["max_tokens"])
	assert.Contains(t, req, "system")
	assert.NotContains(t, req, "temperature")
}
