package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/szaher/tutoragent/internal/llm"
	"github.com/szaher/tutoragent/internal/telemetry"
)

const (
	defaultSystemPrompt = "You are a patient physics tutor. Explain your reasoning step by step and keep answers short."
	defaultMaxTokens    = 1024
)

// Model answers questions with a chat model while keeping the reference
// output shape.
type Model struct {
	client    llm.Client
	model     string
	system    string
	maxTokens   int
	temperature *float64
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithTemperature sets the sampling temperature. nil leaves the provider
// default.
func WithTemperature(t *float64) ModelOption {
	return func(m *Model) { m.temperature = t }
}

// NewModel creates a model-backed agent. Empty system and non-positive
// maxTokens fall back to defaults.
func NewModel(client llm.Client, model, system string, maxTokens int, opts ...ModelOption) *Model {
	if system == "" {
		system = defaultSystemPrompt
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	m := &Model{client: client, model: model, system: system, maxTokens: maxTokens}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Invoke implements Agent.
func (m *Model) Invoke(ctx context.Context, userID string, input, context map[string]any) (map[string]any, error) {
	prompt, err := buildPrompt(Question(input), context)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartChildSpan(ctx, "llm.chat", map[string]string{"model": m.model})
	resp, err := m.client.Chat(ctx, llm.ChatRequest{
		Model:       m.model,
		System:      m.system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	if err != nil {
		span.End(telemetry.SpanError)
		return nil, fmt.Errorf("model agent: %w", err)
	}
	for k, v := range telemetry.LLMCallTags(m.model, resp.Usage.InputTokens, resp.Usage.OutputTokens) {
		span.SetTag(k, v)
	}
	span.End(telemetry.SpanOK)

	return map[string]any{
		"message":    greeting(userID),
		"answer":     resp.Content,
		"next_steps": ReferenceSteps(),
		"model":       m.model,
		"stop_reason": string(resp.StopReason),
		"usage": map[string]any{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"total_tokens":  resp.Usage.Total(),
		},
	}, nil
}

func buildPrompt(question string, context map[string]any) (string, error) {
	if len(context) == 0 {
		return question, nil
	}
	data, err := json.Marshal(context)
	if err != nil {
		return "", Errorf(http.StatusUnprocessableEntity, "context is not serializable: %v", err)
	}
	return fmt.Sprintf("Context: %s\n\nQuestion: %s", data, question), nil
}
