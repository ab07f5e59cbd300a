// Package agent defines the pluggable unit of business logic behind
// POST /invoke and its built-in implementations.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/szaher/tutoragent/internal/config"
	"github.com/szaher/tutoragent/internal/llm"
)

// Agent turns a user's input and context into an output document.
// Implementations are expected to be synchronous; nothing bounds how long
// Invoke may run.
type Agent interface {
	Invoke(ctx context.Context, userID string, input, context map[string]any) (map[string]any, error)
}

// Func adapts an ordinary function to the Agent interface.
type Func func(ctx context.Context, userID string, input, context map[string]any) (map[string]any, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, userID string, input, context map[string]any) (map[string]any, error) {
	return f(ctx, userID, input, context)
}

// Error is a client-facing agent failure. The HTTP layer reports it with
// its own status and detail rather than as an internal error.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent error (%d): %s", e.Status, e.Detail)
}

// Errorf builds a client-facing error with a formatted detail.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Detail: fmt.Sprintf(format, args...)}
}

// New builds the agent selected by cfg.Kind.
func New(cfg config.AgentConfig, logger *zap.Logger) (Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Kind {
	case config.AgentTutor, "":
		logger.Info("agent selected", zap.String("kind", config.AgentTutor))
		return Tutor{}, nil

	case config.AgentModel:
		client, model := llm.NewClientForModel(cfg.Model, llm.Credentials{
			APIKey:          cfg.APIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			OpenAIBaseURL:   cfg.OpenAIBaseURL,
			OllamaHost:      cfg.OllamaHost,
		})
		logger.Info("agent selected", zap.String("kind", cfg.Kind), zap.String("model", model))
		return NewModel(client, model, cfg.System, cfg.MaxTokens, WithTemperature(cfg.Temperature)), nil

	case config.AgentRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("remote agent: url is required")
		}
		logger.Info("agent selected", zap.String("kind", cfg.Kind), zap.String("url", cfg.RemoteURL))
		return NewRemote(cfg.RemoteURL, nil), nil

	default:
		return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
	}
}
