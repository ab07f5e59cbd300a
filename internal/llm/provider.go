package llm

import (
	"strings"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

// Credentials carries provider endpoints and keys captured from
// configuration. APIKey, when set, overrides the provider-specific key.
type Credentials struct {
	APIKey          string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OllamaHost      string
}

// ParseModelString parses a model string into provider and model name.
//
// Supported formats:
//
//	"ollama/llama3.2"          → (ollama, "llama3.2")
//	"openai/gpt-4o"            → (openai, "gpt-4o")
//	"claude-sonnet-4-20250514" → (anthropic, "claude-sonnet-4-20250514")
//	"gpt-4o"                   → (openai, "gpt-4o")
//	"llama3.2"                 → (ollama, "llama3.2") if an Ollama host is configured
func ParseModelString(model string, creds Credentials) (Provider, string) {
	if i := strings.Index(model, "/"); i > 0 {
		prefix := strings.ToLower(model[:i])
		name := model[i+1:]
		switch prefix {
		case "ollama":
			return ProviderOllama, name
		case "openai":
			return ProviderOpenAI, name
		case "anthropic":
			return ProviderAnthropic, name
		}
	}

	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "claude") {
		return ProviderAnthropic, model
	}
	if strings.HasPrefix(lower, "gpt-") || strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4") {
		return ProviderOpenAI, model
	}

	if creds.OllamaHost != "" {
		return ProviderOllama, model
	}
	if creds.OpenAIAPIKey != "" || creds.OpenAIBaseURL != "" {
		return ProviderOpenAI, model
	}
	return ProviderAnthropic, model
}

// NewClientForModel creates the appropriate LLM client for the model string
// and returns it with the provider-less model name.
func NewClientForModel(model string, creds Credentials) (Client, string) {
	provider, modelName := ParseModelString(model, creds)

	switch provider {
	case ProviderOllama:
		return NewOllamaClient(creds.OllamaHost), modelName
	case ProviderOpenAI:
		return NewOpenAIClient(pick(creds.APIKey, creds.OpenAIAPIKey), creds.OpenAIBaseURL), modelName
	default:
		return NewAnthropicClient(pick(creds.APIKey, creds.AnthropicAPIKey)), modelName
	}
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
