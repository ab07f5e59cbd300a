// Package config builds the immutable service configuration from defaults,
// an optional YAML file and environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/szaher/tutoragent/internal/secrets"
)

// Agent kinds understood by agent.New.
const (
	AgentTutor  = "tutor"
	AgentModel  = "model"
	AgentRemote = "remote"
)

// Config is the complete service configuration. It is built once at process
// start and passed by value to every component that needs it.
type Config struct {
	Name        string          `yaml:"name"`
	Version     string          `yaml:"version"`
	Addr        string          `yaml:"addr"`
	FrontendDir string          `yaml:"frontend_dir"`
	CORSOrigins Origins         `yaml:"cors_origins"`
	LogLevel    string          `yaml:"log_level"`
	Metrics     bool            `yaml:"metrics"`
	Tracing     bool            `yaml:"tracing"`
	Manifest    ManifestConfig  `yaml:"manifest"`
	Readiness   ReadinessConfig `yaml:"readiness"`
	Agent       AgentConfig     `yaml:"agent"`
}

// ManifestConfig locates the manifest echoed by GET /manifest.
type ManifestConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// ReadinessConfig holds the soft dependencies reported by GET /readyz.
type ReadinessConfig struct {
	RequireCredential bool          `yaml:"require_credential"`
	CredentialEnv     string        `yaml:"credential_env"`
	Checks            []CheckConfig `yaml:"checks"`

	// Credential is the value of CredentialEnv captured at load time.
	Credential string `yaml:"-"`
}

// CheckConfig is an expression-based readiness check.
type CheckConfig struct {
	Name    string `yaml:"name"`
	Expr    string `yaml:"expr"`
	Problem string `yaml:"problem"`
}

// AgentConfig selects and configures the agent behind POST /invoke.
type AgentConfig struct {
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	System    string `yaml:"system"`
	MaxTokens int    `yaml:"max_tokens"`
	RemoteURL string `yaml:"remote_url"`

	// Temperature is sent to the model when set.
	Temperature *float64 `yaml:"temperature"`

	// APIKey may be a literal or an env() reference; it overrides the
	// provider-specific key below once resolved.
	APIKey string `yaml:"api_key"`

	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	OpenAIBaseURL   string `yaml:"-"`
	OllamaHost      string `yaml:"-"`
}

// Origins is the CORS allow-list. In YAML it may be a comma-separated
// string or a sequence.
type Origins []string

// UnmarshalYAML accepts both a scalar and a sequence.
func (o *Origins) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*o = ParseOrigins(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*o = ParseOrigins(strings.Join(list, ","))
		return nil
	default:
		return fmt.Errorf("cors_origins: unsupported YAML node kind %d", node.Kind)
	}
}

// Wildcard reports whether every origin is allowed.
func (o Origins) Wildcard() bool {
	return len(o) == 1 && o[0] == "*"
}

// ParseOrigins splits a comma-separated origin list. "*" yields the wildcard.
func ParseOrigins(s string) Origins {
	if strings.TrimSpace(s) == "*" {
		return Origins{"*"}
	}
	var out Origins
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Name:        "TutorAgent",
		Version:     "v1.0.0",
		Addr:        ":8080",
		FrontendDir: "/srv/ui-dist",
		CORSOrigins: Origins{"*"},
		LogLevel:    "info",
		Metrics:     true,
		Manifest: ManifestConfig{
			Path: "/srv/agent.manifest.json",
		},
		Readiness: ReadinessConfig{
			CredentialEnv: "OPENAI_API_KEY",
		},
		Agent: AgentConfig{
			Kind:      AgentTutor,
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
	}
}

// FromEnv loads configuration from the process environment, reading the
// YAML file named by TUTORAGENT_CONFIG when set.
func FromEnv() (Config, error) {
	return Load(os.Getenv("TUTORAGENT_CONFIG"), os.LookupEnv)
}

// Load layers defaults, the YAML file at path (skipped when path is empty)
// and variables from lookup, then validates the result.
func Load(path string, lookup secrets.LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	applyEnv(&cfg, lookup)

	if err := resolveSecrets(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup secrets.LookupFunc) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = ParseFlag(v)
		}
	}

	str("APP_NAME", &cfg.Name)
	str("AGENT_VERSION", &cfg.Version)
	str("LISTEN_ADDR", &cfg.Addr)
	str("FRONTEND_DIR", &cfg.FrontendDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("MANIFEST_PATH", &cfg.Manifest.Path)
	flag("MANIFEST_WATCH", &cfg.Manifest.Watch)
	flag("METRICS_ENABLED", &cfg.Metrics)
	flag("TRACING_ENABLED", &cfg.Tracing)
	flag("REQUIRE_OPENAI", &cfg.Readiness.RequireCredential)
	str("CREDENTIAL_ENV", &cfg.Readiness.CredentialEnv)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = ParseOrigins(v)
	}

	str("AGENT_KIND", &cfg.Agent.Kind)
	str("AGENT_MODEL", &cfg.Agent.Model)
	str("AGENT_REMOTE_URL", &cfg.Agent.RemoteURL)
	str("AGENT_API_KEY", &cfg.Agent.APIKey)
	str("ANTHROPIC_API_KEY", &cfg.Agent.AnthropicAPIKey)
	str("OPENAI_API_KEY", &cfg.Agent.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.Agent.OpenAIBaseURL)
	str("OLLAMA_HOST", &cfg.Agent.OllamaHost)

	cfg.LogLevel = normalizeLevel(cfg.LogLevel)
	cfg.Agent.Kind = strings.ToLower(cfg.Agent.Kind)
}

// normalizeLevel lowercases a level name and maps the spellings other
// logging stacks use onto zap's.
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "warning":
		return "warn"
	case "critical", "fatal":
		return "error"
	default:
		return level
	}
}

func resolveSecrets(cfg *Config, lookup secrets.LookupFunc) error {
	resolver := secrets.NewEnvResolver(lookup)
	ctx := context.Background()

	// An unset credential is a readiness problem, not a load failure.
	if name := cfg.Readiness.CredentialEnv; name != "" {
		if v, err := resolver.Resolve(ctx, secrets.EnvRef(name)); err == nil {
			cfg.Readiness.Credential = v
		}
	}

	if secrets.IsRef(cfg.Agent.APIKey) {
		v, err := resolver.Resolve(ctx, cfg.Agent.APIKey)
		if err != nil {
			return fmt.Errorf("agent.api_key: %w", err)
		}
		cfg.Agent.APIKey = v
	}
	return nil
}

// ParseFlag reports whether v is one of "1", "true" or "yes", ignoring case.
func ParseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// Validate checks the invariants the rest of the service relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if c.Version == "" {
		errs = append(errs, errors.New("version must not be empty"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch c.Agent.Kind {
	case AgentTutor:
	case AgentModel:
		if c.Agent.Model == "" {
			errs = append(errs, errors.New("agent.model is required for the model agent"))
		}
	case AgentRemote:
		if c.Agent.RemoteURL == "" {
			errs = append(errs, errors.New("agent.remote_url is required for the remote agent"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown agent kind %q", c.Agent.Kind))
	}
	if t := c.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("agent.temperature must be between 0 and 2, got %v", *t))
	}
	for i, chk := range c.Readiness.Checks {
		if chk.Name == "" || chk.Expr == "" {
			errs = append(errs, fmt.Errorf("readiness.checks[%d]: name and expr are required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Secrets returns the resolved secret values that must never reach logs.
func (c Config) Secrets() []string {
	var out []string
	for _, v := range []string{
		c.Readiness.Credential,
		c.Agent.APIKey,
		c.Agent.AnthropicAPIKey,
		c.Agent.OpenAIAPIKey,
	} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
