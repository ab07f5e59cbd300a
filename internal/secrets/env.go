package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// LookupFunc reports the value of a named variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// EnvResolver resolves secret references of the form "env(VAR_NAME)"
// through a variable lookup.
type EnvResolver struct {
	lookup LookupFunc
}

// NewEnvResolver creates an environment variable secret resolver. A nil
// lookup reads the process environment.
func NewEnvResolver(lookup LookupFunc) *EnvResolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvResolver{lookup: lookup}
}

// IsRef reports whether s is an env() reference.
func IsRef(s string) bool {
	return strings.HasPrefix(s, "env(") && strings.HasSuffix(s, ")")
}

// Resolve looks up an env() reference and returns the value.
func (r *EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	if !IsRef(ref) {
		return "", fmt.Errorf("unsupported secret reference format: %q (expected env(VAR_NAME))", ref)
	}

	varName := ref[4 : len(ref)-1]
	value, ok := r.lookup(varName)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", varName)
	}

	return value, nil
}
