// Package secrets resolves secret references and keeps resolved values out of
// log output.
package secrets

import (
	"context"
)

// Resolver resolves secret references to their values.
type Resolver interface {
	// Resolve looks up a secret reference and returns its value.
	// The ref format depends on the implementation (e.g., "env(VAR_NAME)").
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvRef returns the env() reference for the named variable.
func EnvRef(name string) string {
	return "env(" + name + ")"
}
