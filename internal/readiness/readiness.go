// Package readiness evaluates the soft dependencies reported by GET /readyz.
// A failing check never changes the HTTP status; it only adds a problem line.
package readiness

import (
	"context"
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/szaher/tutoragent/internal/config"
)

// Check inspects one dependency. An empty result means it is satisfied.
type Check interface {
	Name() string
	Check(ctx context.Context) string
}

// CredentialCheck requires a provider credential captured at config load.
type CredentialCheck struct {
	Env     string
	Present bool
}

// Name implements Check.
func (c CredentialCheck) Name() string { return "credential" }

// Check implements Check.
func (c CredentialCheck) Check(context.Context) string {
	if c.Present {
		return ""
	}
	return c.Env + " missing"
}

// ExprCheck is a boolean expression evaluated on every readiness request.
type ExprCheck struct {
	name    string
	problem string
	source  string
	program *vm.Program
	env     map[string]any
}

// Env is the data an expression check can read.
type Env struct {
	Name              string
	Version           string
	CredentialPresent bool
	ManifestPath      string
	FrontendDir       string
}

func (e Env) vars() map[string]any {
	return map[string]any{
		"name":               e.Name,
		"version":            e.Version,
		"credential_present": e.CredentialPresent,
		"manifest_path":      e.ManifestPath,
		"frontend_dir":       e.FrontendDir,
		"exists":             exists,
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewExprCheck compiles source against env. The expression must yield a bool.
func NewExprCheck(name, source, problem string, env Env) (*ExprCheck, error) {
	if source == "" {
		return nil, fmt.Errorf("readiness check %q: empty expression", name)
	}
	vars := env.vars()
	program, err := expr.Compile(source, expr.Env(vars), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("readiness check %q: %w", name, err)
	}
	if problem == "" {
		problem = name + " failed"
	}
	return &ExprCheck{name: name, problem: problem, source: source, program: program, env: vars}, nil
}

// Name implements Check.
func (c *ExprCheck) Name() string { return c.name }

// Check implements Check.
func (c *ExprCheck) Check(context.Context) string {
	out, err := expr.Run(c.program, c.env)
	if err != nil {
		return fmt.Sprintf("%s: %v", c.name, err)
	}
	if ok, _ := out.(bool); ok {
		return ""
	}
	return c.problem
}

// Checker runs a fixed list of checks.
type Checker struct {
	checks []Check
}

// New creates a checker over checks.
func New(checks ...Check) *Checker {
	return &Checker{checks: checks}
}

// FromConfig builds the checks named in cfg. Expressions are compiled here so
// a broken check fails at startup rather than on the first readiness request.
func FromConfig(cfg config.Config) (*Checker, error) {
	var checks []Check
	present := cfg.Readiness.Credential != ""
	if cfg.Readiness.RequireCredential {
		checks = append(checks, CredentialCheck{Env: cfg.Readiness.CredentialEnv, Present: present})
	}

	env := Env{
		Name:              cfg.Name,
		Version:           cfg.Version,
		CredentialPresent: present,
		ManifestPath:      cfg.Manifest.Path,
		FrontendDir:       cfg.FrontendDir,
	}
	for _, cc := range cfg.Readiness.Checks {
		c, err := NewExprCheck(cc.Name, cc.Expr, cc.Problem, env)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return New(checks...), nil
}

// Problems returns one line per failing check, in check order. The result
// is never nil so it encodes as [] rather than null.
func (c *Checker) Problems(ctx context.Context) []string {
	problems := []string{}
	if c == nil {
		return problems
	}
	for _, chk := range c.checks {
		if p := chk.Check(ctx); p != "" {
			problems = append(problems, p)
		}
	}
	return problems
}
