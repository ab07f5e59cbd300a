package readiness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szaher/tutoragent/internal/config"
)

func TestProblems_EmptyIsNotNil(t *testing.T) {
	var nilChecker *Checker
	assert.NotNil(t, nilChecker.Problems(context.Background()))
	assert.Equal(t, []string{}, New().Problems(context.Background()))
}

func TestFromConfig_Credential(t *testing.T) {
	tests := []struct {
		name       string
		require    bool
		credential string
		want       []string
	}{
		{name: "not required", require: false, want: []string{}},
		{name: "required and missing", require: true, want: []string{"OPENAI_API_KEY missing"}},
		{name: "required and present", require: true, credential: "sk", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Readiness.RequireCredential = tt.require
			cfg.Readiness.Credential = tt.credential

			c, err := FromConfig(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Problems(context.Background()))
		})
	}
}

func TestFromConfig_CustomCredentialEnv(t *testing.T) {
	cfg := config.Default()
	cfg.Readiness.RequireCredential = true
	cfg.Readiness.CredentialEnv = "ANTHROPIC_API_KEY"

	c, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ANTHROPIC_API_KEY missing"}, c.Problems(context.Background()))
}

func TestExprCheck(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "agent.manifest.json")

	cfg := config.Default()
	cfg.FrontendDir = dir
	cfg.Manifest.Path = manifest
	cfg.Readiness.Checks = []config.CheckConfig{
		{Name: "ui", Expr: "exists(frontend_dir)"},
		{Name: "manifest", Expr: "exists(manifest_path)", Problem: "manifest not deployed"},
		{Name: "version", Expr: `version startsWith "v"`},
	}

	c, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest not deployed"}, c.Problems(context.Background()))

	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))
	assert.Equal(t, []string{}, c.Problems(context.Background()))
}

func TestExprCheck_DefaultProblem(t *testing.T) {
	chk, err := NewExprCheck("creds", "credential_present", "", Env{})
	require.NoError(t, err)
	assert.Equal(t, "creds failed", chk.Check(context.Background()))
	assert.Equal(t, "creds", chk.Name())
}

func TestNewExprCheck_Errors(t *testing.T) {
	_, err := NewExprCheck("empty", "", "", Env{})
	assert.ErrorContains(t, err, "empty expression")

	_, err = NewExprCheck("notbool", `name + "x"`, "", Env{})
	assert.Error(t, err)

	_, err = NewExprCheck("unknown", "no_such_var == 1", "", Env{})
	assert.Error(t, err)
}

func TestFromConfig_BadExpr(t *testing.T) {
	cfg := config.Default()
	cfg.Readiness.Checks = []config.CheckConfig{{Name: "bad", Expr: "(("}}
	_, err := FromConfig(cfg)
	assert.ErrorContains(t, err, `readiness check "bad"`)
}
