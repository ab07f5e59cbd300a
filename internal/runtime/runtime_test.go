package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/szaher/tutoragent/internal/config"
	"github.com/szaher/tutoragent/internal/telemetry"
	"github.com/szaher/tutoragent/internal/testutil"
)

func TestNew_ConfigErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.Kind = "oracle"
	_, err := New(cfg, Options{})
	assert.ErrorContains(t, err, "create agent")

	cfg = testConfig(t)
	cfg.Readiness.Checks = []config.CheckConfig{{Name: "broken", Expr: "(("}}
	_, err = New(cfg, Options{})
	assert.ErrorContains(t, err, "create readiness checks")
}

func TestNew_TracingLogsSpans(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracing = true
	core, logs := observer.New(zapcore.DebugLevel)

	rt, err := New(cfg, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	rec := testutil.Do(t, rt.Handler(), http.MethodPost, "/invoke", `{"user_id":"u"}`, telemetry.RequestIDHeader, "rt-1")
	require.Equal(t, http.StatusOK, rec.Code)

	spans := logs.FilterMessage("span").All()
	require.Len(t, spans, 1)
	assert.Equal(t, "rt-1", spans[0].ContextMap()["trace_id"])
	assert.Equal(t, "agent.invoke", spans[0].ContextMap()["operation"])

	cfg.Tracing = false
	core, logs = observer.New(zapcore.DebugLevel)
	rt, err = New(cfg, Options{Logger: zap.New(core)})
	require.NoError(t, err)
	testutil.Do(t, rt.Handler(), http.MethodPost, "/invoke", `{"user_id":"u"}`)
	assert.Empty(t, logs.FilterMessage("span").All())
}

func TestRuntime_StartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Addr = "127.0.0.1:0"
	cfg.Manifest.Watch = true
	require.NoError(t, os.WriteFile(cfg.Manifest.Path, []byte(`{"v":1}`), 0o644))

	rt, err := New(cfg, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	require.Eventually(t, func() bool { return rt.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + rt.Addr().String()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, "ok", body["status"])

	// Cached manifest is refreshed by the watcher.
	require.Eventually(t, rt.manifest.Watching, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(cfg.Manifest.Path, []byte(`{"v":2}`), 0o644))
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/manifest")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var doc map[string]any
		return json.NewDecoder(resp.Body).Decode(&doc) == nil && doc["v"] == 2.0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRuntime_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Addr = "256.0.0.1:bad"
	rt, err := New(cfg, Options{})
	require.NoError(t, err)
	assert.ErrorContains(t, rt.Start(context.Background()), "listen")
}
