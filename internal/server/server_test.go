package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/history"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/builtin/promptengineering"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/plugintest"
)

func newTestServer(t *testing.T, opts Options) (*Server, *plugintest.Env) {
	t.Helper()
	env := plugintest.Load(t, plugintest.Options{
		Generator: &plugintest.Generator{Reply: "function add(a, b) { return a + b }"},
	}, promptengineering.New)
	opts.Registry = env.Registry
	opts.Logger = slog.New(slog.DiscardHandler)
	srv, err := New(opts)
	require.NoError(t, err)
	return srv, env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, plugintest.HostVersion, health.Version)
	assert.Equal(t, 1, health.PluginsReady)
	assert.Equal(t, 2, health.Commands)
}

func TestListPluginsAndCommands(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv.Handler(), http.MethodGet, "/plugins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	plugins := decode[[]map[string]any](t, rec)
	require.Len(t, plugins, 1)
	assert.Equal(t, "Ready", plugins[0]["state"])

	rec = do(t, srv.Handler(), http.MethodGet, "/plugins/"+promptengineering.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv.Handler(), http.MethodGet, "/plugins/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/commands?pretty=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	commands := decode[[]plugin.CommandInfo](t, rec)
	require.Len(t, commands, 2)
	assert.Equal(t, "build-program", commands[0].Name)
	assert.Equal(t, "generate-code", commands[1].Name)
}

func TestDispatchStatusFollowsResultKind(t *testing.T) {
	srv, env := newTestServer(t, Options{})

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		success bool
		kind    ferrors.ErrorKind
	}{
		{"success", "/commands/generate-code", `{"prompt":"add numbers","language":"go"}`, http.StatusOK, true, ""},
		{"alias", "/commands/gen", `{"prompt":"add numbers"}`, http.StatusOK, true, ""},
		{"missing required", "/commands/generate-code", `{}`, http.StatusBadRequest, false, ferrors.KindMissingRequiredOption},
		{"empty body", "/commands/generate-code", "", http.StatusBadRequest, false, ferrors.KindMissingRequiredOption},
		{"bad choice", "/commands/generate-code", `{"prompt":"x","format":"xml"}`, http.StatusBadRequest, false, ferrors.KindInvalidOptionChoice},
		{"unknown", "/commands/nope", `{}`, http.StatusNotFound, false, ferrors.KindUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			res := decode[plugin.Result](t, rec)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.kind, res.Kind)
		})
	}
	assert.Equal(t, "go", env.Generator.Calls()[0].Language)
}

func TestDispatchRejectsNonObjectBody(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv.Handler(), http.MethodPost, "/commands/generate-code", `["x"]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ferrors.HTTPErrorResponse](t, rec)
	assert.Equal(t, string(ferrors.KindInvalidOptionType), body.Kind)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for _, cmd := range []string{"generate-code", "build-program", "generate-code"} {
		require.NoError(t, store.Append(context.Background(), history.Entry{Command: cmd, Success: true}))
	}

	srv, _ = newTestServer(t, Options{History: store})
	rec = do(t, srv.Handler(), http.MethodGet, "/history?command=generate-code&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "generate-code", entries[0].Command)

	rec = do(t, srv.Handler(), http.MethodGet, "/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/metrics", "").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	srv, _ = newTestServer(t, Options{Metrics: metrics})
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, Options{
		Addr:      "127.0.0.1:0",
		Schedules: []config.Schedule{{Name: "tick", Command: "unknown-cmd", Every: "1h"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Equal(t, ferrors.KindInternal, ferrors.KindOf(err))
}
