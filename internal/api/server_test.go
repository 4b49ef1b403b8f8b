package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/query"
	"github.com/efebarandurmaz/impactgraph/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memorySource struct {
	store *graph.MemoryStore
	err   error
}

func (m *memorySource) Load(ctx context.Context) (*graph.MemoryStore, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.store, nil
}
func (m *memorySource) Ping(ctx context.Context) error  { return m.err }
func (m *memorySource) Close(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, src graph.Source, opts ...Option) http.Handler {
	t.Helper()
	svc := query.NewService(src, query.Options{
		MaxDepth: 10,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	cfg := DefaultConfig()
	cfg.ServiceName = ""
	return NewServer(cfg, svc, opts...).Handler()
}

func chainSource() *memorySource {
	return &memorySource{store: graph.NewMemoryStore([]string{"payments"}, []graph.Edge{
		{From: "auth", To: "checkout", Protocol: "HTTP"},
		{From: "checkout", To: "billing", Protocol: "GRPC"},
		{From: "billing", To: "ledger", Protocol: "KAFKA"},
	})}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(t, chainSource()), "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestSystems(t *testing.T) {
	w := get(t, newTestServer(t, chainSource()), "/api/graph/systems")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"systems":["auth","billing","checkout","ledger","payments"]}`, w.Body.String())
}

func TestFull(t *testing.T) {
	w := get(t, newTestServer(t, chainSource()), "/api/graph/full")
	require.Equal(t, http.StatusOK, w.Code)

	var g graph.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 4, "isolated systems are not part of the full graph")
	assert.Len(t, g.Edges, 3)
	assert.Equal(t, graph.Edge{From: "auth", To: "checkout", Protocol: "HTTP"}, g.Edges[0])
}

func TestAffected(t *testing.T) {
	h := newTestServer(t, chainSource())

	tests := []struct {
		path string
		want string
	}{
		{"/api/graph/affected/auth", `{"affected":["billing","checkout","ledger"]}`},
		{"/api/graph/affected/auth?depth=1", `{"affected":["checkout"]}`},
		{"/api/graph/affected/ledger", `{"affected":[]}`},
		{"/api/graph/affected/unknown", `{"affected":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestDownstream_JSON(t *testing.T) {
	w := get(t, newTestServer(t, chainSource()), "/api/graph/downstream/checkout?depth=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"nodes": [{"id":"billing"},{"id":"checkout"}],
		"edges": [{"from":"checkout","to":"billing","protocol":"GRPC"}]
	}`, w.Body.String())
}

func TestDownstream_Formats(t *testing.T) {
	h := newTestServer(t, chainSource())

	w := get(t, h, "/api/graph/downstream/checkout?format=dot")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "digraph impact {"))
	assert.Contains(t, w.Body.String(), `"checkout" -> "billing" [label="GRPC"];`)

	w = get(t, h, "/api/graph/downstream/checkout?format=mermaid")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph LR")
	assert.Contains(t, w.Body.String(), "class n1 failed")
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, chainSource())

	for _, path := range []string{
		"/api/graph/affected/auth?depth=abc",
		"/api/graph/affected/auth?depth=-1",
		"/api/graph/affected/auth?depth=11",
		"/api/graph/affected/%20",
		"/api/graph/downstream/auth?depth=2.5",
		"/api/graph/downstream/auth?format=svg",
		"/api/graph/full?format=png",
	} {
		t.Run(path, func(t *testing.T) {
			w := get(t, h, path)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestDataSourceUnavailable(t *testing.T) {
	h := newTestServer(t, &memorySource{err: errors.New("dial tcp 10.0.0.7:7687: connection refused")})

	for _, path := range []string{
		"/api/graph/systems",
		"/api/graph/full",
		"/api/graph/affected/auth",
		"/api/graph/downstream/auth",
	} {
		t.Run(path, func(t *testing.T) {
			w := get(t, h, path)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.JSONEq(t, `{"error":"data source unavailable"}`, w.Body.String())
		})
	}
}

type failingQuerier struct{ Querier }

func (failingQuerier) ListSystems(ctx context.Context) (*query.SystemsResult, error) {
	return nil, errors.New("boom")
}

func TestUnexpectedErrorIs500(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = ""
	h := NewServer(cfg, failingQuerier{}).Handler()

	w := get(t, h, "/api/graph/systems")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestMountedProbesAndMetrics(t *testing.T) {
	health := server.NewHealthServer(nil)
	health.SetReady(true)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "impact_queries_total 0\n")
	})
	h := newTestServer(t, chainSource(), WithHealth(health.Handler()), WithMetrics(metrics))

	for _, path := range []string{"/healthz", "/readyz", "/livez"} {
		assert.Equal(t, http.StatusOK, get(t, h, path).Code, path)
	}
	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "impact_queries_total")
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, chainSource())

	req := httptest.NewRequest(http.MethodGet, "/api/graph/systems", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_ExplicitOrigins(t *testing.T) {
	cfg := corsConfig([]string{"https://ops.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.AllowOrigins)

	assert.True(t, corsConfig(nil).AllowAllOrigins)
}
