package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/registry"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/store"
)

// stubExecutor satisfies a2asrv.AgentExecutor; its methods are never
// exercised by these tests, which only check routing and the
// gateway's own handlers (internal/executor's tests drive Execute and
// Cancel directly).
type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	return nil
}

func (stubExecutor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	return nil
}

func testDescriptor(id string) gateway.AgentDescriptor {
	return gateway.AgentDescriptor{
		ID:              id,
		Name:            "Agent " + id,
		Description:     "desc",
		Version:         "1.0.0",
		Transport:       gateway.TransportREQ,
		EndpointBaseURL: "https://upstream.example/flow",
		EndpointToken:   "tok",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := registry.New([]gateway.AgentDescriptor{testDescriptor("alpha")}, "https://gateway.example")
	require.NoError(t, err)

	runtimes := map[string]AgentRuntime{
		"alpha": {Executor: stubExecutor{}, TaskStore: store.NewMemoryStore()},
	}
	srv, err := New(reg, runtimes, nil)
	require.NoError(t, err)
	return srv
}

func TestNewRequiresRuntimeForEveryAgent(t *testing.T) {
	reg, err := registry.New([]gateway.AgentDescriptor{testDescriptor("alpha")}, "https://gateway.example")
	require.NoError(t, err)

	_, err = New(reg, map[string]AgentRuntime{}, nil)
	assert.Error(t, err)
}

func TestHandleListCardsReturnsAllAgents(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/agents", "/.well-known/agents.json"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var cards []registry.DiscoveryCard
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
		require.Len(t, cards, 1)
		assert.Equal(t, "0.3.0", cards[0].ProtocolVersion)
	}
}

func TestHandleHealthReportsAgentCount(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["agents"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHandleAgentCardKnownAndUnknown(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents/alpha/.well-known/agent-card.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var card registry.DiscoveryCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "Agent alpha", card.Name)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents/missing/.well-known/agent-card.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAgentRPCUnknownAgentIs404(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents/missing/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAgentRPCKnownAgentIsRouted(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agents/alpha/", nil)
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	// Routed means the a2a-go JSON-RPC handler answered (a JSON-RPC
	// parse error on the empty body), never the gateway's own
	// "unknown agent" 404.
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestWellKnownAgentCardPathReturnsGuidanceNotAnAgent(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["guidance"], "/.well-known/agents.json")
}

func TestCORSPreflightReturnsNoContent(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/agents", nil)
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeaderIsStamped(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
