package pool

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestWSServer starts an httptest WebSocket server that either
// stays open until the test closes it, or drops the connection right
// after the upgrade completes (used to simulate an upstream disconnect).
func newTestWSServer(t *testing.T, dropImmediately bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		if dropImmediately {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func testDescriptor(baseURL string) gateway.AgentDescriptor {
	return gateway.AgentDescriptor{
		ID:              "agent-1",
		EndpointBaseURL: baseURL,
		EndpointToken:   "tok",
		Transport:       gateway.TransportSTREAM,
	}
}

func TestWebSocketDialerDialSucceedsAndClosesCleanly(t *testing.T) {
	srv := newTestWSServer(t, false)
	defer srv.Close()

	d := NewWebSocketDialer(map[string]gateway.AgentDescriptor{
		"agent-1": testDescriptor(wsURL(srv.URL)),
	})

	require.NoError(t, d.Dial("agent-1"))
	assert.NoError(t, d.Close("agent-1"))
}

func TestWebSocketDialerDialFailsOnUnknownAgent(t *testing.T) {
	d := NewWebSocketDialer(map[string]gateway.AgentDescriptor{})
	assert.Error(t, d.Dial("missing"))
}

func TestWebSocketDialerReportsDisconnectToPool(t *testing.T) {
	srv := newTestWSServer(t, true)
	defer srv.Close()

	d := NewWebSocketDialer(map[string]gateway.AgentDescriptor{
		"agent-1": testDescriptor(wsURL(srv.URL)),
	})
	p := New(d, nil)
	d.SetPool(p)

	require.NoError(t, p.GetOrCreate("agent-1"))

	// The fake server already closed its side of the connection right
	// after the upgrade, so watch()'s blocking read should surface that
	// as an error and flip the pool entry into RECONNECTING.
	require.Eventually(t, func() bool {
		return p.StateOf("agent-1") == StateReconnecting
	}, time.Second, 5*time.Millisecond)
}

func TestLivenessURLRewritesSchemeAndAppendsToken(t *testing.T) {
	desc := gateway.AgentDescriptor{EndpointBaseURL: "https://upstream.example/flow/", EndpointToken: "tok-123"}
	assert.Equal(t, "wss://upstream.example/flow/tok-123", livenessURL(desc))

	desc2 := gateway.AgentDescriptor{EndpointBaseURL: "http://upstream.example", EndpointToken: "tok-456"}
	assert.Equal(t, "ws://upstream.example/tok-456", livenessURL(desc2))
}
