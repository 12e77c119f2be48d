package pool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

const dialTimeout = 10 * time.Second

// WebSocketDialer is the pool.Dialer implementation that gives the
// Connection Pool its actual liveness connection to a STREAM agent's
// upstream (spec.md §4.4). It owns one websocket.Conn per agent id and
// watches it on a background goroutine, reporting unexpected drops
// back to the owning Pool so the state machine can reconnect.
//
// This connection carries no invocation traffic of its own — per
// spec.md §4.4, per-invocation sessions are always dialed fresh by
// the Stream Adapter. This dialer exists purely so the pool has
// something real to connect/disconnect for fast failure detection.
type WebSocketDialer struct {
	pool  *Pool
	descs map[string]gateway.AgentDescriptor

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebSocketDialer builds a dialer over the given STREAM agent
// descriptors, keyed by agent id. SetPool must be called before the
// first Dial so background read failures can report back.
func NewWebSocketDialer(descriptors map[string]gateway.AgentDescriptor) *WebSocketDialer {
	return &WebSocketDialer{descs: descriptors, conns: make(map[string]*websocket.Conn)}
}

// SetPool wires the dialer to the pool it serves; ReportDisconnect
// calls on background read failures are routed to it.
func (d *WebSocketDialer) SetPool(p *Pool) { d.pool = p }

// Dial opens the liveness connection for agentID.
func (d *WebSocketDialer) Dial(agentID string) error {
	desc, ok := d.descs[agentID]
	if !ok {
		return fmt.Errorf("pool dialer: unknown agent %q", agentID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, livenessURL(desc), nil)
	if err != nil {
		return fmt.Errorf("pool dialer: dial %q: %w", agentID, err)
	}

	d.mu.Lock()
	d.conns[agentID] = conn
	d.mu.Unlock()

	go d.watch(agentID, conn)
	return nil
}

// watch blocks on reads from the liveness connection purely to detect
// when it drops; any payload received is discarded, since this
// connection carries no invocation traffic.
func (d *WebSocketDialer) watch(agentID string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			d.mu.Lock()
			current := d.conns[agentID]
			if current == conn {
				delete(d.conns, agentID)
			}
			d.mu.Unlock()
			if current == conn && d.pool != nil {
				d.pool.ReportDisconnect(agentID, err)
			}
			return
		}
	}
}

// Close tears down the liveness connection for agentID, if any.
func (d *WebSocketDialer) Close(agentID string) error {
	d.mu.Lock()
	conn, ok := d.conns[agentID]
	delete(d.conns, agentID)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// livenessURL mirrors upstream.StreamAdapter's own dial-URL
// construction (http(s) -> ws(s), trailing slash stripped, token
// appended) since both dial the same upstream endpoint shape.
func livenessURL(desc gateway.AgentDescriptor) string {
	base := strings.TrimSuffix(desc.EndpointBaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return base + "/" + desc.EndpointToken
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + desc.EndpointToken
	return u.String()
}

var _ Dialer = (*WebSocketDialer)(nil)
