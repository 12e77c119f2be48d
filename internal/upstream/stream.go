package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

const streamTimeout = 60 * time.Second

// OutputCallback is invoked synchronously for every raw output as it
// arrives, before the session settles (spec.md §4.3).
type OutputCallback func(out gateway.RawOutput, index int)

// StreamAdapter holds a persistent per-invocation WebSocket session
// open for the duration of a single Send call (spec.md §4.3). Unlike
// the Req Adapter it is not reused across calls — a fresh session is
// dialed per turn, bound to the caller's userId/sessionId.
type StreamAdapter struct {
	descriptor gateway.AgentDescriptor
	logger     *slog.Logger
}

func NewStreamAdapter(descriptor gateway.AgentDescriptor, logger *slog.Logger) *StreamAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamAdapter{descriptor: descriptor, logger: logger}
}

type streamEnvelope struct {
	Event string          `json:"event"`
	Text  json.RawMessage `json:"text,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type streamOutboundMessage struct {
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

// Send dials a dedicated session, sends the turn, and blocks until the
// session settles: a finalPing succeeds, a disconnect/error/timeout
// fails. Settlement is idempotent and the connection is always closed.
func (a *StreamAdapter) Send(ctx context.Context, userID, sessionID, text string, data map[string]any, onOutput OutputCallback) ([]gateway.RawOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.dialURL(), nil)
	if err != nil {
		return nil, newError(KindConnectFailed, err)
	}
	defer conn.Close()

	outbound := streamOutboundMessage{UserID: userID, SessionID: sessionID, Text: text, Data: data}
	if err := conn.WriteJSON(outbound); err != nil {
		return nil, newError(KindSocketError, err)
	}

	return a.pump(ctx, conn, onOutput)
}

func (a *StreamAdapter) pump(ctx context.Context, conn *websocket.Conn, onOutput OutputCallback) ([]gateway.RawOutput, error) {
	type result struct {
		outs []gateway.RawOutput
		err  error
	}

	resultCh := make(chan result, 1)
	var settled sync.Once
	settle := func(r result) {
		settled.Do(func() { resultCh <- r })
	}

	go func() {
		var buffered []gateway.RawOutput
		index := 0

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				settle(result{outs: buffered, err: newError(KindDisconnect, err)})
				return
			}

			var env streamEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				a.logger.Warn("stream adapter: malformed event, ignoring", "error", err)
				continue
			}

			switch env.Event {
			case "output":
				text := decodeTextField(env.Text)
				dataMap := decodeDataFieldRaw(env.Data)
				for _, out := range unwrapEnvelope(text, dataMap) {
					buffered = append(buffered, out)
					a.invokeCallback(onOutput, out, index)
					index++
				}

			case "finalPing":
				settle(result{outs: buffered})
				return

			case "disconnect":
				settle(result{outs: buffered, err: newError(KindDisconnect, fmt.Errorf("upstream disconnected"))})
				return

			case "error":
				settle(result{outs: buffered, err: newError(KindSocketError, fmt.Errorf("upstream error event: %s", env.Error))})
				return
			}
		}
	}()

	select {
	case r := <-resultCh:
		return r.outs, r.err
	case <-ctx.Done():
		settle(result{err: newError(KindSessionTimeout, ctx.Err())})
		r := <-resultCh
		return r.outs, r.err
	}
}

// invokeCallback runs the caller's callback, recovering a panic so a
// misbehaving consumer cannot abort the session (spec.md §4.3).
func (a *StreamAdapter) invokeCallback(onOutput OutputCallback, out gateway.RawOutput, index int) {
	if onOutput == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("stream adapter: onOutput callback panicked", "recovered", r, "index", index)
		}
	}()
	onOutput(out, index)
}

// dialURL converts the configured HTTP(S) endpoint base URL into a
// ws/wss URL, stripping any trailing slash and appending the token,
// mirroring the Req Adapter's URL construction rule (spec.md §4.2/§4.3).
func (a *StreamAdapter) dialURL() string {
	base := strings.TrimSuffix(a.descriptor.EndpointBaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return base + "/" + a.descriptor.EndpointToken
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + a.descriptor.EndpointToken
	return u.String()
}
