package executor

import (
	"context"
	"log/slog"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/upstream"
)

// reqSender adapts *upstream.ReqAdapter to the Sender interface; the
// callback is accepted for signature symmetry with the stream path
// but never invoked (Req Adapter has no streaming callback).
type reqSender struct {
	descriptor gateway.AgentDescriptor
	adapter    *upstream.ReqAdapter
}

// NewReqSender builds the Sender the executor uses for a REQ agent.
func NewReqSender(descriptor gateway.AgentDescriptor) Sender {
	return &reqSender{descriptor: descriptor, adapter: upstream.NewReqAdapter(descriptor)}
}

func (s *reqSender) Kind() gateway.Transport { return gateway.TransportREQ }

func (s *reqSender) Send(ctx context.Context, userID, sessionID, text string, data map[string]any, _ func(gateway.RawOutput, int)) ([]gateway.RawOutput, error) {
	return s.adapter.Send(ctx, userID, sessionID, text, data)
}

// streamSender adapts *upstream.StreamAdapter to the Sender interface.
type streamSender struct {
	descriptor gateway.AgentDescriptor
	adapter    *upstream.StreamAdapter
}

// NewStreamSender builds the Sender the executor uses for a STREAM agent.
func NewStreamSender(descriptor gateway.AgentDescriptor, logger *slog.Logger) Sender {
	return &streamSender{descriptor: descriptor, adapter: upstream.NewStreamAdapter(descriptor, logger)}
}

func (s *streamSender) Kind() gateway.Transport { return gateway.TransportSTREAM }

func (s *streamSender) Send(ctx context.Context, userID, sessionID, text string, data map[string]any, onOutput func(gateway.RawOutput, int)) ([]gateway.RawOutput, error) {
	return s.adapter.Send(ctx, userID, sessionID, text, data, onOutput)
}
