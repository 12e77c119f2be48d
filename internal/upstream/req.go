// Package upstream implements the two backend-adapter strategies
// (spec.md §4.2 Req Adapter, §4.3 Stream Adapter) that translate a
// single conversational turn into upstream-specific wire calls and
// back into a normalized sequence of gateway.RawOutput.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

const reqTimeout = 8 * time.Second

// ReqAdapter performs one-shot HTTP request/response turns against a
// synchronous backend (spec.md §4.2).
type ReqAdapter struct {
	descriptor gateway.AgentDescriptor
	client     *http.Client
}

func NewReqAdapter(descriptor gateway.AgentDescriptor) *ReqAdapter {
	return &ReqAdapter{
		descriptor: descriptor,
		client:     &http.Client{Timeout: reqTimeout},
	}
}

type reqRequestBody struct {
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

type reqResponseBody struct {
	OutputStack []reqOutputEntry `json:"outputStack"`
}

type reqOutputEntry struct {
	Text json.RawMessage `json:"text"`
	Data json.RawMessage `json:"data"`
}

// Send implements the Req Adapter contract: one POST, 8s timeout,
// filtered and envelope-unwrapped response.
func (a *ReqAdapter) Send(ctx context.Context, userID, sessionID, text string, data map[string]any) ([]gateway.RawOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, reqTimeout)
	defer cancel()

	body, err := json.Marshal(reqRequestBody{
		UserID:    userID,
		SessionID: sessionID,
		Text:      text,
		Data:      data,
	})
	if err != nil {
		return nil, newError(KindHTTP, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.requestURL(), bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTimeout, err)
		}
		return nil, newError(KindNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := newError(KindHTTP, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, truncate(raw, 500)))
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	var decoded reqResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, newError(KindHTTP, fmt.Errorf("decode response: %w", err))
	}

	return a.expand(decoded.OutputStack), nil
}

// requestURL strips a single trailing slash from the configured base
// URL, then appends "/<token>".
func (a *ReqAdapter) requestURL() string {
	base := strings.TrimSuffix(a.descriptor.EndpointBaseURL, "/")
	return base + "/" + a.descriptor.EndpointToken
}

func (a *ReqAdapter) expand(entries []reqOutputEntry) []gateway.RawOutput {
	var outs []gateway.RawOutput
	for _, entry := range entries {
		text := decodeTextField(entry.Text)
		data := decodeDataFieldRaw(entry.Data)

		if isInternalMetadata(derefOrEmpty(text), data) {
			continue
		}
		outs = append(outs, unwrapEnvelope(text, data)...)
	}
	return outs
}

func decodeTextField(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func decodeDataFieldRaw(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return decodeDataField(asString)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil
	}
	return asMap
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
