package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

func newTestDescriptor(baseURL string) gateway.AgentDescriptor {
	return gateway.AgentDescriptor{
		ID:              "demo",
		EndpointBaseURL: baseURL,
		EndpointToken:   "tok-123",
		Transport:       gateway.TransportREQ,
	}
}

func TestReqAdapterRequestURLStripsTrailingSlash(t *testing.T) {
	a := NewReqAdapter(newTestDescriptor("https://upstream.example/path/"))
	assert.Equal(t, "https://upstream.example/path/tok-123", a.requestURL())
}

func TestReqAdapterSendDropsInternalMetadataAndUnwraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body reqRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body.UserID)
		assert.Equal(t, "s1", body.SessionID)
		assert.Equal(t, "hi", body.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"outputStack": [
				{"text": "", "data": "{\"_cognigy\":{\"_messageId\":\"m1\"}}"},
				{"text": "Hello there"},
				{"text": "", "data": {"_cognigy": {"_default": {"_quickReplies": {"text": "Pick", "quickReplies": []}}}}}
			]
		}`))
	}))
	defer srv.Close()

	a := NewReqAdapter(newTestDescriptor(srv.URL))
	outs, err := a.Send(context.Background(), "u1", "s1", "hi", nil)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, "Hello there", outs[0].TextOrEmpty())
	assert.Nil(t, outs[1].Text)
	assert.Contains(t, outs[1].Data, "_quickReplies")
}

func TestReqAdapterSendHTTPErrorCarriesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	a := NewReqAdapter(newTestDescriptor(srv.URL))
	_, err := a.Send(context.Background(), "u1", "s1", "hi", nil)
	require.Error(t, err)

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindHTTP, adapterErr.Kind)
	assert.Equal(t, http.StatusForbidden, adapterErr.StatusCode)
}

func TestReqAdapterSendNetworkFailure(t *testing.T) {
	a := NewReqAdapter(newTestDescriptor("http://127.0.0.1:1"))
	_, err := a.Send(context.Background(), "u1", "s1", "hi", nil)
	require.Error(t, err)

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindNetwork, adapterErr.Kind)
}

func TestIsInternalMetadataOnlyWhenNoDefault(t *testing.T) {
	assert.True(t, isInternalMetadata("", map[string]any{"_cognigy": map[string]any{"_messageId": "x"}}))
	assert.False(t, isInternalMetadata("", map[string]any{"_cognigy": map[string]any{"_default": map[string]any{}}}))
	assert.False(t, isInternalMetadata("hi", map[string]any{"_cognigy": map[string]any{"_messageId": "x"}}))
}
