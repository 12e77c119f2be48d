// Package gateway holds the data-model types shared across the
// translation engine: the agent descriptor produced by config load,
// and the raw backend output record produced by the upstream adapters.
package gateway

import "fmt"

// Transport selects which upstream adapter strategy an agent uses.
type Transport string

const (
	// TransportREQ is a synchronous one-shot request/response backend.
	TransportREQ Transport = "REQ"
	// TransportSTREAM is a persistent bidirectional session backend.
	TransportSTREAM Transport = "STREAM"
)

// Skill describes one capability advertised in an agent's discovery card.
type Skill struct {
	ID          string
	Name        string
	Description string
	Tags        []string
}

// AgentDescriptor is the immutable-after-startup record the Agent
// Registry is built from. Every placeholder referenced by its string
// fields has already been resolved to a non-empty value by config load.
type AgentDescriptor struct {
	ID              string
	Name            string
	Description     string
	Version         string
	Transport       Transport
	EndpointBaseURL string
	EndpointToken   string
	Skills          []Skill
}

// Validate checks the invariants spec.md §3 places on a descriptor.
func (d AgentDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("agent descriptor: id is required")
	}
	if d.EndpointBaseURL == "" {
		return fmt.Errorf("agent descriptor %q: endpoint base URL is required", d.ID)
	}
	if d.EndpointToken == "" {
		return fmt.Errorf("agent descriptor %q: endpoint token is required", d.ID)
	}
	switch d.Transport {
	case TransportREQ, TransportSTREAM:
	default:
		return fmt.Errorf("agent descriptor %q: unknown transport %q", d.ID, d.Transport)
	}
	return nil
}

// RawOutput is one record emitted by the upstream backend as part of a
// single logical turn (spec.md §3, "Raw Backend Output").
type RawOutput struct {
	// Text is the plain-text portion of the output. Nil and empty are
	// both treated as "absent" by the normalizer.
	Text *string
	// Data is the structured payload, possibly wrapped in the
	// _cognigy._default envelope. Nil if the backend sent no data.
	Data map[string]any
}

// TextOrEmpty returns the output's text, or "" if absent.
func (r RawOutput) TextOrEmpty() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}
