package registry

import (
	"fmt"
	"strings"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

// DiscoveryCard is the serializable record surfaced at an agent's
// .well-known/agent-card.json endpoint, matching spec.md §6's
// bit-level discovery-card shape exactly.
type DiscoveryCard struct {
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	ProtocolVersion    string               `json:"protocolVersion"`
	Version            string               `json:"version"`
	URL                string               `json:"url"`
	Capabilities       DiscoveryCapabilities `json:"capabilities"`
	DefaultInputModes  []string             `json:"defaultInputModes"`
	DefaultOutputModes []string             `json:"defaultOutputModes"`
	Skills             []gateway.Skill      `json:"skills"`
}

// DiscoveryCapabilities is the discovery card's capabilities block
// (spec.md §6): pushNotifications and stateTransitionHistory are
// always false — this gateway does not implement either.
type DiscoveryCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

const protocolVersion = "0.3.0"

var defaultModes = []string{"text"}

// AgentRegistry holds the resolved, immutable-after-startup set of
// agents this gateway exposes (spec.md §4.7).
type AgentRegistry struct {
	descriptors *collection[gateway.AgentDescriptor]
	cards       *collection[DiscoveryCard]
}

// New builds the registry from config-load's resolved descriptor
// list, rejecting construction outright if any id repeats.
func New(descriptors []gateway.AgentDescriptor, baseURL string) (*AgentRegistry, error) {
	reg := &AgentRegistry{
		descriptors: newCollection[gateway.AgentDescriptor](),
		cards:       newCollection[DiscoveryCard](),
	}

	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if err := reg.descriptors.register(d.ID, d); err != nil {
			return nil, fmt.Errorf("agent registry: %w", err)
		}
		card := buildCard(d, baseURL)
		if err := reg.cards.register(d.ID, card); err != nil {
			return nil, fmt.Errorf("agent registry: %w", err)
		}
	}

	return reg, nil
}

func buildCard(d gateway.AgentDescriptor, baseURL string) DiscoveryCard {
	return DiscoveryCard{
		Name:            d.Name,
		Description:     d.Description,
		ProtocolVersion: protocolVersion,
		Version:         d.Version,
		URL:             strings.TrimSuffix(baseURL, "/") + "/agents/" + d.ID + "/",
		Capabilities: DiscoveryCapabilities{
			Streaming: d.Transport == gateway.TransportSTREAM,
		},
		DefaultInputModes:  defaultModes,
		DefaultOutputModes: defaultModes,
		Skills:             append([]gateway.Skill(nil), d.Skills...),
	}
}

// Get returns the descriptor for id and whether it was found.
func (r *AgentRegistry) Get(id string) (gateway.AgentDescriptor, bool) {
	return r.descriptors.get(id)
}

// Card returns the precomputed discovery card for id.
func (r *AgentRegistry) Card(id string) (DiscoveryCard, bool) {
	return r.cards.get(id)
}

// Has reports whether id is a known agent.
func (r *AgentRegistry) Has(id string) bool {
	_, ok := r.descriptors.get(id)
	return ok
}

// List returns every registered descriptor, in no particular order.
func (r *AgentRegistry) List() []gateway.AgentDescriptor {
	return r.descriptors.list()
}

// Cards returns every precomputed discovery card, in no particular order.
func (r *AgentRegistry) Cards() []DiscoveryCard {
	return r.cards.list()
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	return r.descriptors.count()
}
