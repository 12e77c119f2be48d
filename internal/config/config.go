// Package config loads the gateway's agent descriptors from a JSON
// document and resolves environment-variable placeholders, per
// spec.md §6.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

// SkillEntry is a discovery-card skill as it appears in the config file.
type SkillEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentEntry is one element of the config file's "agents" array,
// before its transport string is validated against gateway.Transport.
type AgentEntry struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Version         string       `json:"version"`
	Transport       string       `json:"transport"`
	EndpointBaseURL string       `json:"endpointBaseURL"`
	EndpointToken   string       `json:"endpointToken"`
	Skills          []SkillEntry `json:"skills,omitempty"`
}

// File is the top-level shape of the gateway's JSON config document.
type File struct {
	Agents []AgentEntry `json:"agents"`
}

// LoadEnvFile loads a local .env file if present, mirroring the
// teacher's own config/env.go#LoadEnvFiles. A missing file is not an
// error; a malformed one is.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads path, substitutes environment placeholders, and resolves
// the result into agent descriptors. Every failure here — unreadable
// file, invalid JSON, invalid descriptor, unresolved placeholder, zero
// agents — is a fatal configuration error per spec.md §6/§7.
func Load(path string) ([]gateway.AgentDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	expanded, err := expandEnvVarsInData(decoded)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	reencoded, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: re-encoding %s after substitution: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(reencoded, &file); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	return resolveDescriptors(file)
}

func resolveDescriptors(file File) ([]gateway.AgentDescriptor, error) {
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("config: no agents defined")
	}

	descriptors := make([]gateway.AgentDescriptor, 0, len(file.Agents))
	for i, entry := range file.Agents {
		d := gateway.AgentDescriptor{
			ID:              entry.ID,
			Name:            entry.Name,
			Description:     entry.Description,
			Version:         entry.Version,
			Transport:       gateway.Transport(entry.Transport),
			EndpointBaseURL: entry.EndpointBaseURL,
			EndpointToken:   entry.EndpointToken,
		}
		for _, s := range entry.Skills {
			d.Skills = append(d.Skills, gateway.Skill{
				ID: s.ID, Name: s.Name, Description: s.Description, Tags: s.Tags,
			})
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("config: agents[%d]: %w", i, err)
		}
		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}
