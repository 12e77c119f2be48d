package upstream

import (
	"encoding/json"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

// unwrapEnvelope implements the shared envelope-unwrapping rule from
// spec.md §4.3.1. The upstream wraps structured UI outputs as
// data._cognigy._default.<type>; both adapters call this so the
// normalizer always sees the expected top-level key shape.
//
// A single raw entry may expand into zero, one, or several outputs.
func unwrapEnvelope(text *string, data map[string]any) []gateway.RawOutput {
	cognigy, _ := data["_cognigy"].(map[string]any)

	if cognigy != nil {
		if def, ok := cognigy["_default"].(map[string]any); ok {
			return unwrapDefaultKeys(def)
		}
	}

	if outs, ok := mediaEntriesAtRoot(data); ok {
		return outs
	}

	if text != nil && *text != "" {
		return []gateway.RawOutput{{Text: text}}
	}

	// _cognigy-only envelope with no _default: internal metadata: this
	// check must come after the non-empty-text check above, since a
	// non-empty raw text wins over the internal-metadata classification
	// (spec.md §4.3.1 orders text ahead of the no-_default collapse).
	if cognigy != nil && len(data) == 1 {
		return nil
	}

	if len(data) == 0 {
		return nil
	}

	return []gateway.RawOutput{{Text: nilIfEmpty(""), Data: data}}
}

var structuredDefaultKeys = []string{"_quickReplies", "_gallery", "_buttons", "_list", "_adaptiveCard"}
var rootMediaKeys = []string{"_image", "_audio", "_video"}

func unwrapDefaultKeys(def map[string]any) []gateway.RawOutput {
	var outs []gateway.RawOutput
	for _, key := range structuredDefaultKeys {
		if v, ok := def[key]; ok {
			outs = append(outs, gateway.RawOutput{Text: nil, Data: map[string]any{key: v}})
		}
	}
	return outs
}

func mediaEntriesAtRoot(data map[string]any) ([]gateway.RawOutput, bool) {
	var outs []gateway.RawOutput
	for _, key := range rootMediaKeys {
		if v, ok := data[key]; ok {
			outs = append(outs, gateway.RawOutput{Text: nil, Data: map[string]any{key: v}})
		}
	}
	return outs, len(outs) > 0
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// decodeDataField decodes a data field that may arrive as a JSON
// string (as the REQ upstream's outputStack entries do) or already as
// a decoded map.
func decodeDataField(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		if v == "" {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

// isInternalMetadata reports whether a raw outputStack entry carries
// no user-visible content: empty/absent text and a data map whose only
// top-level key is _cognigy with no _default sub-key (spec.md §4.2 / glossary).
func isInternalMetadata(text string, data map[string]any) bool {
	if text != "" {
		return false
	}
	if len(data) != 1 {
		return false
	}
	cognigy, ok := data["_cognigy"].(map[string]any)
	if !ok {
		return false
	}
	_, hasDefault := cognigy["_default"]
	return !hasDefault
}
