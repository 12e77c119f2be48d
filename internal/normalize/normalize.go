// Package normalize implements the Output Normalizer: a pure function
// that translates one heterogeneous backend output record into one
// Normalized Output, tagged status-message or artifact, always
// carrying a fully-rendered human-readable text part.
//
// Nothing in this package performs I/O or suspends; every exported
// function is a plain data transformation.
package normalize

import (
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

// Kind tags which A2A event shape a Normalized Output becomes.
type Kind string

const (
	// KindStatusMessage carries a conversational or structured-UI
	// payload and becomes a task-status-update event with a message.
	KindStatusMessage Kind = "status-message"
	// KindArtifact carries a binary media reference and becomes a
	// task-artifact-update event.
	KindArtifact Kind = "artifact"
)

// Output is the tagged union produced by Classify.
type Output struct {
	Kind Kind
	// Parts is always non-empty and always has a text-bearing part.
	Parts []a2a.Part

	// The following are only populated when Kind == KindArtifact,
	// pre-extracted for callers that need them without a type switch.
	MimeType string
	Name     string
	FileURL  string
}

type structuredUIKey struct {
	key      string
	typeName string
}

var structuredUIKeys = []structuredUIKey{
	{"_quickReplies", "quick_replies"},
	{"_gallery", "carousel"},
	{"_buttons", "buttons"},
	{"_list", "list"},
	{"_adaptiveCard", "AdaptiveCard"},
}

var mediaKeys = []string{"_image", "_audio", "_video"}

// Classify translates one Raw Backend Output into one Normalized
// Output, applying the classification algorithm in spec.md §4.1 in
// strict priority order: media, then structured UI, then custom/
// unknown data, then plain text.
func Classify(raw gateway.RawOutput) Output {
	if mediaKey, mediaVal, ok := firstMediaKey(raw.Data); ok {
		return classifyMedia(mediaKey, mediaVal)
	}

	if key, typeName, payload, ok := firstStructuredUIKey(raw.Data); ok {
		return classifyStructuredUI(raw, key, typeName, payload)
	}

	if raw.Data != nil {
		return classifyCustomData(raw)
	}

	return classifyPlainText(raw)
}

func firstMediaKey(data map[string]any) (key string, val any, ok bool) {
	for _, k := range mediaKeys {
		if v, present := data[k]; present {
			return k, v, true
		}
	}
	return "", nil, false
}

func firstStructuredUIKey(data map[string]any) (key, typeName string, payload any, ok bool) {
	for _, candidate := range structuredUIKeys {
		if v, present := data[candidate.key]; present {
			return candidate.key, candidate.typeName, v, true
		}
	}
	return "", "", nil, false
}

func classifyMedia(key string, val any) Output {
	kind := strings.TrimPrefix(key, "_")
	payload, _ := val.(map[string]any)

	urlField := kind + "Url"
	rawURL, _ := payload[urlField].(string)

	mimeType := inferMime(kind, rawURL)
	name := filenameFromURL(rawURL, kind)
	titledKind := strings.ToUpper(kind[:1]) + kind[1:]
	fallback := "[" + titledKind + ": " + rawURL + "]"

	return Output{
		Kind:     KindArtifact,
		MimeType: mimeType,
		Name:     name,
		FileURL:  rawURL,
		Parts: []a2a.Part{
			a2a.FilePart{File: a2a.FileWithUri{URI: rawURL, MimeType: mimeType, Name: name}},
			a2a.TextPart{Text: fallback},
		},
	}
}

func classifyStructuredUI(raw gateway.RawOutput, key, typeName string, payload any) Output {
	text := renderStructured(key, payload)
	if original := raw.TextOrEmpty(); strings.TrimSpace(original) != "" && key != "_gallery" {
		text = original + "\n" + text
	}

	return Output{
		Kind: KindStatusMessage,
		Parts: []a2a.Part{
			a2a.TextPart{Text: text},
			a2a.DataPart{Data: map[string]any{"type": typeName, "payload": payload}},
		},
	}
}

func classifyCustomData(raw gateway.RawOutput) Output {
	text := raw.TextOrEmpty()
	if strings.TrimSpace(text) == "" {
		if fallback, ok := raw.Data["_fallbackText"].(string); ok {
			text = fallback
		}
	}

	remaining := make(map[string]any, len(raw.Data))
	for k, v := range raw.Data {
		if k == "_fallbackText" || k == "_cognigy" {
			continue
		}
		remaining[k] = v
	}

	parts := []a2a.Part{a2a.TextPart{Text: text}}
	if len(remaining) > 0 {
		parts = append(parts, a2a.DataPart{Data: map[string]any{"type": "cognigy/data", "payload": remaining}})
	}

	return Output{Kind: KindStatusMessage, Parts: parts}
}

func classifyPlainText(raw gateway.RawOutput) Output {
	text := raw.TextOrEmpty()
	if strings.TrimSpace(text) == "" {
		slog.Warn("normalizer: output has no data and blank text")
		text = ""
	}
	return Output{Kind: KindStatusMessage, Parts: []a2a.Part{a2a.TextPart{Text: text}}}
}

func filenameFromURL(rawURL, kind string) string {
	if rawURL == "" {
		return kind
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return kind
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return kind
	}
	return base
}

// Flatten maps a batch of Raw Backend Outputs into a single flat
// ordered sequence of Parts (spec.md §4.1.2), used by the REQ path to
// pack every output into one response message. A panic from a single
// output's classification is recovered, logged, and skipped — one bad
// output never fails the whole batch.
func Flatten(raws []gateway.RawOutput) []a2a.Part {
	if len(raws) == 0 {
		return []a2a.Part{a2a.TextPart{Text: ""}}
	}

	parts := make([]a2a.Part, 0, len(raws))
	for i, raw := range raws {
		out, ok := safeClassify(raw, i)
		if !ok {
			continue
		}
		parts = append(parts, out.Parts...)
	}
	if len(parts) == 0 {
		return []a2a.Part{a2a.TextPart{Text: ""}}
	}
	return parts
}

func safeClassify(raw gateway.RawOutput, index int) (out Output, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("normalizer: skipping output that failed to classify", "index", index, "panic", r)
			ok = false
		}
	}()
	return Classify(raw), true
}
