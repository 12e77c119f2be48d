package normalize

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
)

func textPtr(s string) *string { return &s }

func TestClassifyPlainText(t *testing.T) {
	out := Classify(gateway.RawOutput{Text: textPtr("Hello")})
	require.Equal(t, KindStatusMessage, out.Kind)
	require.Len(t, out.Parts, 1)
	tp, ok := out.Parts[0].(a2a.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Hello", tp.Text)
}

func TestClassifyTopLevelQuickReplies(t *testing.T) {
	payload := map[string]any{
		"text": "Pick",
		"quickReplies": []any{
			map[string]any{"title": "A"},
			map[string]any{"title": "B"},
		},
	}
	out := Classify(gateway.RawOutput{
		Text: textPtr(""),
		Data: map[string]any{"_quickReplies": payload},
	})

	require.Equal(t, KindStatusMessage, out.Kind)
	require.Len(t, out.Parts, 2)

	tp := out.Parts[0].(a2a.TextPart)
	assert.Equal(t, "Pick\n- A\n- B", tp.Text)

	dp := out.Parts[1].(a2a.DataPart)
	assert.Equal(t, "quick_replies", dp.Data["type"])
	assert.Equal(t, payload, dp.Data["payload"])
}

func TestClassifyImageArtifact(t *testing.T) {
	out := Classify(gateway.RawOutput{
		Data: map[string]any{"_image": map[string]any{"imageUrl": "https://cdn.example/photo.png"}},
	})

	require.Equal(t, KindArtifact, out.Kind)
	assert.Equal(t, "image/png", out.MimeType)
	assert.Equal(t, "photo.png", out.Name)
	assert.Equal(t, "https://cdn.example/photo.png", out.FileURL)
	require.Len(t, out.Parts, 2)

	fp := out.Parts[0].(a2a.FilePart)
	uri := fp.File.(a2a.FileWithUri)
	assert.Equal(t, "https://cdn.example/photo.png", uri.URI)

	tp := out.Parts[1].(a2a.TextPart)
	assert.Equal(t, "[Image: https://cdn.example/photo.png]", tp.Text)
}

func TestClassifyCustomDataPreservesUnknownKeys(t *testing.T) {
	out := Classify(gateway.RawOutput{
		Text: textPtr("hi"),
		Data: map[string]any{"foo": "bar", "_cognigy": map[string]any{"_messageId": "x"}},
	})

	require.Equal(t, KindStatusMessage, out.Kind)
	require.Len(t, out.Parts, 2)
	dp := out.Parts[1].(a2a.DataPart)
	assert.Equal(t, "cognigy/data", dp.Data["type"])
	assert.Equal(t, map[string]any{"foo": "bar"}, dp.Data["payload"])
}

func TestFlattenEmptyBatchYieldsSingleEmptyTextPart(t *testing.T) {
	parts := Flatten(nil)
	require.Len(t, parts, 1)
	tp := parts[0].(a2a.TextPart)
	assert.Equal(t, "", tp.Text)
}

func TestFlattenConcatenatesAllOutputs(t *testing.T) {
	parts := Flatten([]gateway.RawOutput{
		{Text: textPtr("Hello")},
		{Text: textPtr(""), Data: map[string]any{"_cognigy": map[string]any{"_messageId": "x"}}},
	})
	require.Len(t, parts, 2)
}

func TestMimeInferenceIsIdempotentAcrossQueryStrings(t *testing.T) {
	a := inferMime("image", "https://cdn.example/photo.png?w=100")
	b := inferMime("image", "https://cdn.example/photo.png?h=200")
	assert.Equal(t, a, b)
	assert.Equal(t, "image/png", a)
}

func TestMimeInferenceUnknownExtensionFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "audio/mpeg", inferMime("audio", "https://cdn.example/sound.xyz"))
}
