package normalize

import "strings"

// mimeTable maps a lower-case file extension (without the leading dot)
// to a MIME type, per the table in spec.md §4.1. Extensions are taken
// from the URL after stripping any query string; comparison is
// case-insensitive.
var mimeTable = map[string]map[string]string{
	"image": {
		"jpg": "image/jpeg", "jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"webp": "image/webp",
		"svg":  "image/svg+xml",
		"bmp":  "image/bmp",
		"ico":  "image/x-icon",
	},
	"audio": {
		"mp3":  "audio/mpeg",
		"ogg":  "audio/ogg",
		"wav":  "audio/wav",
		"m4a":  "audio/mp4",
		"aac":  "audio/aac",
		"flac": "audio/flac",
		"webm": "audio/webm",
	},
	"video": {
		"mp4": "video/mp4", "m4v": "video/mp4",
		"webm": "video/webm",
		"ogg":  "video/ogg",
		"avi":  "video/x-msvideo",
		"mov":  "video/quicktime",
		"mkv":  "video/x-matroska",
	},
}

var mimeDefault = map[string]string{
	"image": "image/jpeg",
	"audio": "audio/mpeg",
	"video": "video/mp4",
}

// inferMime infers a MIME type for an artifact kind ("image", "audio",
// or "video") from the final extension in rawURL. Unknown or missing
// extensions fall back to the kind's default MIME type.
func inferMime(kind, rawURL string) string {
	ext := extensionOf(stripQueryString(rawURL))
	if mime, ok := mimeTable[kind][ext]; ok {
		return mime
	}
	return mimeDefault[kind]
}

func stripQueryString(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func extensionOf(s string) string {
	i := strings.LastIndex(s, ".")
	if i < 0 || i == len(s)-1 {
		return ""
	}
	return strings.ToLower(s[i+1:])
}
