package media

import (
	"mime"
	"path/filepath"
	"slices"
	"strings"
)

// Classify maps a file name and an optional MIME hint to a Kind.
// Known extensions win over the MIME type.
func Classify(fileName, mimeHint string) Kind {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if ext != "" {
		if slices.Contains(ImageExtensions, ext) {
			return KindImage
		}
		if slices.Contains(VideoExtensions, ext) {
			return KindVideo
		}
	}

	mimeType := normalizeMime(mimeHint)
	if mimeType == "" && ext != "" {
		mimeType = normalizeMime(mime.TypeByExtension(ext))
	}
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	default:
		return KindUnsupported
	}
}

// normalizeMime lowercases a MIME type and drops parameters.
func normalizeMime(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}
