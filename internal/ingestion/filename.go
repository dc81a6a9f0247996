package ingestion

import (
	"strings"

	"github.com/google/uuid"
)

// uniqueFilename derives a collision-resistant storage filename from a
// source URL: a fresh UUID plus the extension of the URL's last path
// segment (query string stripped), defaulting to jpg. Pure and total.
func uniqueFilename(sourceURL string) string {
	ext := "jpg"

	segment := sourceURL
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if i := strings.Index(segment, "?"); i >= 0 {
		segment = segment[:i]
	}
	if i := strings.LastIndex(segment, "."); i >= 0 {
		ext = segment[i+1:]
	}

	return uuid.NewString() + "." + ext
}
