package reader

import (
	"strings"

	"github.com/jonathan/reader-sync/internal/types"
)

// RenderHighlights produces the markdown annotation section for a
// weblink body. Highlights with empty text are skipped entirely; a
// highlight note becomes an indented italic line under its bullet.
// Returns the empty string when nothing renders.
func RenderHighlights(highlights []types.Annotation) string {
	var parts []string
	for _, h := range highlights {
		text := strings.TrimSpace(h.Content)
		if text == "" {
			continue
		}
		parts = append(parts, "* "+text)
		if note := strings.TrimSpace(h.Note); note != "" {
			parts = append(parts, "  *Note: "+note+"*")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "## Annotations\n\n" + strings.Join(parts, "\n")
}
