// Package types defines the data model shared across the sync engine.
package types

import (
	"encoding/json"
	"sort"
	"time"
)

// Item categories as reported by the reader API.
const (
	CategoryArticle   = "article"
	CategoryEmail     = "email"
	CategoryHighlight = "highlight"
)

// SourceItem is one document as returned by the reader list endpoint.
// The engine only reads these; the reader API owns them.
type SourceItem struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Summary         string  `json:"summary,omitempty"`
	Author          string  `json:"author,omitempty"`
	Category        string  `json:"category,omitempty"`
	SourceURL       string  `json:"source_url,omitempty"`
	URL             string  `json:"url,omitempty"` // reader-internal URL
	UpdatedAt       string  `json:"updated_at,omitempty"`
	ReadingProgress float64 `json:"reading_progress,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	Tags            TagSet  `json:"tags,omitempty"`
}

// Annotation is a highlight attached to a SourceItem.
type Annotation struct {
	ID        string  `json:"id"`
	ParentID  string  `json:"parent_id"`
	Content   string  `json:"content"`
	Note      string  `json:"notes,omitempty"`
	Position  float64 `json:"position,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// TagSet decodes the reader API's tag field, which arrives either as a
// plain array of names or as an object keyed by tag name.
type TagSet []string

// UnmarshalJSON accepts both tag shapes the API is known to emit.
// Object keys are sorted so decoding is deterministic.
func (t *TagSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	names := make([]string, 0, len(keyed))
	for name := range keyed {
		names = append(names, name)
	}
	sort.Strings(names)
	*t = names
	return nil
}

// ListResponse is one page of the reader list endpoint.
type ListResponse struct {
	Results        []json.RawMessage `json:"results"`
	NextPageCursor string            `json:"nextPageCursor,omitempty"`
}

// ParseTimestamp parses the RFC3339-ish timestamps the reader API emits.
// Returns the zero time when the value is empty or unparseable.
func ParseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
