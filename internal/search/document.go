// Package search provides full-text search over the capture collection
// using Bleve. Captions, notes, transcript context, and prompt exchanges
// are all searchable so a capture can be found by anything ever written
// about it.
package search

import (
	"github.com/queryclip/queryclip-server/internal/domain"
)

// CaptureDocument is the document structure for the Bleve index, one per
// collection item. Media payloads are never indexed, only text.
type CaptureDocument struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Caption   string  `json:"caption,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	Context   string  `json:"context,omitempty"`
	Prompt    string  `json:"prompt,omitempty"`
	Response  string  `json:"response,omitempty"`
	ChapterID string  `json:"chapter_id,omitempty"`
	Timestamp float64 `json:"timestamp"`
	CreatedAt int64   `json:"created_at"`
}

// FromItem builds the search document for a collection item.
func FromItem(item *domain.Item) *CaptureDocument {
	doc := &CaptureDocument{
		ID:        item.ID,
		Kind:      string(item.Kind),
		Notes:     item.Notes,
		ChapterID: item.ChapterID,
		Timestamp: item.Timestamp,
		CreatedAt: item.CreatedAt.Unix(),
	}

	switch {
	case item.Screenshot != nil:
		doc.Caption = item.Screenshot.Caption
		doc.Context = item.Screenshot.Context
	case item.Animation != nil:
		doc.Caption = item.Animation.Caption
	case item.PromptResponse != nil:
		doc.Prompt = item.PromptResponse.Prompt
		doc.Response = item.PromptResponse.Response
	}

	return doc
}

// ToMap converts the document to a map so indexed field names match the
// mapping exactly.
func (d *CaptureDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"kind":       d.Kind,
		"timestamp":  d.Timestamp,
		"created_at": d.CreatedAt,
	}
	if d.Caption != "" {
		m["caption"] = d.Caption
	}
	if d.Notes != "" {
		m["notes"] = d.Notes
	}
	if d.Context != "" {
		m["context"] = d.Context
	}
	if d.Prompt != "" {
		m["prompt"] = d.Prompt
	}
	if d.Response != "" {
		m["response"] = d.Response
	}
	if d.ChapterID != "" {
		m["chapter_id"] = d.ChapterID
	}
	return m
}
