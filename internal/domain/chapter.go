package domain

import (
	"fmt"
	"slices"
	"time"
)

// UncategorizedIndex is the InsertionAnchorIndex for a chapter created
// before every existing item.
const UncategorizedIndex = -1

// Chapter is a user-defined named grouping boundary over the collection.
// Chapters display in ascending AnchorTimestamp order regardless of the
// index they were created at.
type Chapter struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	// AnchorTimestamp is the video position the chapter conceptually starts at.
	AnchorTimestamp float64 `json:"anchor_timestamp"`
	// InsertionAnchorIndex is the canonical index after which the chapter
	// was created, or UncategorizedIndex for "before everything".
	InsertionAnchorIndex int `json:"insertion_anchor_index"`
}

// Validate checks chapter field invariants.
func (c *Chapter) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chapter has no id")
	}
	if c.Title == "" {
		return fmt.Errorf("chapter %s: title is required", c.ID)
	}
	if c.InsertionAnchorIndex < UncategorizedIndex {
		return fmt.Errorf("chapter %s: invalid insertion anchor %d", c.ID, c.InsertionAnchorIndex)
	}
	return nil
}

// SortChapters orders chapters for display: ascending anchor timestamp,
// stable on ties so equal anchors keep their relative creation order.
func SortChapters(chapters []Chapter) {
	slices.SortStableFunc(chapters, func(a, b Chapter) int {
		switch {
		case a.AnchorTimestamp < b.AnchorTimestamp:
			return -1
		case a.AnchorTimestamp > b.AnchorTimestamp:
			return 1
		default:
			return 0
		}
	})
}

// ChapterPatch is a partial update applied to an existing chapter.
type ChapterPatch struct {
	Title           *string
	AnchorTimestamp *float64
}
