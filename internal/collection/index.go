package collection

import (
	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

// Entry is one item inside a chapter bucket, annotated with the item's
// position in the flat collection so panel mutations (edit, delete, drag)
// can be translated back without searching.
type Entry struct {
	Item        domain.Item `json:"item"`
	GlobalIndex int         `json:"globalIndex"`
}

// Bucket is the set of items assigned to one chapter, in collection order.
// The uncategorized bucket has an empty ChapterID and a nil Chapter.
type Bucket struct {
	Chapter   *domain.Chapter `json:"chapter,omitempty"`
	ChapterID string          `json:"chapterId"`
	Entries   []Entry         `json:"entries"`
}

// View is a read-only chapter-grouped projection of a collection snapshot.
// It is derived, never stored: the flat item order stays the single source
// of truth and a View is rebuilt whenever the collection changes.
type View struct {
	items    []domain.Item
	chapters []domain.Chapter
	buckets  map[string][]Entry
}

// NewView builds the projection for the given snapshot state. Items keep
// their relative collection order within each bucket.
func NewView(items []domain.Item, chapters []domain.Chapter) *View {
	v := &View{
		items:    items,
		chapters: chapters,
		buckets:  make(map[string][]Entry, len(chapters)+1),
	}
	for i := range items {
		key := items[i].ChapterID
		v.buckets[key] = append(v.buckets[key], Entry{Item: items[i], GlobalIndex: i})
	}
	return v
}

// Buckets returns the buckets in display order: uncategorized first, then
// chapters by ascending anchor timestamp. Chapters without members still
// appear, so a freshly created chapter shows up as an empty group.
func (v *View) Buckets() []Bucket {
	sorted := make([]domain.Chapter, len(v.chapters))
	copy(sorted, v.chapters)
	domain.SortChapters(sorted)

	out := make([]Bucket, 0, len(sorted)+1)
	out = append(out, Bucket{ChapterID: "", Entries: v.buckets[""]})
	for i := range sorted {
		ch := sorted[i]
		out = append(out, Bucket{
			Chapter:   &ch,
			ChapterID: ch.ID,
			Entries:   v.buckets[ch.ID],
		})
	}
	return out
}

// Bucket returns the bucket for the given chapter id ("" for uncategorized).
// Returns false when the chapter id does not exist.
func (v *View) Bucket(chapterID string) (Bucket, bool) {
	if chapterID == "" {
		return Bucket{ChapterID: "", Entries: v.buckets[""]}, true
	}
	for i := range v.chapters {
		if v.chapters[i].ID == chapterID {
			ch := v.chapters[i]
			return Bucket{Chapter: &ch, ChapterID: chapterID, Entries: v.buckets[chapterID]}, true
		}
	}
	return Bucket{}, false
}

// GlobalInsertIndex translates a position inside a chapter bucket into an
// insertion index in the flat collection.
//
// A local index within the bucket maps to the global index of the member
// currently at that position; a local index at or beyond the bucket length
// means "after the bucket's last member". An empty bucket falls back to the
// chapter's insertion anchor (the collection length at chapter creation),
// clamped to the current bounds; the empty uncategorized bucket maps to the
// front of the collection, where it is displayed.
func (v *View) GlobalInsertIndex(chapterID string, localIndex int) (int, error) {
	if chapterID != "" {
		if _, ok := v.Bucket(chapterID); !ok {
			return 0, qerrors.NotFoundf("chapter %s", chapterID)
		}
	}
	if localIndex < 0 {
		localIndex = 0
	}

	entries := v.buckets[chapterID]
	if len(entries) == 0 {
		if chapterID == "" {
			return 0, nil
		}
		for i := range v.chapters {
			if v.chapters[i].ID == chapterID {
				return clamp(v.chapters[i].InsertionAnchorIndex, 0, len(v.items)), nil
			}
		}
		return len(v.items), nil
	}

	if localIndex >= len(entries) {
		return entries[len(entries)-1].GlobalIndex + 1, nil
	}
	return entries[localIndex].GlobalIndex, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// GroupedView returns the chapter-grouped projection of the current state.
func (s *Store) GroupedView() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewView(cloneItems(s.items), s.sortedChaptersLocked())
}
