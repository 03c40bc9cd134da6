package collection

import (
	"slices"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/sse"
)

// DragResult is the outcome of resolving a drag-and-drop move.
type DragResult struct {
	// Order is the new flat id order after the move.
	Order []string
	// ChapterID is the chapter the dragged item ends up in.
	ChapterID string
	// Moved is false when the drop lands exactly where the item already
	// is; callers skip the mutation entirely in that case.
	Moved bool
}

// ResolveDrag computes the flat order that results from dropping the item
// with draggedID at localIndex inside the bucket for targetChapterID
// ("" for uncategorized).
//
// The translation works against the collection as it looks after the
// dragged item has been lifted out: drop positions reported by a drag UI
// describe the list without the dragged element, so resolving against the
// pre-removal order would land one slot too far whenever an item moves
// toward the back, and would drift across buckets on cross-chapter moves.
func ResolveDrag(items []domain.Item, chapters []domain.Chapter, draggedID, targetChapterID string, localIndex int) (*DragResult, error) {
	from := -1
	for i := range items {
		if items[i].ID == draggedID {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, qerrors.NotFoundf("item %s", draggedID)
	}
	if !items[from].Draggable() {
		return nil, qerrors.Validationf("item %s cannot be reordered", draggedID)
	}

	working := make([]domain.Item, 0, len(items)-1)
	working = append(working, items[:from]...)
	working = append(working, items[from+1:]...)

	view := NewView(working, chapters)
	at, err := view.GlobalInsertIndex(targetChapterID, localIndex)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(items))
	for i := range working[:at] {
		order = append(order, working[i].ID)
	}
	order = append(order, draggedID)
	for i := at; i < len(working); i++ {
		order = append(order, working[i].ID)
	}

	moved := items[from].ChapterID != targetChapterID
	if !moved {
		for i := range items {
			if items[i].ID != order[i] {
				moved = true
				break
			}
		}
	}

	return &DragResult{Order: order, ChapterID: targetChapterID, Moved: moved}, nil
}

// MoveItem resolves and commits a drag of the given item to localIndex
// inside the target chapter bucket. A drop onto the item's current
// position is a no-op that touches nothing.
func (s *Store) MoveItem(id, targetChapterID string, localIndex int) (*DragResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targetChapterID != "" && s.chapterIndexLocked(targetChapterID) < 0 {
		return nil, qerrors.NotFoundf("chapter %s", targetChapterID)
	}

	res, err := ResolveDrag(s.items, s.chapters, id, targetChapterID, localIndex)
	if err != nil {
		return nil, err
	}
	if !res.Moved {
		return res, nil
	}

	byID := make(map[string]int, len(s.items))
	for i := range s.items {
		byID[s.items[i].ID] = i
	}

	next := make([]domain.Item, len(res.Order))
	for i, itemID := range res.Order {
		next[i] = s.items[byID[itemID]]
		if itemID == id {
			next[i].ChapterID = targetChapterID
		}
	}
	s.items = next

	moved := s.items[slices.Index(res.Order, id)].Clone()
	s.indexAsync(&moved)
	s.emit(sse.NewItemUpdatedEvent(&moved, slices.Index(res.Order, id)))
	s.emit(sse.NewCollectionReorderedEvent(res.Order))
	s.notifySyncLocked()
	return res, nil
}
