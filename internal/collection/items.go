package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/sse"
)

// Append adds items to the end of the collection in the order given.
// When the collection would exceed its capacity bound, the oldest items
// are evicted from the front to make room; eviction is logged and
// broadcast, never an error. Returns deep copies of the items as stored.
func (s *Store) Append(items ...domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range items {
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		if err := items[i].Validate(); err != nil {
			return nil, qerrors.ValidationWithDetails("invalid capture item", map[string]string{"id": items[i].ID, "reason": err.Error()})
		}
		if s.indexOfLocked(items[i].ID) >= 0 {
			return nil, qerrors.Conflict(fmt.Sprintf("item %s already exists", items[i].ID))
		}
		if items[i].ChapterID != "" && s.chapterIndexLocked(items[i].ChapterID) < 0 {
			return nil, qerrors.Validationf("item %s references unknown chapter %s", items[i].ID, items[i].ChapterID)
		}
	}

	s.items = append(s.items, items...)

	// Capacity bound: drop from the front until we fit.
	var evicted []domain.Item
	if s.maxItems > 0 && len(s.items) > s.maxItems {
		overflow := len(s.items) - s.maxItems
		evicted = make([]domain.Item, overflow)
		copy(evicted, s.items[:overflow])
		s.items = append(s.items[:0], s.items[overflow:]...)
	}

	for i := range evicted {
		if s.logger != nil {
			s.logger.Info("evicted oldest item to stay within capacity",
				"item_id", evicted[i].ID, "max_items", s.maxItems)
		}
		s.deindexAsync(evicted[i].ID)
		s.emit(sse.NewItemEvictedEvent(evicted[i].ID))
	}

	// Eviction can swallow part of a large incoming batch; only the
	// survivors count as accepted.
	incoming := make(map[string]bool, len(items))
	for i := range items {
		incoming[items[i].ID] = true
	}
	accepted := make([]domain.Item, 0, len(items))
	for i := range s.items {
		if incoming[s.items[i].ID] {
			accepted = append(accepted, s.items[i].Clone())
		}
	}

	for i := range accepted {
		item := accepted[i]
		s.indexAsync(&item)
		s.emit(sse.NewItemAddedEvent(&item, s.indexOfLocked(item.ID)))
	}

	s.notifySyncLocked()
	return accepted, nil
}

// Remove deletes the item with the given id. Removing an id that is not
// present is a no-op and returns false; clients may race each other (or an
// eviction) to the same delete, and that must not surface as a failure.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		return false
	}

	s.items = append(s.items[:i], s.items[i+1:]...)
	s.deindexAsync(id)
	s.emit(sse.NewItemRemovedEvent(id))
	s.notifySyncLocked()
	return true
}

// Update applies a metadata patch to the item with the given id and returns
// the updated item. Updating an id that is not present is a silent no-op:
// the caller may hold a stale reference to an evicted item.
func (s *Store) Update(id string, patch domain.ItemPatch) (domain.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(id)
	if i < 0 {
		if s.logger != nil {
			s.logger.Debug("update for unknown item ignored", "item_id", id)
		}
		return domain.Item{}, false, nil
	}

	item := &s.items[i]

	if patch.Caption != nil {
		if !item.SetCaption(*patch.Caption) {
			return domain.Item{}, false, qerrors.Validation("prompt response captions are immutable")
		}
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	if patch.ChapterID != nil {
		if *patch.ChapterID != "" && s.chapterIndexLocked(*patch.ChapterID) < 0 {
			return domain.Item{}, false, qerrors.Validationf("unknown chapter %s", *patch.ChapterID)
		}
		item.ChapterID = *patch.ChapterID
	}

	updated := item.Clone()
	s.indexAsync(&updated)
	s.emit(sse.NewItemUpdatedEvent(&updated, i))
	s.notifySyncLocked()
	return updated, true, nil
}

// ReorderTo replaces the collection order with the given id sequence.
// Every id must name a current item and appear at most once; ids omitted
// from the sequence are removed. An unknown id rejects the whole reorder
// and leaves the collection untouched.
func (s *Store) ReorderTo(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(order))
	next := make([]domain.Item, 0, len(order))
	for _, id := range order {
		if seen[id] {
			return qerrors.Validationf("duplicate id %s in reorder", id)
		}
		seen[id] = true
		i := s.indexOfLocked(id)
		if i < 0 {
			return qerrors.Validationf("unknown id %s in reorder", id)
		}
		next = append(next, s.items[i])
	}

	var dropped []string
	for i := range s.items {
		if !seen[s.items[i].ID] {
			dropped = append(dropped, s.items[i].ID)
		}
	}

	s.items = next
	for _, id := range dropped {
		s.deindexAsync(id)
		s.emit(sse.NewItemRemovedEvent(id))
	}

	s.emit(sse.NewCollectionReorderedEvent(order))
	s.notifySyncLocked()
	return nil
}

// SetVideoContext records which video (and playhead position) the
// collection belongs to.
func (s *Store) SetVideoContext(videoID string, timestamp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.videoID = videoID
	s.videoTimestamp = timestamp
	s.notifySyncLocked()
}

// Clear resets the collection to empty: items, chapters, and video context.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.deindexAsync(s.items[i].ID)
	}

	s.items = nil
	s.chapters = nil
	s.videoID = ""
	s.videoTimestamp = 0

	s.emit(sse.NewCollectionClearedEvent())
	s.notifySyncLocked()
}

// LoadSnapshot replaces the full collection state with the given snapshot,
// trimming the oldest items if it exceeds the capacity bound. Used at
// startup by the persistence layer and when the panel restores saved state.
// The persistence layer is not notified; the caller decides whether the
// loaded state needs to be written back.
func (s *Store) LoadSnapshot(snap *domain.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return qerrors.ValidationWithDetails("invalid snapshot", map[string]string{"reason": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.deindexAsync(s.items[i].ID)
	}

	items := cloneItems(snap.Items)
	if s.maxItems > 0 && len(items) > s.maxItems {
		if s.logger != nil {
			s.logger.Warn("snapshot exceeds capacity, trimming oldest items",
				"snapshot_items", len(items), "max_items", s.maxItems)
		}
		items = items[len(items)-s.maxItems:]
	}

	chapters := make([]domain.Chapter, len(snap.Chapters))
	copy(chapters, snap.Chapters)

	s.items = items
	s.chapters = chapters
	s.videoID = snap.VideoID
	s.videoTimestamp = snap.VideoTimestamp

	for i := range s.items {
		item := s.items[i].Clone()
		s.indexAsync(&item)
	}

	s.emit(sse.NewCollectionLoadedEvent(s.videoID, len(s.items)))
	return nil
}

// indexAsync updates the search index without blocking the mutation.
func (s *Store) indexAsync(item *domain.Item) {
	if s.searchIndexer == nil {
		return
	}
	indexer := s.searchIndexer
	go func() {
		if err := indexer.IndexItem(context.Background(), item); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to index item for search", "item_id", item.ID, "error", err)
			}
		}
	}()
}

func (s *Store) deindexAsync(id string) {
	if s.searchIndexer == nil {
		return
	}
	indexer := s.searchIndexer
	go func() {
		if err := indexer.DeleteItem(context.Background(), id); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to remove item from search index", "item_id", id, "error", err)
			}
		}
	}()
}
