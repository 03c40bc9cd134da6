// Package collection holds the in-memory canonical state of a capture
// collection: the ordered item list, its chapters, and the video context
// they belong to. All mutations go through Store, which keeps invariants
// (capacity bound, chapter references, order integrity) and broadcasts
// changes to the persistence and SSE layers.
package collection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/queryclip/queryclip-server/internal/domain"
)

// EventEmitter is the interface for emitting SSE events.
// Store uses this to broadcast changes without depending on SSE implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// SearchIndexer is the interface for updating the caption search index.
// Store uses this to keep search in sync without depending on search implementation.
type SearchIndexer interface {
	IndexItem(ctx context.Context, item *domain.Item) error
	DeleteItem(ctx context.Context, itemID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexItem is a no-op.
func (NoopSearchIndexer) IndexItem(context.Context, *domain.Item) error { return nil }

// DeleteItem is a no-op.
func (NoopSearchIndexer) DeleteItem(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// SyncNotifier receives the full collection state after every committed
// mutation. The persistence layer implements this to schedule local and
// remote saves; Store never blocks on it.
type SyncNotifier interface {
	CollectionChanged(snap *domain.Snapshot)
}

// NoopSyncNotifier is a no-op implementation of SyncNotifier for testing.
type NoopSyncNotifier struct{}

// CollectionChanged implements SyncNotifier as a no-op.
func (NoopSyncNotifier) CollectionChanged(*domain.Snapshot) {}

// Store is the single authority over collection state. It is safe for
// concurrent use; every operation takes the mutex for its full duration
// so observers always see a consistent ordering.
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger

	items          []domain.Item
	chapters       []domain.Chapter
	videoID        string
	videoTimestamp float64

	// maxItems bounds the collection; oldest items are evicted on append.
	maxItems int

	// SSE event emitter for broadcasting changes.
	eventEmitter EventEmitter

	// Search indexer for keeping caption search in sync with store changes.
	// Set via SetSearchIndexer after store creation to avoid circular dependencies.
	searchIndexer SearchIndexer

	// Sync notifier for scheduling persistence after mutations.
	// Set via SetSyncNotifier after store creation for the same reason.
	syncNotifier SyncNotifier
}

// New creates a new Store bounded to maxItems entries. The emitter is
// required and used to broadcast collection changes via SSE.
func New(maxItems int, logger *slog.Logger, emitter EventEmitter) *Store {
	return &Store{
		logger:        logger,
		maxItems:      maxItems,
		eventEmitter:  emitter,
		searchIndexer: NoopSearchIndexer{},
		syncNotifier:  NoopSyncNotifier{},
	}
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
// This is set after store creation to avoid circular dependencies
// (store needs to exist before the search service can be created).
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchIndexer = indexer
}

// SetSyncNotifier sets the persistence notifier invoked after mutations.
func (s *Store) SetSyncNotifier(n SyncNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncNotifier = n
}

// MaxItems returns the configured capacity bound.
func (s *Store) MaxItems() int {
	return s.maxItems
}

// Len returns the current item count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns a deep copy of the current item list in collection order.
func (s *Store) Items() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Chapters returns a deep copy of the current chapters sorted by anchor timestamp.
func (s *Store) Chapters() []domain.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedChaptersLocked()
}

// Item returns a copy of the item with the given id, or false if absent.
func (s *Store) Item(id string) (domain.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	return domain.Item{}, false
}

// VideoContext returns the video the collection currently belongs to.
func (s *Store) VideoContext() (videoID string, timestamp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID, s.videoTimestamp
}

// Snapshot returns a deep copy of the full collection state, suitable for
// persistence or serving to a client.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *domain.Snapshot {
	return &domain.Snapshot{
		VideoID:        s.videoID,
		VideoTimestamp: s.videoTimestamp,
		Items:          cloneItems(s.items),
		Chapters:       s.sortedChaptersLocked(),
	}
}

func (s *Store) sortedChaptersLocked() []domain.Chapter {
	out := make([]domain.Chapter, len(s.chapters))
	copy(out, s.chapters)
	domain.SortChapters(out)
	return out
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) chapterIndexLocked(id string) int {
	for i := range s.chapters {
		if s.chapters[i].ID == id {
			return i
		}
	}
	return -1
}

// notifySyncLocked snapshots state and hands it to the persistence layer.
// Called with the mutex held after every committed mutation.
func (s *Store) notifySyncLocked() {
	if s.syncNotifier == nil {
		return
	}
	s.syncNotifier.CollectionChanged(s.snapshotLocked())
}

func (s *Store) emit(event any) {
	if s.eventEmitter != nil {
		s.eventEmitter.Emit(event)
	}
}

func cloneItems(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}
