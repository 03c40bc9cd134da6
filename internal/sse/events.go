// Package sse implements Server-Sent Events for real-time collection updates
// and batch capture progress broadcasting.
package sse

import (
	"time"

	"github.com/queryclip/queryclip-server/internal/domain"
)

// In QueryClip we only use SSE for server-to-client communication.
// The panel drives everything else through request/response, so full
// bidirectional transport (WebSockets) has never been needed.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventItemAdded represents a capture item being appended to the collection.
	EventItemAdded EventType = "item.added"
	// EventItemUpdated represents a capture item metadata update.
	EventItemUpdated EventType = "item.updated"
	// EventItemRemoved represents a capture item removal.
	EventItemRemoved EventType = "item.removed"
	// EventItemEvicted represents an item dropped by the capacity bound.
	EventItemEvicted EventType = "item.evicted"

	// EventCollectionReordered represents a committed reorder of the collection.
	EventCollectionReordered EventType = "collection.reordered"
	// EventCollectionCleared represents the collection being reset to empty.
	EventCollectionCleared EventType = "collection.cleared"
	// EventCollectionLoaded represents a full snapshot replacing current state.
	EventCollectionLoaded EventType = "collection.loaded"

	// EventChapterCreated represents a chapter creation event.
	EventChapterCreated EventType = "chapter.created"
	// EventChapterUpdated represents a chapter update event.
	EventChapterUpdated EventType = "chapter.updated"
	// EventChapterDeleted represents a chapter deletion event.
	EventChapterDeleted EventType = "chapter.deleted"

	// EventBatchStarted represents a batch capture run starting.
	EventBatchStarted EventType = "batch.started"
	// EventBatchProgress represents per-item progress within a batch run.
	EventBatchProgress EventType = "batch.progress"
	// EventBatchItemFailed represents a single capture failing inside a batch.
	EventBatchItemFailed EventType = "batch.item_failed"
	// EventBatchCompleted represents a batch capture run finishing.
	EventBatchCompleted EventType = "batch.completed"
	// EventBatchCancelled represents a batch capture run being cancelled.
	EventBatchCancelled EventType = "batch.cancelled"

	// EventSyncStatus represents a persistence tier status change.
	EventSyncStatus EventType = "sync.status"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Filtering field for multi-panel support. When set, events are only
	// delivered to clients watching this video. Empty means broadcast to all.
	VideoID string `json:"-"`
}

// ItemEventData is the data payload for item events. The item carries its
// current global index so clients can render without refetching the list.
type ItemEventData struct {
	Item  *domain.Item `json:"item"`
	Index int          `json:"index"`
}

// ItemRemovedEventData is the data payload for item removal and eviction events.
type ItemRemovedEventData struct {
	ItemID string `json:"itemId"`
}

// ReorderEventData is the data payload for reorder events.
type ReorderEventData struct {
	Order []string `json:"order"`
}

// CollectionLoadedEventData is the data payload for snapshot load events.
type CollectionLoadedEventData struct {
	VideoID   string `json:"videoId"`
	ItemCount int    `json:"itemCount"`
}

// ChapterEventData is the data payload for chapter create/update events.
type ChapterEventData struct {
	Chapter *domain.Chapter `json:"chapter"`
}

// ChapterDeletedEventData is the data payload for chapter delete events.
type ChapterDeletedEventData struct {
	ChapterID string `json:"chapterId"`
	// ClearedItemIDs are the members whose chapter assignment was reset.
	ClearedItemIDs []string `json:"clearedItemIds"`
}

// BatchStartedEventData is the data payload for batch start events.
type BatchStartedEventData struct {
	BatchID string `json:"batchId"`
	Mode    string `json:"mode"`
	Total   int    `json:"total"`
}

// BatchProgressEventData is the data payload for batch progress events.
type BatchProgressEventData struct {
	BatchID   string `json:"batchId"`
	Completed int    `json:"completed"`
	Remaining int    `json:"remaining"`
}

// BatchItemFailedEventData is the data payload for per-item batch failures.
type BatchItemFailedEventData struct {
	BatchID string `json:"batchId"`
	Reason  string `json:"reason"`
	Index   int    `json:"index"`
}

// BatchCompletedEventData is the data payload for batch completion events.
type BatchCompletedEventData struct {
	BatchID   string `json:"batchId"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// SyncStatusEventData is the data payload for persistence status events.
type SyncStatusEventData struct {
	Tier     string `json:"tier"`
	Status   string `json:"status"`
	Degraded bool   `json:"degraded"`
}

// NewItemAddedEvent creates an event for an appended capture item.
func NewItemAddedEvent(item *domain.Item, index int) Event {
	return Event{
		Type:      EventItemAdded,
		Timestamp: time.Now(),
		Data:      ItemEventData{Item: item, Index: index},
	}
}

// NewItemUpdatedEvent creates an event for an updated capture item.
func NewItemUpdatedEvent(item *domain.Item, index int) Event {
	return Event{
		Type:      EventItemUpdated,
		Timestamp: time.Now(),
		Data:      ItemEventData{Item: item, Index: index},
	}
}

// NewItemRemovedEvent creates an event for a removed capture item.
func NewItemRemovedEvent(itemID string) Event {
	return Event{
		Type:      EventItemRemoved,
		Timestamp: time.Now(),
		Data:      ItemRemovedEventData{ItemID: itemID},
	}
}

// NewItemEvictedEvent creates an event for an item dropped by the capacity bound.
func NewItemEvictedEvent(itemID string) Event {
	return Event{
		Type:      EventItemEvicted,
		Timestamp: time.Now(),
		Data:      ItemRemovedEventData{ItemID: itemID},
	}
}

// NewCollectionReorderedEvent creates an event for a committed reorder.
func NewCollectionReorderedEvent(order []string) Event {
	return Event{
		Type:      EventCollectionReordered,
		Timestamp: time.Now(),
		Data:      ReorderEventData{Order: order},
	}
}

// NewCollectionClearedEvent creates an event for a collection reset.
func NewCollectionClearedEvent() Event {
	return Event{
		Type:      EventCollectionCleared,
		Timestamp: time.Now(),
	}
}

// NewCollectionLoadedEvent creates an event for a snapshot load.
func NewCollectionLoadedEvent(videoID string, itemCount int) Event {
	return Event{
		Type:      EventCollectionLoaded,
		Timestamp: time.Now(),
		Data:      CollectionLoadedEventData{VideoID: videoID, ItemCount: itemCount},
	}
}

// NewChapterCreatedEvent creates an event for a chapter creation.
func NewChapterCreatedEvent(chapter *domain.Chapter) Event {
	return Event{
		Type:      EventChapterCreated,
		Timestamp: time.Now(),
		Data:      ChapterEventData{Chapter: chapter},
	}
}

// NewChapterUpdatedEvent creates an event for a chapter update.
func NewChapterUpdatedEvent(chapter *domain.Chapter) Event {
	return Event{
		Type:      EventChapterUpdated,
		Timestamp: time.Now(),
		Data:      ChapterEventData{Chapter: chapter},
	}
}

// NewChapterDeletedEvent creates an event for a chapter deletion.
func NewChapterDeletedEvent(chapterID string, clearedItemIDs []string) Event {
	return Event{
		Type:      EventChapterDeleted,
		Timestamp: time.Now(),
		Data:      ChapterDeletedEventData{ChapterID: chapterID, ClearedItemIDs: clearedItemIDs},
	}
}

// NewBatchStartedEvent creates an event for a batch capture run starting.
func NewBatchStartedEvent(batchID, mode string, total int) Event {
	return Event{
		Type:      EventBatchStarted,
		Timestamp: time.Now(),
		Data:      BatchStartedEventData{BatchID: batchID, Mode: mode, Total: total},
	}
}

// NewBatchProgressEvent creates an event for per-item batch progress.
func NewBatchProgressEvent(batchID string, completed, remaining int) Event {
	return Event{
		Type:      EventBatchProgress,
		Timestamp: time.Now(),
		Data:      BatchProgressEventData{BatchID: batchID, Completed: completed, Remaining: remaining},
	}
}

// NewBatchItemFailedEvent creates an event for a single failed capture in a batch.
func NewBatchItemFailedEvent(batchID string, index int, reason string) Event {
	return Event{
		Type:      EventBatchItemFailed,
		Timestamp: time.Now(),
		Data:      BatchItemFailedEventData{BatchID: batchID, Index: index, Reason: reason},
	}
}

// NewBatchCompletedEvent creates an event for a finished batch run.
func NewBatchCompletedEvent(batchID string, succeeded, failed int) Event {
	return Event{
		Type:      EventBatchCompleted,
		Timestamp: time.Now(),
		Data:      BatchCompletedEventData{BatchID: batchID, Succeeded: succeeded, Failed: failed},
	}
}

// NewBatchCancelledEvent creates an event for a cancelled batch run.
func NewBatchCancelledEvent(batchID string, succeeded, failed int) Event {
	return Event{
		Type:      EventBatchCancelled,
		Timestamp: time.Now(),
		Data:      BatchCompletedEventData{BatchID: batchID, Succeeded: succeeded, Failed: failed},
	}
}

// NewSyncStatusEvent creates an event for a persistence tier status change.
func NewSyncStatusEvent(tier, status string, degraded bool) Event {
	return Event{
		Type:      EventSyncStatus,
		Timestamp: time.Now(),
		Data:      SyncStatusEventData{Tier: tier, Status: status, Degraded: degraded},
	}
}

// NewHeartbeatEvent creates a connection keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
	}
}
