package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queryclip/queryclip-server/internal/domain"
	"github.com/queryclip/queryclip-server/internal/http/response"
	"github.com/queryclip/queryclip-server/internal/id"
)

// ListItemsResponse is the flat collection listing.
type ListItemsResponse struct {
	Items          []domain.Item `json:"items"`
	MaxItems       int           `json:"max_items"`
	VideoID        string        `json:"video_id,omitempty"`
	VideoTimestamp float64       `json:"video_timestamp,omitempty"`
}

// handleListItems returns the collection in canonical order.
func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	videoID, videoTimestamp := s.store.VideoContext()

	response.Success(w, ListItemsResponse{
		Items:          s.store.Items(),
		MaxItems:       s.store.MaxItems(),
		VideoID:        videoID,
		VideoTimestamp: videoTimestamp,
	}, s.logger)
}

// GroupedEntry is one item annotated with its canonical position.
type GroupedEntry struct {
	Item        domain.Item `json:"item"`
	GlobalIndex int         `json:"global_index"`
}

// GroupedBucket is one chapter's members in canonical order. ChapterID is
// empty for the uncategorized bucket.
type GroupedBucket struct {
	ChapterID string          `json:"chapter_id"`
	Chapter   *domain.Chapter `json:"chapter,omitempty"`
	Entries   []GroupedEntry  `json:"entries"`
}

// handleGroupedItems returns the chapter-grouped view of the collection.
func (s *Server) handleGroupedItems(w http.ResponseWriter, _ *http.Request) {
	view := s.store.GroupedView()

	buckets := view.Buckets()
	out := make([]GroupedBucket, 0, len(buckets))
	for _, b := range buckets {
		entries := make([]GroupedEntry, 0, len(b.Entries))
		for _, e := range b.Entries {
			entries = append(entries, GroupedEntry{Item: e.Item, GlobalIndex: e.GlobalIndex})
		}
		out = append(out, GroupedBucket{
			ChapterID: b.ChapterID,
			Chapter:   b.Chapter,
			Entries:   entries,
		})
	}

	response.Success(w, map[string]any{"buckets": out}, s.logger)
}

// CreateItemRequest archives a question asked about the video together with
// its answer. The answer is produced outside this server; the panel posts
// the finished exchange here so it lives in the collection like any capture.
type CreateItemRequest struct {
	Prompt    string  `json:"prompt" validate:"required,max=2000"`
	Response  string  `json:"response" validate:"required"`
	Timestamp float64 `json:"timestamp" validate:"gte=0"`
	Notes     string  `json:"notes,omitempty"`
}

// handleCreateItem appends a prompt-response item at the video position the
// question was asked.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	accepted, err := s.store.Append(domain.Item{
		ID:        id.MustGenerate(id.PrefixCapture),
		Kind:      domain.KindPromptResponse,
		Timestamp: req.Timestamp,
		Notes:     req.Notes,
		PromptResponse: &domain.PromptResponsePayload{
			Prompt:   req.Prompt,
			Response: req.Response,
		},
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if len(accepted) == 0 {
		response.InternalError(w, "Item was evicted on arrival", s.logger)
		return
	}

	response.Created(w, accepted[0], s.logger)
}

// UpdateItemRequest is a partial item update. Absent fields are left alone;
// an explicit empty chapter_id clears the assignment.
type UpdateItemRequest struct {
	Caption   *string `json:"caption"`
	Notes     *string `json:"notes"`
	ChapterID *string `json:"chapter_id"`
}

// handleUpdateItem patches caption, notes, or chapter assignment.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req UpdateItemRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	item, ok, err := s.store.Update(itemID, domain.ItemPatch{
		Caption:   req.Caption,
		Notes:     req.Notes,
		ChapterID: req.ChapterID,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if !ok {
		// Late edits to already-deleted items are dropped, not errors.
		response.NoContent(w)
		return
	}

	response.Success(w, item, s.logger)
}

// handleRemoveItem deletes an item. Removing an absent item succeeds.
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	s.store.Remove(itemID)
	response.NoContent(w)
}

// MoveItemRequest places an item at a chapter-local position.
type MoveItemRequest struct {
	ChapterID  string `json:"chapter_id"`
	LocalIndex int    `json:"local_index"`
}

// MoveItemResponse reports the committed order after a drag.
type MoveItemResponse struct {
	Order []string `json:"order"`
	Moved bool     `json:"moved"`
}

// handleMoveItem commits a drag-reorder: the item is reassigned to the target
// chapter (empty for uncategorized) and placed at the local index within it.
func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req MoveItemRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	result, err := s.store.MoveItem(itemID, req.ChapterID, req.LocalIndex)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, MoveItemResponse{Order: result.Order, Moved: result.Moved}, s.logger)
}

// ReorderRequest replaces the canonical order wholesale.
type ReorderRequest struct {
	Order []string `json:"order" validate:"required"`
}

// handleReorder atomically replaces the collection order. Ids omitted from
// the new order are removed.
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.store.ReorderTo(req.Order); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{"order": req.Order}, s.logger)
}

// handleClearCollection resets the collection to empty.
func (s *Server) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	response.NoContent(w)
}

// SetVideoContextRequest updates which video the collection belongs to.
type SetVideoContextRequest struct {
	VideoID   string  `json:"video_id" validate:"required"`
	Timestamp float64 `json:"timestamp" validate:"gte=0"`
}

// handleSetVideoContext records the active video and playhead position so
// they persist with the snapshot.
func (s *Server) handleSetVideoContext(w http.ResponseWriter, r *http.Request) {
	var req SetVideoContextRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.store.SetVideoContext(req.VideoID, req.Timestamp)
	response.NoContent(w)
}

