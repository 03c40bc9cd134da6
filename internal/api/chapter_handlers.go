package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queryclip/queryclip-server/internal/domain"
	"github.com/queryclip/queryclip-server/internal/http/response"
	"github.com/queryclip/queryclip-server/internal/id"
)

// handleListChapters returns chapters in display order (anchor ascending).
func (s *Server) handleListChapters(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]any{"chapters": s.store.Chapters()}, s.logger)
}

// CreateChapterRequest creates a chapter anchored at a video position.
type CreateChapterRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	AnchorTimestamp float64 `json:"anchor_timestamp" validate:"gte=0"`
	// InsertionAnchorIndex pins where the chapter's bucket begins in the
	// canonical order; uncategorized items at or past it join the chapter.
	// Omitted means "after everything currently present"; -1 means "before
	// everything".
	InsertionAnchorIndex *int `json:"insertion_anchor_index"`
}

// handleCreateChapter creates a new chapter.
func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req CreateChapterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	ch := domain.Chapter{
		ID:              id.MustGenerate(id.PrefixChapter),
		Title:           req.Title,
		AnchorTimestamp: req.AnchorTimestamp,
	}

	created, err := s.store.AddChapter(ch, req.InsertionAnchorIndex)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, created, s.logger)
}

// UpdateChapterRequest is a partial chapter update.
type UpdateChapterRequest struct {
	Title           *string  `json:"title"`
	AnchorTimestamp *float64 `json:"anchor_timestamp"`
}

// handleUpdateChapter patches chapter title or anchor.
func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "id")

	var req UpdateChapterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	ch, ok := s.store.UpdateChapter(chapterID, domain.ChapterPatch{
		Title:           req.Title,
		AnchorTimestamp: req.AnchorTimestamp,
	})
	if !ok {
		response.NotFound(w, "Chapter not found", s.logger)
		return
	}

	response.Success(w, ch, s.logger)
}

// handleDeleteChapter deletes a chapter. Member items survive with their
// chapter assignment cleared.
func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "id")

	if !s.store.DeleteChapter(chapterID) {
		response.NotFound(w, "Chapter not found", s.logger)
		return
	}

	response.NoContent(w)
}
