package api

import (
	"net/http"

	"github.com/queryclip/queryclip-server/internal/http/response"
)

// handleGetState returns the current persistence snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.store.Snapshot(), s.logger)
}

// handleSaveState forces an immediate save of both tiers, bypassing the
// debounce window. The panel calls this before the page unloads.
func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.SaveNow(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{"saved": true}, s.logger)
}

// handleClearState wipes persisted state from both tiers and resets the
// in-memory collection.
func (s *Server) handleClearState(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()

	if err := s.sync.Clear(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}
