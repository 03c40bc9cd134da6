package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/queryclip/queryclip-server/internal/http/response"
	"github.com/queryclip/queryclip-server/internal/search"
)

// handleSearch finds captures by caption, notes, or prompt text.
//
// Query parameters:
//
//	q         - search query (empty matches everything)
//	kind      - comma-separated kind filter
//	chapter   - restrict to one chapter's items
//	limit     - page size (default 20, max 100)
//	offset    - pagination offset
//	sort      - "relevance" (default) or "timestamp"
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := search.DefaultSearchParams()
	q := r.URL.Query()

	params.Query = q.Get("q")
	params.ChapterID = q.Get("chapter")

	if kinds := q.Get("kind"); kinds != "" {
		params.Kinds = strings.Split(kinds, ",")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			response.BadRequest(w, "limit must be a positive integer", s.logger)
			return
		}
		if limit > 100 {
			limit = 100
		}
		params.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			response.BadRequest(w, "offset must be a non-negative integer", s.logger)
			return
		}
		params.Offset = offset
	}

	if sort := q.Get("sort"); sort != "" {
		params.SortBy = sort
	}

	result, err := s.searchIndex.Search(r.Context(), params)
	if err != nil {
		s.logger.Error("Search failed", "error", err, "query", params.Query)
		response.InternalError(w, "Search failed", s.logger)
		return
	}

	response.Success(w, result, s.logger)
}
