package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	Kinds     []string // Filter by item kind (empty = all)
	ChapterID string   // Filter to one chapter's items

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy string // "relevance" or "timestamp"

	// Options
	Highlight bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		Offset:    0,
		SortBy:    "relevance",
		Highlight: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Score      float64           `json:"score"`
	Caption    string            `json:"caption,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Response   string            `json:"response,omitempty"`
	ChapterID  string            `json:"chapterId,omitempty"`
	Timestamp  float64           `json:"timestamp"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	if params.SortBy == "timestamp" {
		searchRequest.SortBy([]string{"timestamp"})
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("caption")
		searchRequest.Highlight.AddField("notes")
		searchRequest.Highlight.AddField("response")
	}

	searchRequest.Fields = []string{
		"id", "kind", "caption", "notes", "response", "chapter_id", "timestamp",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if k, ok := hit.Fields["kind"].(string); ok {
			searchHit.Kind = k
		}
		if c, ok := hit.Fields["caption"].(string); ok {
			searchHit.Caption = c
		}
		if n, ok := hit.Fields["notes"].(string); ok {
			searchHit.Notes = n
		}
		if r, ok := hit.Fields["response"].(string); ok {
			searchHit.Response = r
		}
		if ch, ok := hit.Fields["chapter_id"].(string); ok {
			searchHit.ChapterID = ch
		}
		if ts, ok := hit.Fields["timestamp"].(float64); ok {
			searchHit.Timestamp = ts
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Main text query: captions carry the most signal, then notes and
	// prompt responses, then raw transcript context.
	if params.Query != "" {
		textQueries := []query.Query{}

		captionMatch := bleve.NewMatchQuery(params.Query)
		captionMatch.SetField("caption")
		captionMatch.SetBoost(3.0)
		textQueries = append(textQueries, captionMatch)

		notesMatch := bleve.NewMatchQuery(params.Query)
		notesMatch.SetField("notes")
		notesMatch.SetBoost(2.0)
		textQueries = append(textQueries, notesMatch)

		responseMatch := bleve.NewMatchQuery(params.Query)
		responseMatch.SetField("response")
		responseMatch.SetBoost(1.5)
		textQueries = append(textQueries, responseMatch)

		promptMatch := bleve.NewMatchQuery(params.Query)
		promptMatch.SetField("prompt")
		textQueries = append(textQueries, promptMatch)

		contextMatch := bleve.NewMatchQuery(params.Query)
		contextMatch.SetField("context")
		contextMatch.SetBoost(0.5)
		textQueries = append(textQueries, contextMatch)

		// Fuzzy matching for typo tolerance on captions
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("caption")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for incremental search (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("caption")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Kind filter
	if len(params.Kinds) > 0 {
		kindQueries := make([]query.Query, len(params.Kinds))
		for i, k := range params.Kinds {
			kq := bleve.NewTermQuery(k)
			kq.SetField("kind")
			kindQueries[i] = kq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(kindQueries...))
	}

	// Chapter filter (exact match)
	if params.ChapterID != "" {
		chapterQuery := bleve.NewTermQuery(params.ChapterID)
		chapterQuery.SetField("chapter_id")
		queries = append(queries, chapterQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
