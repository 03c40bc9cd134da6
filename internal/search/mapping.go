package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for capture documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on captions and notes with English stemming
//  2. Transcript context and prompt exchanges searchable at lower boost
//  3. Exact keyword matching for kind and chapter filters
//  4. Numeric range queries on the video timestamp
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Caption - primary search target
	captionFieldMapping := bleve.NewTextFieldMapping()
	captionFieldMapping.Analyzer = en.AnalyzerName
	captionFieldMapping.Store = true
	captionFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("caption", captionFieldMapping)

	// Notes - user-written, searchable
	notesFieldMapping := bleve.NewTextFieldMapping()
	notesFieldMapping.Analyzer = en.AnalyzerName
	notesFieldMapping.Store = true
	notesFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("notes", notesFieldMapping)

	// Transcript context - searchable but not stored (can be large)
	contextFieldMapping := bleve.NewTextFieldMapping()
	contextFieldMapping.Analyzer = en.AnalyzerName
	contextFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("context", contextFieldMapping)

	// Prompt and response text
	promptFieldMapping := bleve.NewTextFieldMapping()
	promptFieldMapping.Analyzer = en.AnalyzerName
	promptFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("prompt", promptFieldMapping)

	responseFieldMapping := bleve.NewTextFieldMapping()
	responseFieldMapping.Analyzer = en.AnalyzerName
	responseFieldMapping.Store = true
	responseFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("response", responseFieldMapping)

	// --- Keyword fields (exact match) ---

	kindFieldMapping := bleve.NewTextFieldMapping()
	kindFieldMapping.Analyzer = keyword.Name
	kindFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("kind", kindFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	chapterFieldMapping := bleve.NewTextFieldMapping()
	chapterFieldMapping.Analyzer = keyword.Name
	chapterFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("chapter_id", chapterFieldMapping)

	// --- Numeric fields (range queries, sorting) ---

	timestampFieldMapping := bleve.NewNumericFieldMapping()
	timestampFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("timestamp", timestampFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
