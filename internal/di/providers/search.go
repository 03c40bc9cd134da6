package providers

import (
	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/logger"
	"github.com/queryclip/queryclip-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index, wired to the collection
// for automatic indexing on every mutation.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*collection.Store](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.SearchIndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	store.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ReindexIfNeeded syncs the search index with the loaded collection.
// Should be called after startup reconciliation has populated the store.
func ReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	store := do.MustInvoke[*collection.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	items := store.Items()
	docCount, _ := indexHandle.DocumentCount()
	if docCount >= uint64(len(items)) {
		return
	}

	log.Info("Search index is behind the collection, reindexing",
		"documents", docCount,
		"items", len(items),
	)

	go func() {
		if err := indexHandle.IndexItems(items); err != nil {
			log.Error("Startup reindex failed", "error", err)
		}
	}()
}
