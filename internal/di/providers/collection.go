package providers

import (
	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/logger"
)

// ProvideCollectionStore provides the in-memory capture collection.
func ProvideCollectionStore(i do.Injector) (*collection.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	store := collection.New(cfg.Capture.MaxItems, log.Logger, sseHandle.Manager)

	log.Info("Collection store initialized", "max_items", cfg.Capture.MaxItems)

	return store, nil
}
