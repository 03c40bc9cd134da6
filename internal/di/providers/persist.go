package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/logger"
	"github.com/queryclip/queryclip-server/internal/persist"
)

// SyncHandle wraps the persistence syncer with shutdown capability.
type SyncHandle struct {
	*persist.Sync
}

// Shutdown implements do.Shutdownable.
func (h *SyncHandle) Shutdown() error {
	return h.Close()
}

// ProvideSync provides the dual-tier persistence syncer, wired as the
// collection's sync notifier.
func ProvideSync(i do.Injector) (*SyncHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*collection.Store](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	durableHandle := do.MustInvoke[*DurableStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	syncer := persist.New(store, cacheHandle.Cache, durableHandle.DurableStore, cfg.Persistence.Debounce, log.Logger, sseHandle.Manager)
	store.SetSyncNotifier(syncer)

	log.Info("Persistence sync initialized", "debounce", cfg.Persistence.Debounce)

	return &SyncHandle{Sync: syncer}, nil
}

// ReconcileOnStartup loads persisted state into the collection, preferring
// whichever tier holds more items. Called once after all services are wired.
func ReconcileOnStartup(i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	syncHandle := do.MustInvoke[*SyncHandle](i)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := syncHandle.Reconcile(ctx); err != nil {
		// Starting empty is better than not starting.
		log.Warn("Startup reconciliation failed, starting with empty collection", "error", err)
	}
}
