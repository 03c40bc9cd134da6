package providers

import (
	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/cache"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/logger"
	"github.com/queryclip/queryclip-server/internal/remote"
	"github.com/queryclip/queryclip-server/internal/remote/httpstore"
	"github.com/queryclip/queryclip-server/internal/remote/sqlitestore"
)

// CacheHandle wraps the local cache tier with shutdown capability.
type CacheHandle struct {
	*cache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the local Badger cache tier.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c, err := cache.Open(cfg.CachePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Local cache initialized", "path", cfg.CachePath())

	return &CacheHandle{Cache: c}, nil
}

// DurableStoreHandle wraps the durable tier with shutdown capability.
type DurableStoreHandle struct {
	remote.DurableStore
}

// Shutdown implements do.Shutdownable.
func (h *DurableStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideDurableStore provides the durable persistence tier: the remote HTTP
// endpoint when configured, otherwise the embedded SQLite archive.
func ProvideDurableStore(i do.Injector) (*DurableStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Persistence.RemoteURL != "" {
		client := httpstore.New(cfg.Persistence.RemoteURL, log.Logger)
		log.Info("Durable store: remote endpoint", "url", cfg.Persistence.RemoteURL)
		return &DurableStoreHandle{DurableStore: client}, nil
	}

	store, err := sqlitestore.Open(cfg.ArchivePath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Durable store: embedded archive", "path", cfg.ArchivePath())

	return &DurableStoreHandle{DurableStore: store}, nil
}
