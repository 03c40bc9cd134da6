// Package di provides dependency injection configuration for the QueryClip server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/config"
	"github.com/queryclip/queryclip-server/internal/di/providers"
	"github.com/queryclip/queryclip-server/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Events
	do.Provide(injector, providers.ProvideSSEManager)

	// Collection
	do.Provide(injector, providers.ProvideCollectionStore)

	// Persistence tiers
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideDurableStore)
	do.Provide(injector, providers.ProvideSync)

	// Search
	do.Provide(injector, providers.ProvideSearchIndex)

	// Capture
	do.Provide(injector, providers.ProvideCapturer)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*collection.Store](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*providers.DurableStoreHandle](injector)
	_ = do.MustInvoke[*providers.SyncHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.OrchestratorHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Load persisted state now that every tier is wired, then bring the
	// search index up to date with whatever was loaded.
	providers.ReconcileOnStartup(injector)
	providers.ReindexIfNeeded(injector)

	return nil
}
