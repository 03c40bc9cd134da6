// Package remote is the durable persistence tier. A DurableStore holds the
// authoritative saved snapshot; it is either an HTTP sync service or, when
// no service is configured, an embedded SQLite archive on local disk.
package remote

import (
	"context"

	"github.com/queryclip/queryclip-server/internal/domain"
)

// DurableStore is the interface the persistence layer saves through.
// Implementations classify failures: transient errors (network, 5xx,
// timeouts) are retried by the caller, permanent ones are not.
type DurableStore interface {
	// SaveState writes the snapshot as the authoritative saved state.
	SaveState(ctx context.Context, snap *domain.Snapshot) error
	// LoadState returns the authoritative saved state, or a not-found
	// error when nothing has ever been saved.
	LoadState(ctx context.Context) (*domain.Snapshot, error)
	// ClearState removes the authoritative saved state.
	ClearState(ctx context.Context) error
	// Close releases any held resources.
	Close() error
}
