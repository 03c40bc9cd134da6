// Package persist keeps the in-memory collection mirrored into two tiers:
// a fast local cache written on every mutation, and a durable store written
// on a debounced schedule so bursts of edits collapse into one save.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/queryclip/queryclip-server/internal/cache"
	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/media/images"
	"github.com/queryclip/queryclip-server/internal/remote"
	"github.com/queryclip/queryclip-server/internal/sse"
)

const (
	// Saves get more retry budget than loads: an unsaved mutation is lost
	// work, a failed startup load just means starting from the other tier.
	saveAttempts = 5
	loadAttempts = 2
	baseBackoff  = time.Second

	flushTimeout = 2 * time.Minute
)

// Sync mirrors collection state into the persistence tiers. It implements
// collection.SyncNotifier and is registered on the store after construction.
type Sync struct {
	store   *collection.Store
	cache   *cache.Cache
	durable remote.DurableStore
	logger  *slog.Logger
	emitter collection.EventEmitter

	debounce time.Duration

	// backoffBase is the first retry delay; doubled per attempt.
	backoffBase time.Duration

	mu      sync.Mutex
	pending *domain.Snapshot
	timer   *time.Timer
	closed  bool

	flushing sync.WaitGroup
}

// New creates a Sync writing to the given tiers. The emitter broadcasts
// tier status changes; pass a noop emitter in tests.
func New(store *collection.Store, cacheTier *cache.Cache, durable remote.DurableStore, debounce time.Duration, logger *slog.Logger, emitter collection.EventEmitter) *Sync {
	return &Sync{
		store:       store,
		cache:       cacheTier,
		durable:     durable,
		debounce:    debounce,
		backoffBase: baseBackoff,
		logger:      logger,
		emitter:     emitter,
	}
}

// CollectionChanged implements collection.SyncNotifier. The local tier is
// written before returning; the durable tier write is debounced so that only
// the final state of a mutation burst is sent.
func (s *Sync) CollectionChanged(snap *domain.Snapshot) {
	s.saveLocal(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	// Trailing debounce: every change replaces the pending snapshot and
	// restarts the window, so intermediate states are never sent.
	s.pending = snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flush)
}

// flush sends the pending snapshot to the durable tier.
func (s *Sync) flush() {
	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	if snap == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.flushing.Add(1)
	s.mu.Unlock()
	defer s.flushing.Done()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.saveDurable(ctx, snap)
}

// SaveNow bypasses the debounce window and writes the current collection
// state to both tiers immediately.
func (s *Sync) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = nil
	s.mu.Unlock()

	snap := s.store.Snapshot()
	s.saveLocal(snap)
	return s.saveDurableErr(ctx, snap)
}

// Clear removes saved state from both tiers.
func (s *Sync) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = nil
	s.mu.Unlock()

	if err := s.cache.Clear(); err != nil {
		s.logger.Error("failed to clear local cache", "error", err)
	}

	return s.withRetry(ctx, saveAttempts, "clear durable state", func(ctx context.Context) error {
		return s.durable.ClearState(ctx)
	})
}

// Reconcile resolves local and durable state at startup and loads the
// winner into the collection. The snapshot holding more items wins: a
// shorter snapshot on either side means that tier missed saves, and
// preferring it would silently drop captures. On equal counts the durable
// tier wins. The losing tier is overwritten with the winner.
func (s *Sync) Reconcile(ctx context.Context) error {
	local, localDegraded, localErr := s.cache.LoadSnapshot()
	if localErr != nil && !qerrors.Is(localErr, qerrors.ErrNotFound) {
		s.logger.Error("failed to load local cache", "error", localErr)
	}

	var durable *domain.Snapshot
	err := s.withRetry(ctx, loadAttempts, "load durable state", func(ctx context.Context) error {
		var err error
		durable, err = s.durable.LoadState(ctx)
		return err
	})
	if err != nil && !qerrors.Is(err, qerrors.ErrNotFound) {
		s.logger.Warn("durable tier unavailable during reconciliation", "error", err)
		s.emitter.Emit(sse.NewSyncStatusEvent("remote", "unreachable", true))
	}

	switch {
	case local == nil && durable == nil:
		s.logger.Info("no saved state found, starting empty")
		return nil

	case durable == nil || (local != nil && local.ItemCount() > durable.ItemCount()):
		s.logger.Info("restoring from local cache",
			"items", local.ItemCount(), "degraded", localDegraded)
		if err := s.store.LoadSnapshot(local); err != nil {
			return err
		}
		// Push the richer local state through so the durable tier catches up.
		s.saveDurable(ctx, local)
		return nil

	default:
		s.logger.Info("restoring from durable tier", "items", durable.ItemCount())
		if err := s.store.LoadSnapshot(durable); err != nil {
			return err
		}
		s.saveLocal(durable)
		return nil
	}
}

// Close stops the debounce timer and flushes any pending durable save.
func (s *Sync) Close() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	snap := s.pending
	s.pending = nil
	s.closed = true
	s.mu.Unlock()

	s.flushing.Wait()

	if snap != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		s.saveDurable(ctx, snap)
	}
	return nil
}

// saveLocal writes the snapshot to the local cache. When the full state
// cannot be stored, media payloads are replaced with their BlurHash
// placeholders and the write is retried in degraded form: losing image
// bytes beats losing the whole collection.
func (s *Sync) saveLocal(snap *domain.Snapshot) {
	if err := s.cache.SaveSnapshot(snap.Clone(), false); err == nil {
		return
	} else if s.logger != nil {
		s.logger.Warn("full snapshot save failed, retrying without media payloads", "error", err)
	}

	degraded := Degrade(snap, s.logger)
	if err := s.cache.SaveSnapshot(degraded, true); err != nil {
		s.logger.Error("degraded snapshot save failed, local state is stale", "error", err)
		return
	}
	s.emitter.Emit(sse.NewSyncStatusEvent("local", "degraded", true))
}

func (s *Sync) saveDurable(ctx context.Context, snap *domain.Snapshot) {
	if err := s.saveDurableErr(ctx, snap); err != nil {
		s.logger.Error("durable save failed", "items", snap.ItemCount(), "error", err)
		s.emitter.Emit(sse.NewSyncStatusEvent("remote", "unreachable", true))
	}
}

func (s *Sync) saveDurableErr(ctx context.Context, snap *domain.Snapshot) error {
	err := s.withRetry(ctx, saveAttempts, "save durable state", func(ctx context.Context) error {
		return s.durable.SaveState(ctx, snap)
	})
	if err == nil {
		s.emitter.Emit(sse.NewSyncStatusEvent("remote", "ok", false))
	}
	return err
}

// withRetry runs fn with exponential backoff. Only transient failures are
// retried; permanent ones surface immediately.
func (s *Sync) withRetry(ctx context.Context, attempts int, op string, fn func(context.Context) error) error {
	backoff := s.backoffBase
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !qerrors.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		s.logger.Warn("transient failure, backing off",
			"op", op, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// Degrade returns a copy of the snapshot with media payloads replaced by
// BlurHash placeholders. Items whose placeholders cannot be computed keep
// only their metadata.
func Degrade(snap *domain.Snapshot, logger *slog.Logger) *domain.Snapshot {
	out := snap.Clone()
	for i := range out.Items {
		item := &out.Items[i]
		switch {
		case item.Screenshot != nil && item.Screenshot.ImageData != "":
			if item.Screenshot.Placeholder == nil {
				ph, err := images.ComputePlaceholder(item.Screenshot.ImageData)
				if err != nil {
					if logger != nil {
						logger.Warn("failed to compute placeholder", "item_id", item.ID, "error", err)
					}
				} else {
					item.Screenshot.Placeholder = ph
				}
			}
			item.Screenshot.ImageData = ""

		case item.Animation != nil && item.Animation.GIFData != "":
			if item.Animation.Placeholder == nil {
				ph, err := images.ComputePlaceholder(item.Animation.GIFData)
				if err != nil {
					if logger != nil {
						logger.Warn("failed to compute placeholder", "item_id", item.ID, "error", err)
					}
				} else {
					item.Animation.Placeholder = ph
				}
			}
			item.Animation.GIFData = ""
		}
	}
	return out
}
