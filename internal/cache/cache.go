// Package cache is the fast local persistence tier. It mirrors the current
// collection snapshot into a Badger database next to the server so the last
// known state survives restarts even when the durable tier is unreachable.
package cache

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

const (
	snapshotKey = "state:snapshot"
	// degradedKey marks that the stored snapshot was written without media
	// payloads because the full state could not be serialized.
	degradedKey = "state:degraded"
)

// Cache wraps a Badger database holding the local snapshot mirror.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the cache database at the given path.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("local cache opened", "path", path)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (c *Cache) Close() error {
	if c.logger != nil {
		c.logger.Info("closing local cache")
	}
	return c.db.Close()
}

// SaveSnapshot writes the snapshot as the current local state. The degraded
// flag records whether media payloads were stripped before the write.
func (c *Cache) SaveSnapshot(snap *domain.Snapshot, degraded bool) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	if err := c.set([]byte(snapshotKey), snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := c.set([]byte(degradedKey), degraded); err != nil {
		return fmt.Errorf("save degraded flag: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot and whether it was written in
// degraded form. Returns a not-found error when no snapshot has been saved.
func (c *Cache) LoadSnapshot() (*domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	if err := c.get([]byte(snapshotKey), &snap); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, qerrors.NotFound("no cached snapshot")
		}
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	var degraded bool
	if err := c.get([]byte(degradedKey), &degraded); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("load degraded flag: %w", err)
	}
	return &snap, degraded, nil
}

// Clear removes the stored snapshot.
func (c *Cache) Clear() error {
	if err := c.delete([]byte(snapshotKey)); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return c.delete([]byte(degradedKey))
}

// get retrieves a value by key.
func (c *Cache) get(key []byte, dest any) error {
	return c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (c *Cache) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// delete removes a key from the database.
func (c *Cache) delete(key []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
