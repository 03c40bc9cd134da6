// Package sqlitestore implements the durable tier as an embedded SQLite
// archive, used when no remote sync service is configured.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// historyDepth bounds the rolling archive of previous saves.
const historyDepth = 20

// Store provides SQLite-backed durable persistence for saved state.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the archive database at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("embedded archive opened", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveState replaces the current saved state and archives the previous one.
func (s *Store) SaveState(ctx context.Context, snap *domain.Snapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Move the previous save into history before overwriting it.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_history (saved_at, video_id, item_count, payload)
		SELECT saved_at, video_id, item_count, payload FROM state WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("archive previous state: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state (id, saved_at, video_id, video_timestamp, item_count, payload)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			saved_at = excluded.saved_at,
			video_id = excluded.video_id,
			video_timestamp = excluded.video_timestamp,
			item_count = excluded.item_count,
			payload = excluded.payload`,
		snap.SavedAt.UTC().Format(time.RFC3339Nano), snap.VideoID, snap.VideoTimestamp, snap.ItemCount(), payload)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM state_history WHERE id NOT IN (
			SELECT id FROM state_history ORDER BY id DESC LIMIT ?)`, historyDepth)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

// LoadState returns the current saved state.
func (s *Store) LoadState(ctx context.Context) (*domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, qerrors.NotFound("no saved state")
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ClearState removes the current saved state, archiving it first.
func (s *Store) ClearState(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_history (saved_at, video_id, item_count, payload)
		SELECT saved_at, video_id, item_count, payload FROM state WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("archive previous state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE id = 1`); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}

	return tx.Commit()
}

// History returns the timestamps of archived saves, newest first.
func (s *Store) History(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT saved_at FROM state_history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}
