// Package database persists batch-run checkpoints so an interrupted
// validation run resumes where it stopped instead of revalidating the
// whole corpus.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caosd-group/kubefm/internal/logging"
)

const MemoryOnlyDSN = "file::memory:?cache=shared"

// Database wraps the checkpoint store. SQLite is the only engine: a run
// is a single process and the store lives next to the report output.
type Database struct {
	db  *sql.DB
	log *logging.Logger
}

func New() *Database {
	return &Database{log: logging.NewNopLogger()}
}

func (d *Database) WithLogger(log *logging.Logger) *Database {
	if log != nil {
		d.log = log
	}
	return d
}

// Open opens (creating if needed) the checkpoint store at path. An empty
// path selects an in-memory store, which makes resumption a no-op.
func (d *Database) Open(ctx context.Context, path string) error {
	dsn := MemoryOnlyDSN
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// The sqlite driver is not safe for concurrent writes over multiple
	// connections to the same file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT NOT NULL,
	batch_id INTEGER NOT NULL,
	documents INTEGER NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (run_id, batch_id)
);`); err != nil {
		db.Close()
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	d.db = db
	d.log.Debugf("checkpoint store open: %s", dsn)
	return nil
}

// Done reports whether a batch of a run has already completed.
func (d *Database) Done(ctx context.Context, runID string, batchID int) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE run_id = ? AND batch_id = ?`,
		runID, batchID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDone records a completed batch. Marking the same batch twice is not
// an error; the first record wins.
func (d *Database) MarkDone(ctx context.Context, runID string, batchID, documents int) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO checkpoints (run_id, batch_id, documents, completed_at) VALUES (?, ?, ?, ?)`,
		runID, batchID, documents, time.Now().UTC().Format(time.RFC3339))
	return err
}

// CompletedBatches returns how many batches of a run are checkpointed.
func (d *Database) CompletedBatches(ctx context.Context, runID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// Reset drops the checkpoints of a run, forcing full revalidation.
func (d *Database) Reset(ctx context.Context, runID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID)
	return err
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
