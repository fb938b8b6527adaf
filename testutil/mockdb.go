package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const checkpointsTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id TEXT NOT NULL,
	checkpoint_ns TEXT NOT NULL DEFAULT '',
	checkpoint_id TEXT NOT NULL,
	parent_checkpoint_id TEXT,
	type TEXT,
	checkpoint TEXT NOT NULL DEFAULT '{}',
	metadata TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (thread_id, checkpoint_ns, checkpoint_id)
)`

const checkpointWritesTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoint_writes (
	thread_id TEXT NOT NULL,
	checkpoint_ns TEXT NOT NULL DEFAULT '',
	checkpoint_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	channel TEXT NOT NULL,
	type TEXT,
	blob BLOB,
	PRIMARY KEY (thread_id, checkpoint_ns, checkpoint_id, task_id, idx)
)`

// CreateCheckpointDB creates a file-backed SQLite checkpoint store in a temp
// directory and returns its path and an open handle for seeding.
func CreateCheckpointDB(t *testing.T) (string, *sql.DB) {
	t.Helper()
	return createCheckpointDB(t, true)
}

// CreateCheckpointDBWithoutWrites creates a checkpoint store that lacks the
// checkpoint_writes table, so deletes touching it fail.
func CreateCheckpointDBWithoutWrites(t *testing.T) (string, *sql.DB) {
	t.Helper()
	return createCheckpointDB(t, false)
}

func createCheckpointDB(t *testing.T, withWrites bool) (string, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(CreateTempDir(t), "checkpoints.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open checkpoint database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(checkpointsTableSQL); err != nil {
		t.Fatalf("Failed to create checkpoints table: %v", err)
	}
	if withWrites {
		if _, err := db.Exec(checkpointWritesTableSQL); err != nil {
			t.Fatalf("Failed to create checkpoint_writes table: %v", err)
		}
	}

	return dbPath, db
}

// InsertCheckpoint inserts a checkpoint row
func InsertCheckpoint(t *testing.T, db *sql.DB, threadID, checkpointID, parentID string) {
	t.Helper()
	var parent interface{}
	if parentID != "" {
		parent = parentID
	}
	_, err := db.Exec(
		"INSERT INTO checkpoints (thread_id, checkpoint_id, parent_checkpoint_id, checkpoint) VALUES (?, ?, ?, ?)",
		threadID, checkpointID, parent, `{"v":1}`,
	)
	if err != nil {
		t.Fatalf("Failed to insert checkpoint: %v", err)
	}
}

// InsertCheckpointWrite inserts a pending write row for a checkpoint
func InsertCheckpointWrite(t *testing.T, db *sql.DB, threadID, checkpointID string, idx int) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO checkpoint_writes (thread_id, checkpoint_id, task_id, idx, channel) VALUES (?, ?, ?, ?, ?)",
		threadID, checkpointID, "task-1", idx, "messages",
	)
	if err != nil {
		t.Fatalf("Failed to insert checkpoint write: %v", err)
	}
}

// CountRows counts rows in table for a thread id
func CountRows(t *testing.T, db *sql.DB, table, threadID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE thread_id = ?", threadID).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s rows: %v", table, err)
	}
	return n
}
