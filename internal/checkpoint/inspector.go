// Package checkpoint inspects the backend's persisted conversation context.
//
// The backend keeps one thread per project in two tables, checkpoints and
// checkpoint_writes, keyed by thread_id = "project:<id>". Every operation here
// opens its own connection and closes it before returning.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/cs-assist/internal"
)

const (
	threadPrefix = "project:"

	// DefaultListLimit bounds ListCheckpoints when no positive limit is given.
	DefaultListLimit = 50
)

// ThreadID derives the checkpoint thread id of a project.
func ThreadID(projectID string) string {
	return threadPrefix + projectID
}

// ProjectID is the inverse of ThreadID. Foreign thread ids are returned unchanged.
func ProjectID(threadID string) string {
	return strings.TrimPrefix(threadID, threadPrefix)
}

// Info is the latest checkpoint of one thread
type Info struct {
	ProjectID          string
	ThreadID           string
	CheckpointID       string
	ParentCheckpointID string
	HasContext         bool
}

// Summary describes the whole checkpoint store
type Summary struct {
	Connected        bool
	TotalThreads     int
	TotalCheckpoints int
	LatestProjectID  string // empty when the store holds no checkpoints
	Error            string
}

// Inspector provides read and delete access to the checkpoint store.
type Inspector struct {
	url            string
	connectTimeout time.Duration
}

// NewInspector creates an inspector for the configured database.
func NewInspector(cfg internal.DatabaseConfig) *Inspector {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Inspector{url: cfg.URL, connectTimeout: timeout}
}

// URL returns the database URL with any password masked
func (i *Inspector) URL() string {
	return internal.RedactDatabaseURL(i.url)
}

func (i *Inspector) connect(ctx context.Context) (*sql.DB, internal.Dialect, error) {
	pingCtx, cancel := context.WithTimeout(ctx, i.connectTimeout)
	defer cancel()

	db, dialect, err := internal.OpenDatabase(pingCtx, i.url)
	if err != nil {
		storeErr := &internal.CheckpointStoreError{Op: "connect", Err: err}
		internal.LogWarn("%v", storeErr)
		return nil, internal.Dialect{}, storeErr
	}
	return db, dialect, nil
}

// HasCheckpoint reports whether the project has at least one checkpoint.
// It returns false with an error when the store cannot be queried.
func (i *Inspector) HasCheckpoint(ctx context.Context, projectID string) (bool, error) {
	n, err := i.CheckpointCount(ctx, projectID)
	return n > 0, err
}

// CheckpointCount returns the number of checkpoint rows of the project.
// It returns 0 with an error when the store cannot be queried.
func (i *Inspector) CheckpointCount(ctx context.Context, projectID string) (int, error) {
	db, dialect, err := i.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	threadID := ThreadID(projectID)
	var n int
	query := dialect.Rebind("SELECT COUNT(*) FROM checkpoints WHERE thread_id = ?")
	if err := db.QueryRowContext(ctx, query, threadID).Scan(&n); err != nil {
		return 0, i.queryFailure("count", threadID, err)
	}
	return n, nil
}

// ListCheckpoints returns the latest checkpoint of each thread ordered by
// thread id, at most limit entries. It returns an empty list with an error
// when the store cannot be queried.
func (i *Inspector) ListCheckpoints(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	db, dialect, err := i.connect(ctx)
	if err != nil {
		return []Info{}, err
	}
	defer db.Close()

	// Latest per thread is the greatest checkpoint_id; the ids are time-ordered.
	query := dialect.Rebind(`
		SELECT c.thread_id, c.checkpoint_id, MAX(c.parent_checkpoint_id)
		FROM checkpoints c
		JOIN (
			SELECT thread_id, MAX(checkpoint_id) AS checkpoint_id
			FROM checkpoints
			GROUP BY thread_id
		) latest ON c.thread_id = latest.thread_id AND c.checkpoint_id = latest.checkpoint_id
		GROUP BY c.thread_id, c.checkpoint_id
		ORDER BY c.thread_id
		LIMIT ?`)

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return []Info{}, i.queryFailure("list", "", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var parent sql.NullString
		if err := rows.Scan(&info.ThreadID, &info.CheckpointID, &parent); err != nil {
			return []Info{}, i.queryFailure("list", "", fmt.Errorf("scan failed: %w", err))
		}
		info.ProjectID = ProjectID(info.ThreadID)
		info.ParentCheckpointID = parent.String
		info.HasContext = true
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return []Info{}, i.queryFailure("list", "", fmt.Errorf("rows iteration error: %w", err))
	}

	return infos, nil
}

// DeleteCheckpoint removes every checkpoint and pending write of the project
// in one transaction and returns the number of checkpoint rows removed.
// Any failure rolls back both deletes.
func (i *Inspector) DeleteCheckpoint(ctx context.Context, projectID string) (int64, error) {
	db, dialect, err := i.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	threadID := ThreadID(projectID)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, i.queryFailure("delete", threadID, err)
	}

	res, err := tx.ExecContext(ctx, dialect.Rebind("DELETE FROM checkpoints WHERE thread_id = ?"), threadID)
	if err != nil {
		return 0, i.rollback(tx, threadID, err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, dialect.Rebind("DELETE FROM checkpoint_writes WHERE thread_id = ?"), threadID); err != nil {
		return 0, i.rollback(tx, threadID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, i.queryFailure("delete", threadID, fmt.Errorf("commit failed: %w", err))
	}

	internal.Logger().Info().Str("thread", threadID).Int64("checkpoints", removed).Msg("Deleted checkpoints")
	return removed, nil
}

func (i *Inspector) rollback(tx *sql.Tx, threadID string, cause error) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		internal.LogError("Rollback failed for %s: %v", threadID, err)
	}
	return i.queryFailure("delete", threadID, cause)
}

// Summary reports store-wide statistics. An unreachable store yields
// Connected=false with the error text; an empty store is connected with zero counts.
func (i *Inspector) Summary(ctx context.Context) Summary {
	db, _, err := i.connect(ctx)
	if err != nil {
		return Summary{Connected: false, Error: err.Error()}
	}
	defer db.Close()

	var s Summary
	if err := db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT thread_id) FROM checkpoints").Scan(&s.TotalThreads); err != nil {
		return Summary{Connected: false, Error: i.queryFailure("summary", "", err).Error()}
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkpoints").Scan(&s.TotalCheckpoints); err != nil {
		return Summary{Connected: false, Error: i.queryFailure("summary", "", err).Error()}
	}

	var latest string
	err = db.QueryRowContext(ctx, `
		SELECT thread_id
		FROM checkpoints
		GROUP BY thread_id
		ORDER BY MAX(checkpoint_id) DESC
		LIMIT 1`).Scan(&latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Summary{Connected: false, Error: i.queryFailure("summary", "", err).Error()}
	default:
		s.LatestProjectID = ProjectID(latest)
	}

	s.Connected = true
	return s
}

func (i *Inspector) queryFailure(op, threadID string, err error) error {
	storeErr := &internal.CheckpointStoreError{Op: op, ThreadID: threadID, Err: err}
	internal.LogWarn("%v", storeErr)
	return storeErr
}
