// Package journal keeps a SQLite history of operations and device
// connect/disconnect events.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/notify"
	"DevPanel/pkg/types"
)

const schemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS operations (
    run_id TEXT PRIMARY KEY,
    platform TEXT NOT NULL,
    slot TEXT NOT NULL DEFAULT '',
    operation TEXT NOT NULL DEFAULT '',
    device_id TEXT NOT NULL DEFAULT '',
    command TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL DEFAULT 0,
    exit_code INTEGER NOT NULL DEFAULT 0,
    cancelled INTEGER NOT NULL DEFAULT 0,
    failure TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_operations_device ON operations(device_id, started_at DESC);

CREATE TABLE IF NOT EXISTS device_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    platform TEXT NOT NULL,
    device_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    event TEXT NOT NULL,
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_device_events_device ON device_events(device_id, at DESC);
`

// Device event names
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Operation is one row of the operations table
type Operation struct {
	RunID     string            `json:"runId"`
	Platform  string            `json:"platform"`
	Slot      string            `json:"slot,omitempty"`
	Operation string            `json:"operation,omitempty"`
	DeviceID  string            `json:"deviceId"`
	Command   string            `json:"command,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt,omitempty"`
	ExitCode  int               `json:"exitCode"`
	Cancelled bool              `json:"cancelled"`
	Failure   types.FailureKind `json:"failure,omitempty"`
	Detail    string            `json:"detail,omitempty"`
}

// Running reports whether no completion was recorded yet
func (o Operation) Running() bool { return o.EndedAt.IsZero() }

// DeviceEvent is one row of the device_events table
type DeviceEvent struct {
	Platform string    `json:"platform"`
	DeviceID string    `json:"deviceId"`
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Event    string    `json:"event"`
	At       time.Time `json:"at"`
}

type writeFn func(db *sql.DB) error

// Journal records notifications on a background writer so observers never
// wait on disk.
type Journal struct {
	db     *sql.DB
	dbPath string

	writes chan writeFn
	wg     sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Open creates or opens <dataDir>/journal.db
func Open(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "journal.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	j := &Journal{
		db:     db,
		dbPath: dbPath,
		writes: make(chan writeFn, 1024),
	}
	j.wg.Add(1)
	go j.writer()

	logger.LogInfo("journal").Str("path", dbPath).Msg("Journal opened")
	return j, nil
}

// Path returns the database file
func (j *Journal) Path() string { return j.dbPath }

func (j *Journal) writer() {
	defer j.wg.Done()
	for w := range j.writes {
		if err := w(j.db); err != nil {
			logger.LogError("journal").Err(err).Msg("Journal write failed")
		}
	}
}

// enqueue hands w to the writer. When the writer is behind the record is
// dropped rather than blocking the caller.
func (j *Journal) enqueue(w writeFn) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.writes <- w:
	default:
		logger.LogWarn("journal").Msg("Journal queue full, dropping record")
	}
}

// Flush waits until everything queued so far has been written
func (j *Journal) Flush() {
	done := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return
	}
	j.writes <- func(*sql.DB) error { close(done); return nil }
	j.mu.RUnlock()
	<-done
}

// Close drains pending writes and closes the database
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.writes)
		j.mu.Unlock()

		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

// Notify implements notify.Observer
func (j *Journal) Notify(n notify.Notification) {
	at := n.Time
	if at.IsZero() {
		at = time.Now()
	}
	switch n.Kind {
	case notify.OperationStarted:
		j.enqueue(func(db *sql.DB) error {
			_, err := db.Exec(`INSERT OR REPLACE INTO operations
				(run_id, platform, slot, operation, device_id, command, started_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				n.RunID, n.Platform, string(n.Slot), n.Operation, n.DeviceID, n.Detail, at.UnixMilli())
			return err
		})

	case notify.OperationCompleted:
		j.enqueue(func(db *sql.DB) error {
			res, err := db.Exec(`UPDATE operations
				SET ended_at = ?, exit_code = ?, cancelled = ?, failure = ?, detail = ?
				WHERE run_id = ?`,
				at.UnixMilli(), n.ExitCode, boolInt(n.Cancelled), string(n.Failure), n.Detail, n.RunID)
			if err != nil {
				return err
			}
			if rows, _ := res.RowsAffected(); rows > 0 {
				return nil
			}
			_, err = db.Exec(`INSERT INTO operations
				(run_id, platform, slot, operation, device_id, started_at, ended_at, exit_code, cancelled, failure, detail)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				n.RunID, n.Platform, string(n.Slot), n.Operation, n.DeviceID, at.UnixMilli(), at.UnixMilli(),
				n.ExitCode, boolInt(n.Cancelled), string(n.Failure), n.Detail)
			return err
		})

	case notify.Error:
		// rejected requests never got a run id
		if n.Slot == "" && n.Operation == "" {
			return
		}
		id := uuid.New().String()
		j.enqueue(func(db *sql.DB) error {
			_, err := db.Exec(`INSERT INTO operations
				(run_id, platform, slot, operation, device_id, started_at, ended_at, failure, detail)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, n.Platform, string(n.Slot), n.Operation, n.DeviceID, at.UnixMilli(), at.UnixMilli(), string(n.Failure), n.Detail)
			return err
		})

	case notify.DeviceListChanged:
		if len(n.Added) == 0 && len(n.Removed) == 0 {
			return
		}
		j.enqueue(func(db *sql.DB) error {
			tx, err := db.Begin()
			if err != nil {
				return err
			}
			stmt, err := tx.Prepare(`INSERT INTO device_events (platform, device_id, name, model, event, at) VALUES (?, ?, ?, ?, ?, ?)`)
			if err != nil {
				tx.Rollback()
				return err
			}
			defer stmt.Close()
			for _, d := range n.Added {
				if _, err := stmt.Exec(n.Platform, d.ID, d.Name, d.Model, EventConnected, at.UnixMilli()); err != nil {
					tx.Rollback()
					return err
				}
			}
			for _, d := range n.Removed {
				if _, err := stmt.Exec(n.Platform, d.ID, d.Name, d.Model, EventDisconnected, at.UnixMilli()); err != nil {
					tx.Rollback()
					return err
				}
			}
			return tx.Commit()
		})
	}
}

// RecentOperations returns the newest operations first
func (j *Journal) RecentOperations(limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`SELECT run_id, platform, slot, operation, device_id, command,
		started_at, ended_at, exit_code, cancelled, failure, detail
		FROM operations ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var (
			op             Operation
			started, ended int64
			cancelled      int
			failure        string
		)
		if err := rows.Scan(&op.RunID, &op.Platform, &op.Slot, &op.Operation, &op.DeviceID, &op.Command,
			&started, &ended, &op.ExitCode, &cancelled, &failure, &op.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.StartedAt = time.UnixMilli(started)
		if ended > 0 {
			op.EndedAt = time.UnixMilli(ended)
		}
		op.Cancelled = cancelled != 0
		op.Failure = types.FailureKind(failure)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// DeviceHistory returns connect/disconnect events for one device, newest
// first. An empty deviceID returns events for all devices.
func (j *Journal) DeviceHistory(deviceID string, limit int) ([]DeviceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT platform, device_id, name, model, event, at FROM device_events`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query device events: %w", err)
	}
	defer rows.Close()

	var events []DeviceEvent
	for rows.Next() {
		var (
			ev DeviceEvent
			at int64
		)
		if err := rows.Scan(&ev.Platform, &ev.DeviceID, &ev.Name, &ev.Model, &ev.Event, &at); err != nil {
			return nil, fmt.Errorf("failed to scan device event: %w", err)
		}
		ev.At = time.UnixMilli(at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Prune deletes records older than maxAge and returns how many rows went
func (j *Journal) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	var total int64
	for _, q := range []string{
		`DELETE FROM operations WHERE started_at < ?`,
		`DELETE FROM device_events WHERE at < ?`,
	} {
		res, err := j.db.Exec(q, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune journal: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		logger.LogInfo("journal").Int64("rows", total).Dur("maxAge", maxAge).Msg("Journal pruned")
	}
	return total, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
