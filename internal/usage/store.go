package usage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS route_attempts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id     TEXT NOT NULL,
    attempt        INTEGER NOT NULL,
    source         TEXT NOT NULL,
    model          TEXT NOT NULL DEFAULT '',
    archetype      TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    started_at     TEXT NOT NULL,
    completed_at   TEXT NOT NULL,
    duration_ms    INTEGER NOT NULL,
    request_bytes  INTEGER NOT NULL DEFAULT 0,
    response_bytes INTEGER NOT NULL DEFAULT 0,
    error_message  TEXT NOT NULL DEFAULT '',
    synced         INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE (request_id, attempt)
);
CREATE INDEX IF NOT EXISTS idx_route_attempts_synced ON route_attempts(synced) WHERE synced = 0;
`

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store provides SQLite-backed storage for route attempt records.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the usage database at dbPath and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads during sync
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert stores an attempt record. Duplicate (request_id, attempt) pairs are
// silently ignored.
func (s *Store) Insert(r Record) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO route_attempts (
			request_id, attempt, source, model, archetype, status,
			started_at, completed_at, duration_ms,
			request_bytes, response_bytes, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.Attempt, r.Source, r.Model, r.Archetype, r.Status,
		r.StartedAt.UTC().Format(timeLayout), r.CompletedAt.UTC().Format(timeLayout), r.DurationMs,
		r.RequestBytes, r.ResponseBytes, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Record implements the router's attempt recorder.
func (s *Store) Record(r Record) error {
	return s.Insert(r)
}

const attemptColumns = `
	a.id, a.request_id, a.attempt, a.source, a.model, a.archetype, a.status,
	a.started_at, a.completed_at, a.duration_ms,
	a.request_bytes, a.response_bytes, a.error_message`

// QueryUnsynced returns up to limit unsynced attempts in insertion order.
func (s *Store) QueryUnsynced(limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT`+attemptColumns+`
		FROM route_attempts a
		WHERE a.synced = 0
		ORDER BY a.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced: %w", err)
	}
	return scanRecords(rows)
}

// PendingRequests returns up to limit requests with unsynced attempts, oldest
// first, each carrying all of its unsynced attempts in attempt order. A request
// whose latest attempt completed after settledBefore is left out, since its
// fallback chain may still be running.
func (s *Store) PendingRequests(limit int, settledBefore time.Time) ([]Request, error) {
	rows, err := s.db.Query(`
		WITH pending AS (
			SELECT request_id, MIN(id) AS first_id
			FROM route_attempts
			WHERE synced = 0
			GROUP BY request_id
			HAVING MAX(completed_at) <= ?
			ORDER BY first_id
			LIMIT ?
		)
		SELECT`+attemptColumns+`
		FROM route_attempts a
		JOIN pending p ON p.request_id = a.request_id
		WHERE a.synced = 0
		ORDER BY p.first_id ASC, a.attempt ASC`,
		settledBefore.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var requests []Request
	for _, r := range records {
		if n := len(requests); n > 0 && requests[n-1].ID == r.RequestID {
			requests[n-1].Attempts = append(requests[n-1].Attempts, r)
			continue
		}
		requests = append(requests, Request{ID: r.RequestID, Attempts: []Record{r}})
	}
	return requests, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var startedAt, completedAt string
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.Attempt, &r.Source, &r.Model, &r.Archetype, &r.Status,
			&startedAt, &completedAt, &r.DurationMs,
			&r.RequestBytes, &r.ResponseBytes, &r.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(timeLayout, completedAt); err == nil {
			r.CompletedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkSynced sets the synced flag to 1 for the given record IDs.
func (s *Store) MarkSynced(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE route_attempts SET synced = 1 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("mark synced id=%d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Totals returns the number of successful attempts per source across the
// whole history of the database.
func (s *Store) Totals() (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT source, COUNT(*)
		FROM route_attempts
		WHERE status = ?
		GROUP BY source`, StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		totals[source] = n
	}
	return totals, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
