package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// ErrNoRuns is returned by OpenLatest when the database has no
// recorded runs to inspect.
var ErrNoRuns = errors.New("audit database has no recorded runs")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS merges (
	run_id TEXT NOT NULL,
	session TEXT NOT NULL,
	version INTEGER NOT NULL,
	cookie_count INTEGER NOT NULL,
	merged_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE TABLE IF NOT EXISTS clears (
	run_id TEXT NOT NULL,
	session TEXT NOT NULL,
	version INTEGER NOT NULL,
	renewal INTEGER NOT NULL,
	cleared_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE TABLE IF NOT EXISTS cookies (
	run_id TEXT NOT NULL,
	session TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	domain TEXT NOT NULL,
	path TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, session, domain, path, name)
);
CREATE INDEX IF NOT EXISTS idx_merges_session ON merges(session);
CREATE INDEX IF NOT EXISTS idx_clears_session ON clears(session);
`

// Store persists session activity to a SQLite database so sessions can
// be inspected after a crawl finishes. Every Store instance belongs to
// exactly one run, identified by a fresh uuid.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the audit database at dbPath and registers a
// new run. The database is shared across runs; rows are keyed by the
// run id so successive crawls do not clobber each other.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot initialize audit schema: %w", err)
	}
	s := &Store{db: db, runID: uuid.NewString()}
	_, err = db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		s.runID, time.Now().Unix(),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot register run: %w", err)
	}
	return s, nil
}

// OpenLatest opens the audit database positioned on the most recent
// recorded run, without registering a new one. Used for inspecting a
// finished crawl.
func OpenLatest(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot initialize audit schema: %w", err)
	}
	var runID string
	err = db.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		db.Close()
		return nil, ErrNoRuns
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot find latest run: %w", err)
	}
	return &Store{db: db, runID: runID}, nil
}

// RunID returns the identifier of the run this store records under.
func (s *Store) RunID() string {
	return s.runID
}

// RecordMerge logs an accepted cookie merge and upserts the merged
// cookies so the cookies table always reflects the latest state of
// each session within the run.
func (s *Store) RecordMerge(id sesslib.SessionID, version int64, cookies []sesslib.Cookie) error {
	now := time.Now().Unix()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error: cannot begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO merges (run_id, session, version, cookie_count, merged_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, string(id), version, len(cookies), now,
	)
	if err != nil {
		return fmt.Errorf("error: cannot record merge: %w", err)
	}
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		_, err = tx.Exec(
			`INSERT INTO cookies (run_id, session, name, value, domain, path, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, session, domain, path, name)
			 DO UPDATE SET value = excluded.value, recorded_at = excluded.recorded_at`,
			s.runID, string(id), c.Name, c.Value, c.Domain, c.Path, now,
		)
		if err != nil {
			return fmt.Errorf("error: cannot record cookie %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// RecordClear logs a session clear and drops the session's cookie rows
// for this run, mirroring what the in-memory jar does.
func (s *Store) RecordClear(id sesslib.SessionID, version int64, renewal bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error: cannot begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	renewalFlag := 0
	if renewal {
		renewalFlag = 1
	}
	_, err = tx.Exec(
		`INSERT INTO clears (run_id, session, version, renewal, cleared_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, string(id), version, renewalFlag, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("error: cannot record clear: %w", err)
	}
	_, err = tx.Exec(
		`DELETE FROM cookies WHERE run_id = ? AND session = ?`,
		s.runID, string(id),
	)
	if err != nil {
		return fmt.Errorf("error: cannot drop cleared cookies: %w", err)
	}
	return tx.Commit()
}

// SessionSummary aggregates a session's recorded activity within a run.
type SessionSummary struct {
	Session    string `json:"session"`
	Merges     int64  `json:"merges"`
	Clears     int64  `json:"clears"`
	LastActive int64  `json:"last_active"`
}

// Sessions lists every session seen in this run with merge and clear
// counts, most recently active first.
func (s *Store) Sessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT session,
		       SUM(is_merge) AS merges,
		       SUM(is_clear) AS clears,
		       MAX(at) AS last_active
		FROM (
			SELECT session, 1 AS is_merge, 0 AS is_clear, merged_at AS at
			FROM merges WHERE run_id = ?
			UNION ALL
			SELECT session, 0, 1, cleared_at FROM clears WHERE run_id = ?
		)
		GROUP BY session
		ORDER BY last_active DESC, session ASC
	`, s.runID, s.runID)
	if err != nil {
		return nil, fmt.Errorf("error: cannot list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Session, &sum.Merges, &sum.Clears, &sum.LastActive); err != nil {
			return nil, fmt.Errorf("error: cannot scan session row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Cookies returns the latest recorded cookies of a session within this
// run, ordered the way jars order them.
func (s *Store) Cookies(id sesslib.SessionID) ([]sesslib.Cookie, error) {
	rows, err := s.db.Query(`
		SELECT name, value, domain, path
		FROM cookies
		WHERE run_id = ? AND session = ?
		ORDER BY domain ASC, path ASC, name ASC
	`, s.runID, string(id))
	if err != nil {
		return nil, fmt.Errorf("error: cannot query cookies: %w", err)
	}
	defer rows.Close()

	var out []sesslib.Cookie
	for rows.Next() {
		var c sesslib.Cookie
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path); err != nil {
			return nil, fmt.Errorf("error: cannot scan cookie row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
