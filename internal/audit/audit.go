// Package audit keeps a SQLite journal of every gated filesystem
// operation and every shell run. The journal is write-mostly; the query
// helpers exist for post-hoc inspection.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Journal records operations to a SQLite database. A nil *Journal is
// valid and records nothing, so callers never need to branch on whether
// auditing is enabled.
type Journal struct {
	db *sql.DB
}

// PatchRecord is one gated filesystem operation.
type PatchRecord struct {
	Timestamp   time.Time
	Kind        string
	Path        string
	Fingerprint string
	Decision    string // "approved", "denied", "remembered", "auto"
	Digest      string // xxhash of the resulting file content, empty for deletes
}

// ShellRecord is one executed shell command.
type ShellRecord struct {
	Timestamp time.Time
	Command   string
	Rewritten string
	Status    string // "completed", "timed_out", "backgrounded", "rejected", "canceled"
	ExitCode  int
	Duration  time.Duration
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patch_ops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		decision TEXT NOT NULL,
		digest TEXT
	);

	CREATE TABLE IF NOT EXISTS shell_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		command TEXT NOT NULL,
		rewritten TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_patch_ops_path ON patch_ops(path);
	CREATE INDEX IF NOT EXISTS idx_shell_runs_ts ON shell_runs(ts);
	`
	_, err := j.db.Exec(schema)
	return err
}

// ContentDigest returns a short stable digest of file content for the
// journal. Not a security hash; fingerprints carry the strong identity.
func ContentDigest(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// RecordPatch journals a gated filesystem operation.
func (j *Journal) RecordPatch(rec PatchRecord) error {
	if j == nil {
		return nil
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO patch_ops (ts, kind, path, fingerprint, decision, digest) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Kind, rec.Path, rec.Fingerprint, rec.Decision, rec.Digest,
	)
	return err
}

// RecordShell journals a shell run.
func (j *Journal) RecordShell(rec ShellRecord) error {
	if j == nil {
		return nil
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO shell_runs (ts, command, rewritten, status, exit_code, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Command, rec.Rewritten, rec.Status, rec.ExitCode, rec.Duration.Milliseconds(),
	)
	return err
}

// RecentPatches returns the most recent patch operations, newest first.
func (j *Journal) RecentPatches(limit int) ([]PatchRecord, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT ts, kind, path, fingerprint, decision, COALESCE(digest, '') FROM patch_ops ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PatchRecord
	for rows.Next() {
		var rec PatchRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Kind, &rec.Path, &rec.Fingerprint, &rec.Decision, &rec.Digest); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentShellRuns returns the most recent shell runs, newest first.
func (j *Journal) RecentShellRuns(limit int) ([]ShellRecord, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT ts, command, rewritten, status, exit_code, duration_ms FROM shell_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ShellRecord
	for rows.Next() {
		var rec ShellRecord
		var durationMS int64
		if err := rows.Scan(&rec.Timestamp, &rec.Command, &rec.Rewritten, &rec.Status, &rec.ExitCode, &durationMS); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
