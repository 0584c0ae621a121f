package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL on %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			dir TEXT,
			kind TEXT NOT NULL,
			exit_code INTEGER,
			stdout TEXT,
			stderr TEXT,
			value TEXT,
			error TEXT,
			discarded INTEGER,
			started_ns INTEGER,
			duration_ns INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts or replaces a record.
func (s *SQLiteStore) Save(rec *Record) error {
	stdout, err := json.Marshal(rec.Stdout)
	if err != nil {
		return fmt.Errorf("marshalling run %s: %w", rec.ID, err)
	}
	stderr, err := json.Marshal(rec.Stderr)
	if err != nil {
		return fmt.Errorf("marshalling run %s: %w", rec.ID, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs
		(id, command, dir, kind, exit_code, stdout, stderr, value, error, discarded, started_ns, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Command, rec.Dir, string(rec.Kind), rec.ExitCode,
		string(stdout), string(stderr), rec.Value, rec.Error, rec.Discarded,
		rec.Started.UnixNano(), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, command, dir, kind, exit_code, stdout, stderr, value, error, discarded, started_ns, duration_ns FROM runs`

// Load reads one record.
func (s *SQLiteStore) Load(runID string) (*Record, error) {
	row := s.db.QueryRow(selectRuns+` WHERE id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return rec, nil
}

// List returns records ordered by start time, most recent first.
func (s *SQLiteStore) List(limit int) ([]*Record, error) {
	query := selectRuns + ` ORDER BY started_ns DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec            Record
		dir, value     sql.NullString
		errText        sql.NullString
		kind           string
		stdout, stderr string
		started        int64
		duration       int64
	)
	err := row.Scan(&rec.ID, &rec.Command, &dir, &kind, &rec.ExitCode,
		&stdout, &stderr, &value, &errText, &rec.Discarded, &started, &duration)
	if err != nil {
		return nil, err
	}
	rec.Dir = dir.String
	rec.Kind = Kind(kind)
	rec.Value = value.String
	rec.Error = errText.String
	rec.Duration = time.Duration(duration)
	rec.Started = time.Unix(0, started)
	if err := json.Unmarshal([]byte(stdout), &rec.Stdout); err != nil {
		return nil, fmt.Errorf("decoding stdout: %w", err)
	}
	if err := json.Unmarshal([]byte(stderr), &rec.Stderr); err != nil {
		return nil, fmt.Errorf("decoding stderr: %w", err)
	}
	return &rec, nil
}
