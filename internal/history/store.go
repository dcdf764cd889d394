package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fftoolbox/internal/config"
)

// Record is one encode attempt as stored in the ledger.
type Record struct {
	ID              int64
	RunID           string
	Input           string
	Output          string
	PresetID        string
	Status          string
	Stage           string
	ErrorMessage    string
	InputBytes      int64
	OutputBytes     int64
	SavedPercent    float64
	DurationSeconds float64
	Passes          int
	Retried         bool
	CreatedAt       time.Time
}

// Store manages encode history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	defaultListLimit = 50

	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

// Open initializes or connects to the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const recordColumns = "id, run_id, input, output, preset_id, status, stage, error_message, input_bytes, output_bytes, saved_percent, duration_seconds, passes, retried, created_at"

// Append stores one finished attempt and returns its row id.
func (s *Store) Append(ctx context.Context, rec Record) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO encode_runs (
            run_id, input, output, preset_id, status, stage, error_message,
            input_bytes, output_bytes, saved_percent, duration_seconds,
            passes, retried, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Input,
		nullableString(rec.Output),
		rec.PresetID,
		rec.Status,
		nullableString(rec.Stage),
		nullableString(rec.ErrorMessage),
		rec.InputBytes,
		rec.OutputBytes,
		rec.SavedPercent,
		rec.DurationSeconds,
		rec.Passes,
		boolToInt(rec.Retried),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent records, newest first. A non-positive
// limit falls back to a sane default.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM encode_runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRun returns all records belonging to one invocation, in encode
// order.
func (s *Store) ListRun(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM encode_runs WHERE run_id = ? ORDER BY id ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Prune deletes everything but the newest keep records and reports how
// many rows were removed. A non-positive keep disables retention.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(
		ctx,
		"DELETE FROM encode_runs WHERE id NOT IN (SELECT id FROM encode_runs ORDER BY id DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec        Record
		output     sql.NullString
		stage      sql.NullString
		errMessage sql.NullString
		retried    sql.NullInt64
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Input,
		&output,
		&rec.PresetID,
		&rec.Status,
		&stage,
		&errMessage,
		&rec.InputBytes,
		&rec.OutputBytes,
		&rec.SavedPercent,
		&rec.DurationSeconds,
		&rec.Passes,
		&retried,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	rec.Output = output.String
	rec.Stage = stage.String
	rec.ErrorMessage = errMessage.String
	rec.Retried = retried.Valid && retried.Int64 != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

// execWithRetry retries writes that collide with a concurrent reader
// holding the WAL lock.
func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		res     sql.Result
		execErr error
	)
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		if execErr == nil || !isSQLiteBusy(execErr) {
			return res, execErr
		}
		select {
		case <-time.After(busyRetryBackoff << attempt):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, execErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
