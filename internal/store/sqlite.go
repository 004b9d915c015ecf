package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seantiz/qdevice/internal/model"

	_ "modernc.org/sqlite"
)

const createJobHistoryTable = `
CREATE TABLE IF NOT EXISTS job_history (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id         INTEGER NOT NULL,
    session_id     TEXT NOT NULL,
    status         INTEGER NOT NULL,
    program_format INTEGER NOT NULL,
    shots          INTEGER NOT NULL,
    qubits         INTEGER NOT NULL,
    counts         TEXT,
    error          TEXT NOT NULL DEFAULT '',
    duration_ms    INTEGER,
    created_at     DATETIME NOT NULL,
    started_at     DATETIME,
    finished_at    DATETIME NOT NULL
)`

const createJobHistoryIndex = `CREATE INDEX IF NOT EXISTS job_history_job_id ON job_history (job_id)`

const historyColumns = `job_id, session_id, status, program_format, shots, qubits,
			counts, error, duration_ms, created_at, started_at, finished_at`

// ErrNotFound is returned when no history record exists for a job.
var ErrNotFound = errors.New("job record not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createJobHistoryTable, createJobHistoryIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create job history: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends a finished job to the history. It implements the engine's
// recorder hook.
func (s *SQLiteStore) Record(ctx context.Context, rec model.JobRecord) error {
	var counts sql.NullString
	if rec.Counts != nil {
		b, err := json.Marshal(rec.Counts)
		if err != nil {
			return fmt.Errorf("encode counts: %w", err)
		}
		counts = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.SessionID, int32(rec.Status), int32(rec.Format), int64(rec.Shots), rec.Qubits,
		counts, rec.Error, rec.DurationMS, rec.CreatedAt, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// GetRecord returns the most recent history record for jobID.
func (s *SQLiteStore) GetRecord(ctx context.Context, jobID int64) (*model.JobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM job_history WHERE job_id = ? ORDER BY seq DESC LIMIT 1`, jobID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job record: %w", err)
	}
	return rec, nil
}

// ListHistory returns a page of records, newest first, along with the total
// number of records.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count job history: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM job_history ORDER BY seq DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list job history: %w", err)
	}
	defer rows.Close()

	var recs []*model.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate job history: %w", err)
	}

	return recs, total, nil
}

// GetHistoryStats aggregates the whole history.
func (s *SQLiteStore) GetHistoryStats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{
		CountByStatus: make(map[string]int),
		CountByFormat: make(map[string]int),
	}

	var avg sql.NullFloat64
	var shots sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(shots), AVG(duration_ms),
			COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0)
		FROM job_history`,
	).Scan(&stats.Total, &shots, &avg, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("aggregate job history: %w", err)
	}
	stats.TotalShots = uint64(shots.Int64)
	stats.AvgDurationMS = avg.Float64

	if err := s.countBy(ctx, "status", func(v int32, n int) {
		stats.CountByStatus[model.JobStatus(v).String()] = n
	}); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "program_format", func(v int32, n int) {
		stats.CountByFormat[model.ProgramFormat(v).String()] = n
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, add func(v int32, n int)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM job_history GROUP BY `+column,
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v int32
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		add(v, n)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.JobRecord, error) {
	var (
		rec            model.JobRecord
		status, format int32
		shots          int64
		counts         sql.NullString
		duration       sql.NullInt64
		startedAt      sql.NullTime
	)
	if err := sc.Scan(
		&rec.JobID, &rec.SessionID, &status, &format, &shots, &rec.Qubits,
		&counts, &rec.Error, &duration, &rec.CreatedAt, &startedAt, &rec.FinishedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = model.JobStatus(status)
	rec.Format = model.ProgramFormat(format)
	rec.Shots = uint64(shots)
	if counts.Valid {
		if err := json.Unmarshal([]byte(counts.String), &rec.Counts); err != nil {
			return nil, fmt.Errorf("decode counts: %w", err)
		}
	}
	if duration.Valid {
		ms := int(duration.Int64)
		rec.DurationMS = &ms
	}
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	return &rec, nil
}
