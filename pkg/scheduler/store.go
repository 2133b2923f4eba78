package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

// JobStore persists the job table. Implementations must be safe for
// concurrent use; Service serializes its own access but a store may also
// be inspected directly by an admin tool.
type JobStore interface {
	Load(ctx context.Context) ([]Job, error)
	Upsert(ctx context.Context, job Job) error
	Delete(ctx context.Context, id string) error
	Close() error
}

const schedulerSchema = `
CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	args TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	delete_after_run INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL,
	schedule TEXT NOT NULL,
	state TEXT NOT NULL
);
`

// SQLiteJobStore is the durable JobStore backing the config backup
// engine's recurring snapshot jobs.
type SQLiteJobStore struct {
	db *sql.DB
}

// OpenSQLiteJobStore opens (creating if needed) a scheduler job table at path.
func OpenSQLiteJobStore(path string) (*SQLiteJobStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "open scheduler store")
	}
	if _, err := db.Exec(schedulerSchema); err != nil {
		db.Close()
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "apply scheduler schema")
	}
	return &SQLiteJobStore{db: db}, nil
}

func (s *SQLiteJobStore) Load(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, kind, args, enabled, delete_after_run, created_at_ms, updated_at_ms, schedule, state FROM scheduled_jobs`)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "load scheduled jobs")
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var argsJSON, scheduleJSON, stateJSON sql.NullString
		var enabled, deleteAfterRun int
		if err := rows.Scan(&job.ID, &job.Name, &job.Kind, &argsJSON, &enabled, &deleteAfterRun,
			&job.CreatedAtMs, &job.UpdatedAtMs, &scheduleJSON, &stateJSON); err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "scan scheduled job")
		}
		job.Enabled = enabled != 0
		job.DeleteAfterRun = deleteAfterRun != 0
		if argsJSON.Valid && argsJSON.String != "" {
			_ = json.Unmarshal([]byte(argsJSON.String), &job.Args)
		}
		if scheduleJSON.Valid {
			_ = json.Unmarshal([]byte(scheduleJSON.String), &job.Schedule)
		}
		if stateJSON.Valid {
			_ = json.Unmarshal([]byte(stateJSON.String), &job.State)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteJobStore) Upsert(ctx context.Context, job Job) error {
	argsJSON, err := json.Marshal(job.Args)
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBadArgument, err, "marshal job args")
	}
	scheduleJSON, err := json.Marshal(job.Schedule)
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBadArgument, err, "marshal job schedule")
	}
	stateJSON, err := json.Marshal(job.State)
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBadArgument, err, "marshal job state")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, name, kind, args, enabled, delete_after_run, created_at_ms, updated_at_ms, schedule, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, kind=excluded.kind, args=excluded.args,
			enabled=excluded.enabled, delete_after_run=excluded.delete_after_run,
			updated_at_ms=excluded.updated_at_ms, schedule=excluded.schedule, state=excluded.state
	`, job.ID, job.Name, job.Kind, string(argsJSON), boolToInt(job.Enabled), boolToInt(job.DeleteAfterRun),
		job.CreatedAtMs, job.UpdatedAtMs, string(scheduleJSON), string(stateJSON))
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "upsert scheduled job")
	}
	return nil
}

func (s *SQLiteJobStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "delete scheduled job")
	}
	return nil
}

func (s *SQLiteJobStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
