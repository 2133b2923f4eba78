package configbackup

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS config_systems (
	system_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	backup_frequency_s INTEGER NOT NULL DEFAULT 3600,
	watch_path TEXT,
	metadata TEXT
);
CREATE TABLE IF NOT EXISTS config_snapshots (
	id TEXT PRIMARY KEY,
	system_id TEXT NOT NULL,
	config_type TEXT NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	file_path TEXT,
	agent_id TEXT,
	timestamp_ms INTEGER NOT NULL,
	size INTEGER NOT NULL,
	tags TEXT
);
CREATE INDEX IF NOT EXISTS idx_snapshots_system_ts ON config_snapshots(system_id, timestamp_ms DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON config_snapshots(system_id, content_hash);
CREATE TABLE IF NOT EXISTS config_diffs (
	id TEXT PRIMARY KEY,
	system_id TEXT NOT NULL,
	snapshot_before TEXT NOT NULL,
	snapshot_after TEXT NOT NULL,
	diff_text TEXT NOT NULL,
	lines_added INTEGER NOT NULL,
	lines_removed INTEGER NOT NULL,
	change_type TEXT NOT NULL,
	risk_score REAL NOT NULL,
	severity TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diffs_system_ts ON config_diffs(system_id, created_at_ms DESC);
CREATE TABLE IF NOT EXISTS config_alerts (
	id TEXT PRIMARY KEY,
	system_id TEXT NOT NULL,
	diff_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	drift_type TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL,
	acknowledged_at_ms INTEGER,
	UNIQUE(system_id, diff_id)
);
`

type sqlStore struct {
	db *sql.DB
}

func openStore(path string) (*sqlStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "open config backup store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "apply config backup schema")
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) upsertSystem(ctx context.Context, sys ConfigSystem) error {
	metadata, _ := json.Marshal(sys.Metadata)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_systems (system_id, name, type, backup_frequency_s, watch_path, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(system_id) DO UPDATE SET name=excluded.name, type=excluded.type,
			backup_frequency_s=excluded.backup_frequency_s, watch_path=excluded.watch_path, metadata=excluded.metadata
	`, sys.SystemID, sys.Name, sys.Type, sys.BackupFrequencyS, sys.WatchPath, string(metadata))
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "upsert config system")
	}
	return nil
}

func (s *sqlStore) getSystem(ctx context.Context, systemID string) (*ConfigSystem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT system_id, name, type, backup_frequency_s, watch_path, metadata FROM config_systems WHERE system_id = ?`, systemID)
	var sys ConfigSystem
	var watchPath, metadata sql.NullString
	if err := row.Scan(&sys.SystemID, &sys.Name, &sys.Type, &sys.BackupFrequencyS, &watchPath, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "get config system")
	}
	sys.WatchPath = watchPath.String
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &sys.Metadata)
	}
	return &sys, nil
}

func (s *sqlStore) listSystems(ctx context.Context) ([]ConfigSystem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT system_id, name, type, backup_frequency_s, watch_path, metadata FROM config_systems`)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "list config systems")
	}
	defer rows.Close()
	var out []ConfigSystem
	for rows.Next() {
		var sys ConfigSystem
		var watchPath, metadata sql.NullString
		if err := rows.Scan(&sys.SystemID, &sys.Name, &sys.Type, &sys.BackupFrequencyS, &watchPath, &metadata); err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "scan config system")
		}
		sys.WatchPath = watchPath.String
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &sys.Metadata)
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

func (s *sqlStore) latestSnapshot(ctx context.Context, systemID string) (*ConfigSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, system_id, config_type, content, content_hash, file_path, agent_id, timestamp_ms, size, tags
		FROM config_snapshots WHERE system_id = ? ORDER BY timestamp_ms DESC LIMIT 1`, systemID)
	return scanSnapshot(row)
}

func (s *sqlStore) insertSnapshot(ctx context.Context, snap ConfigSnapshot) error {
	tags, _ := json.Marshal(snap.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_snapshots (id, system_id, config_type, content, content_hash, file_path, agent_id, timestamp_ms, size, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.SystemID, snap.ConfigType, snap.Content, snap.ContentHash, snap.FilePath, snap.AgentID,
		snap.Timestamp.UnixMilli(), snap.Size, string(tags))
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "insert config snapshot")
	}
	return nil
}

func (s *sqlStore) getSnapshot(ctx context.Context, id string) (*ConfigSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, system_id, config_type, content, content_hash, file_path, agent_id, timestamp_ms, size, tags
		FROM config_snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*ConfigSnapshot, error) {
	var snap ConfigSnapshot
	var filePath, agentID, tags sql.NullString
	var tsMs int64
	if err := row.Scan(&snap.ID, &snap.SystemID, &snap.ConfigType, &snap.Content, &snap.ContentHash,
		&filePath, &agentID, &tsMs, &snap.Size, &tags); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "scan config snapshot")
	}
	snap.FilePath = filePath.String
	snap.AgentID = agentID.String
	snap.Timestamp = time.UnixMilli(tsMs)
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &snap.Tags)
	}
	return &snap, nil
}

func (s *sqlStore) insertDiff(ctx context.Context, d ConfigDiff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_diffs (id, system_id, snapshot_before, snapshot_after, diff_text, lines_added, lines_removed, change_type, risk_score, severity, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.SystemID, d.SnapshotBefore, d.SnapshotAfter, d.DiffText, d.LinesAdded, d.LinesRemoved,
		d.ChangeType, d.RiskScore, d.Severity, d.CreatedAt.UnixMilli())
	if err != nil {
		return hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "insert config diff")
	}
	return nil
}

func (s *sqlStore) listDiffsSince(ctx context.Context, systemID string, sinceMs int64, minScore float64) ([]ConfigDiff, error) {
	query := `SELECT id, system_id, snapshot_before, snapshot_after, diff_text, lines_added, lines_removed, change_type, risk_score, severity, created_at_ms
		FROM config_diffs WHERE created_at_ms >= ? AND risk_score >= ?`
	args := []any{sinceMs, minScore}
	if systemID != "" {
		query += ` AND system_id = ?`
		args = append(args, systemID)
	}
	query += ` ORDER BY risk_score DESC, created_at_ms DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "list config diffs")
	}
	defer rows.Close()
	var out []ConfigDiff
	for rows.Next() {
		var d ConfigDiff
		var createdMs int64
		if err := rows.Scan(&d.ID, &d.SystemID, &d.SnapshotBefore, &d.SnapshotAfter, &d.DiffText,
			&d.LinesAdded, &d.LinesRemoved, &d.ChangeType, &d.RiskScore, &d.Severity, &createdMs); err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "scan config diff")
		}
		d.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) insertAlertIfAbsent(ctx context.Context, alert ConfigAlert) (string, error) {
	existing := s.db.QueryRowContext(ctx, `SELECT id FROM config_alerts WHERE system_id = ? AND diff_id = ?`, alert.SystemID, alert.DiffID)
	var id string
	if err := existing.Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return "", hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "check existing alert")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_alerts (id, system_id, diff_id, severity, drift_type, description, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.SystemID, alert.DiffID, alert.Severity, alert.DriftType, alert.Description, alert.CreatedAt.UnixMilli())
	if err != nil {
		return "", hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "insert config alert")
	}
	return alert.ID, nil
}

func (s *sqlStore) listAlerts(ctx context.Context, systemID string) ([]ConfigAlert, error) {
	query := `SELECT id, system_id, diff_id, severity, drift_type, description, created_at_ms, acknowledged_at_ms FROM config_alerts`
	args := []any{}
	if systemID != "" {
		query += ` WHERE system_id = ?`
		args = append(args, systemID)
	}
	query += ` ORDER BY created_at_ms DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "list config alerts")
	}
	defer rows.Close()
	var out []ConfigAlert
	for rows.Next() {
		var a ConfigAlert
		var createdMs int64
		var ackMs sql.NullInt64
		if err := rows.Scan(&a.ID, &a.SystemID, &a.DiffID, &a.Severity, &a.DriftType, &a.Description, &createdMs, &ackMs); err != nil {
			return nil, hiveerr.Wrap(hiveerr.KindBackendUnavailable, err, "scan config alert")
		}
		a.CreatedAt = time.UnixMilli(createdMs)
		if ackMs.Valid {
			t := time.UnixMilli(ackMs.Int64)
			a.AcknowledgedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqlStore) close() error {
	return s.db.Close()
}
