package configbackup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
	"github.com/lancejames221b/agent-hivemind/pkg/scheduler"
)

// Engine is the config backup service: snapshot dedup, diffing, drift
// detection and alerting, and atomic restores.
type Engine struct {
	store *sqlStore
	risk  RiskConfig
	sched *scheduler.Service
	log   zerolog.Logger
	now   func() time.Time
}

// Open creates the engine's SQLite-backed store at path.
func Open(path string, risk RiskConfig, sched *scheduler.Service, log zerolog.Logger) (*Engine, error) {
	store, err := openStore(path)
	if err != nil {
		return nil, err
	}
	e := &Engine{store: store, risk: risk, sched: sched, log: log, now: time.Now}
	if sched != nil {
		sched.RegisterHandler("config_snapshot", e.runScheduledSnapshot)
	}
	return e, nil
}

func (e *Engine) Close() error { return e.store.close() }

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// RegisterSystem registers (or updates) a config system and, if a
// scheduler is attached, backup_frequency_s > 0 and watch_path is set,
// arms a recurring snapshot job for it.
func (e *Engine) RegisterSystem(ctx context.Context, sys ConfigSystem) error {
	if err := e.store.upsertSystem(ctx, sys); err != nil {
		return err
	}
	if e.sched != nil && sys.BackupFrequencyS > 0 && sys.WatchPath != "" {
		_, err := e.sched.Add(ctx, scheduler.JobCreate{
			Name: fmt.Sprintf("config-snapshot:%s", sys.SystemID),
			Kind: "config_snapshot",
			Args: map[string]any{"system_id": sys.SystemID},
			Schedule: scheduler.Schedule{
				Kind:       scheduler.KindEvery,
				IntervalMs: int64(sys.BackupFrequencyS) * 1000,
			},
		})
		if err != nil {
			e.log.Warn().Err(err).Str("system_id", sys.SystemID).Msg("failed to arm snapshot schedule")
		}
	}
	return nil
}

// ListSystems returns every registered config system.
func (e *Engine) ListSystems(ctx context.Context) ([]ConfigSystem, error) {
	return e.store.listSystems(ctx)
}

func (e *Engine) runScheduledSnapshot(ctx context.Context, job scheduler.Job) (string, string) {
	systemID, _ := job.Args["system_id"].(string)
	sys, err := e.store.getSystem(ctx, systemID)
	if err != nil || sys == nil || sys.WatchPath == "" {
		return "skipped", "system not found or has no watch_path"
	}
	content, err := os.ReadFile(sys.WatchPath)
	if err != nil {
		return "error", err.Error()
	}
	if _, err := e.CreateSnapshot(ctx, systemID, sys.Type, string(content), sys.WatchPath, "scheduler", []string{"scheduled"}); err != nil {
		return "error", err.Error()
	}
	return "ok", ""
}

// CreateSnapshot stores a new snapshot, deduplicating against the
// system's most recent one by content hash, and synchronously computes
// a ConfigDiff (and, for high+ severity, an alert) against the previous
// snapshot.
func (e *Engine) CreateSnapshot(ctx context.Context, systemID, configType, content, filePath, agentID string, tags []string) (string, error) {
	if systemID == "" || content == "" {
		return "", hiveerr.New(hiveerr.KindBadArgument, "system_id and content are required")
	}
	hash := contentHash(content)

	previous, err := e.store.latestSnapshot(ctx, systemID)
	if err != nil {
		return "", err
	}
	if previous != nil && previous.ContentHash == hash {
		return previous.ID, nil
	}

	snap := ConfigSnapshot{
		ID:          uuid.NewString(),
		SystemID:    systemID,
		ConfigType:  configType,
		Content:     content,
		ContentHash: hash,
		FilePath:    filePath,
		AgentID:     agentID,
		Timestamp:   e.now(),
		Size:        len(content),
		Tags:        tags,
	}
	if err := e.store.insertSnapshot(ctx, snap); err != nil {
		return "", err
	}

	if previous != nil {
		diffText, added, removed, score, changeType := computeDiff(*previous, snap, e.risk)
		severity := SeverityForScore(score)
		diff := ConfigDiff{
			ID:             uuid.NewString(),
			SystemID:       systemID,
			SnapshotBefore: previous.ID,
			SnapshotAfter:  snap.ID,
			DiffText:       diffText,
			LinesAdded:     added,
			LinesRemoved:   removed,
			ChangeType:     changeType,
			RiskScore:      score,
			Severity:       severity,
			CreatedAt:      e.now(),
		}
		if err := e.store.insertDiff(ctx, diff); err != nil {
			return "", err
		}
		if severity == "high" || severity == "critical" {
			alert := ConfigAlert{
				ID:          uuid.NewString(),
				SystemID:    systemID,
				DiffID:      diff.ID,
				Severity:    severity,
				DriftType:   changeType,
				Description: fmt.Sprintf("%s drift detected in %s (%s): +%d/-%d lines", severity, systemID, changeType, added, removed),
				CreatedAt:   e.now(),
			}
			if _, err := e.store.insertAlertIfAbsent(ctx, alert); err != nil {
				e.log.Warn().Err(err).Str("system_id", systemID).Msg("failed to create drift alert")
			}
		}
	}

	return snap.ID, nil
}

// DetectDrift returns diffs in the window whose risk score is at or
// above DefaultDriftThreshold, as caller-facing maps sorted by severity
// then timestamp (the store query already sorts by score desc, ts desc).
func (e *Engine) DetectDrift(ctx context.Context, systemID string, hoursBack int) ([]map[string]any, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	sinceMs := e.now().Add(-time.Duration(hoursBack) * time.Hour).UnixMilli()
	diffs, err := e.store.listDiffsSince(ctx, systemID, sinceMs, DefaultDriftThreshold)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, map[string]any{
			"id":              d.ID,
			"system_id":       d.SystemID,
			"snapshot_before": d.SnapshotBefore,
			"snapshot_after":  d.SnapshotAfter,
			"lines_added":     d.LinesAdded,
			"lines_removed":   d.LinesRemoved,
			"change_type":     d.ChangeType,
			"risk_score":      d.RiskScore,
			"severity":        d.Severity,
			"created_at":      d.CreatedAt,
		})
	}
	return out, nil
}

// GetAlerts lists alerts, most recent first.
func (e *Engine) GetAlerts(ctx context.Context, systemID string) ([]map[string]any, error) {
	alerts, err := e.store.listAlerts(ctx, systemID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, map[string]any{
			"id":          a.ID,
			"system_id":   a.SystemID,
			"diff_id":     a.DiffID,
			"severity":    a.Severity,
			"drift_type":  a.DriftType,
			"description": a.Description,
			"created_at":  a.CreatedAt,
		})
	}
	return out, nil
}

// Restore returns a snapshot's content and, if targetPath is set, writes
// it atomically (tempfile + rename). It also records a new snapshot
// tagged "restored" so the audit trail never rewrites history; when the
// system's latest snapshot already holds the same content, CreateSnapshot's
// dedup returns that snapshot and no new one is recorded.
func (e *Engine) Restore(ctx context.Context, snapshotID, targetPath string) (string, error) {
	snap, err := e.store.getSnapshot(ctx, snapshotID)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", hiveerr.New(hiveerr.KindBadArgument, "unknown snapshot id %q", snapshotID)
	}

	if targetPath != "" {
		if err := atomicWrite(targetPath, []byte(snap.Content)); err != nil {
			return "", hiveerr.Wrap(hiveerr.KindInternal, err, "write restored config")
		}
	}

	note := fmt.Sprintf("restored from %s", snap.ID)
	if _, err := e.CreateSnapshot(ctx, snap.SystemID, snap.ConfigType, snap.Content, targetPath, "restore", []string{"restored", note}); err != nil {
		e.log.Warn().Err(err).Str("snapshot_id", snapshotID).Msg("failed to record restore snapshot")
	}

	return snap.Content, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".configbackup-restore-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
