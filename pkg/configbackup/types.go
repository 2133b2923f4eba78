// Package configbackup implements the config backup engine: deduplicated
// snapshots, unified diffs, heuristic drift risk scoring, and alerting
// over a set of registered config systems.
package configbackup

import "time"

// ConfigSystem is a tracked configuration source (a host, a service, a
// device class) with its own snapshot cadence.
type ConfigSystem struct {
	SystemID          string         `json:"system_id"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	BackupFrequencyS  int            `json:"backup_frequency_s"`
	WatchPath         string         `json:"watch_path,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ConfigSnapshot is one stored revision of a system's configuration.
type ConfigSnapshot struct {
	ID          string    `json:"id"`
	SystemID    string    `json:"system_id"`
	ConfigType  string    `json:"config_type"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	FilePath    string    `json:"file_path,omitempty"`
	AgentID     string    `json:"agent_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Size        int       `json:"size"`
	Tags        []string  `json:"tags,omitempty"`
}

// ConfigDiff is the computed delta between two consecutive snapshots of
// the same system.
type ConfigDiff struct {
	ID             string  `json:"id"`
	SystemID       string  `json:"system_id"`
	SnapshotBefore string  `json:"snapshot_before"`
	SnapshotAfter  string  `json:"snapshot_after"`
	DiffText       string  `json:"diff_text"`
	LinesAdded     int     `json:"lines_added"`
	LinesRemoved   int     `json:"lines_removed"`
	ChangeType     string  `json:"change_type"`
	RiskScore      float64 `json:"risk_score"`
	Severity       string  `json:"severity"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConfigAlert is raised by CreateSnapshot when a diff's severity is high
// or critical.
type ConfigAlert struct {
	ID             string     `json:"id"`
	SystemID       string     `json:"system_id"`
	DiffID         string     `json:"diff_id"`
	Severity       string     `json:"severity"`
	DriftType      string     `json:"drift_type"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// SeverityForScore buckets a [0,1] risk score per spec.md §4.6.
func SeverityForScore(score float64) string {
	switch {
	case score >= 0.8:
		return "critical"
	case score >= 0.5:
		return "high"
	case score >= 0.2:
		return "medium"
	default:
		return "low"
	}
}

const DefaultDriftThreshold = 0.2
