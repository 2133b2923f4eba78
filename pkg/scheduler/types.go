// Package scheduler runs recurring and one-shot jobs against a single
// arm/disarm timer, persisting job state to SQLite so a restart resumes
// the same due times instead of re-anchoring from process start.
package scheduler

import (
	"context"
	"time"
)

// ScheduleKind selects how NextRunAtMs is computed.
type ScheduleKind string

const (
	// KindAt runs once at AtMs.
	KindAt ScheduleKind = "at"
	// KindEvery runs every IntervalMs, anchored at AnchorMs.
	KindEvery ScheduleKind = "every"
	// KindCron runs on a standard 5-field cron expression.
	KindCron ScheduleKind = "cron"
)

// Schedule defines when a job is due.
type Schedule struct {
	Kind       ScheduleKind `json:"kind"`
	AtMs       int64        `json:"at_ms,omitempty"`
	IntervalMs int64        `json:"interval_ms,omitempty"`
	AnchorMs   int64        `json:"anchor_ms,omitempty"`
	Expr       string       `json:"expr,omitempty"`
	TZ         string       `json:"tz,omitempty"`
}

// JobState tracks a job's runtime progress.
type JobState struct {
	NextRunAtMs    *int64 `json:"next_run_at_ms,omitempty"`
	RunningAtMs    *int64 `json:"running_at_ms,omitempty"`
	LastRunAtMs    *int64 `json:"last_run_at_ms,omitempty"`
	LastStatus     string `json:"last_status,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	LastDurationMs int64  `json:"last_duration_ms,omitempty"`
}

// Job is a single scheduled unit of work. Handler is looked up by Kind at
// run time via the Service's registered handlers, so the persisted row
// never needs to carry a function value.
type Job struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Kind           string         `json:"kind"`
	Args           map[string]any `json:"args,omitempty"`
	Enabled        bool           `json:"enabled"`
	DeleteAfterRun bool           `json:"delete_after_run,omitempty"`
	CreatedAtMs    int64          `json:"created_at_ms"`
	UpdatedAtMs    int64          `json:"updated_at_ms"`
	Schedule       Schedule       `json:"schedule"`
	State          JobState       `json:"state"`
}

// JobCreate is the input for Add.
type JobCreate struct {
	Name     string
	Kind     string
	Args     map[string]any
	Schedule Schedule
	Enabled  *bool
}

// Handler executes one job run and reports its outcome. status is a free
// text label ("ok", "skipped", "error") recorded in JobState.
type Handler func(ctx context.Context, job Job) (status string, errMsg string)

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func nowMsDefault() func() int64 {
	return func() int64 { return time.Now().UnixMilli() }
}
