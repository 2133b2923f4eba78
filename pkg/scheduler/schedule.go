package scheduler

import (
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// ComputeNextRunAtMs returns the next due time in unix ms, or nil if the
// schedule has no further runs (a past "at" time, or an unparsable
// expression).
func ComputeNextRunAtMs(schedule Schedule, nowMs int64) *int64 {
	switch schedule.Kind {
	case KindAt:
		if schedule.AtMs > nowMs {
			return &schedule.AtMs
		}
		return nil
	case KindEvery:
		intervalMs := schedule.IntervalMs
		if intervalMs < 1 {
			intervalMs = 1
		}
		anchor := schedule.AnchorMs
		if anchor <= 0 {
			anchor = nowMs
		}
		if nowMs < anchor {
			return &anchor
		}
		elapsed := nowMs - anchor
		steps := (elapsed + intervalMs - 1) / intervalMs
		if steps < 1 {
			steps = 1
		}
		next := anchor + steps*intervalMs
		return &next
	case KindCron:
		expr := strings.TrimSpace(schedule.Expr)
		if expr == "" {
			return nil
		}
		location := time.UTC
		if tz := strings.TrimSpace(schedule.TZ); tz != "" {
			if loc, err := time.LoadLocation(tz); err == nil {
				location = loc
			}
		}
		parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil
		}
		next := sched.Next(time.UnixMilli(nowMs).In(location))
		if next.IsZero() {
			return nil
		}
		nextMs := next.UTC().UnixMilli()
		return &nextMs
	default:
		return nil
	}
}
