package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service arms a single timer around the earliest due job, runs due jobs
// when it fires, and re-arms around whatever is due next. Unlike a
// per-job goroutine-per-timer design, this keeps wakeups to one timer
// regardless of job count.
type Service struct {
	mu       sync.Mutex
	store    JobStore
	handlers map[string]Handler
	jobs     map[string]Job
	timer    *time.Timer
	running  map[string]bool
	nowMs    func() int64
	log      zerolog.Logger
}

// NewService creates a scheduler bound to store, with no handlers
// registered yet — call RegisterHandler before Start for each Job.Kind
// the caller intends to schedule.
func NewService(store JobStore, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		handlers: make(map[string]Handler),
		jobs:     make(map[string]Job),
		running:  make(map[string]bool),
		nowMs:    nowMsDefault(),
		log:      log,
	}
}

// RegisterHandler binds a job kind to the function that runs it.
func (s *Service) RegisterHandler(kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// Start loads persisted jobs, recomputes due times, and arms the timer.
func (s *Service) Start(ctx context.Context) error {
	jobs, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if job.Enabled && job.State.NextRunAtMs == nil {
			job.State.NextRunAtMs = ComputeNextRunAtMs(job.Schedule, s.nowMs())
		}
		s.jobs[job.ID] = job
	}
	s.armTimerLocked()
	return nil
}

// Stop disarms the timer. In-flight job runs are not interrupted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// Add schedules a new job and persists it immediately.
func (s *Service) Add(ctx context.Context, in JobCreate) (Job, error) {
	now := s.nowMs()
	job := Job{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Kind:        in.Kind,
		Args:        in.Args,
		Enabled:     boolOrDefault(in.Enabled, true),
		CreatedAtMs: now,
		UpdatedAtMs: now,
		Schedule:    in.Schedule,
	}
	if job.Enabled {
		job.State.NextRunAtMs = ComputeNextRunAtMs(job.Schedule, now)
	}
	if err := s.store.Upsert(ctx, job); err != nil {
		return Job{}, err
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.armTimerLocked()
	s.mu.Unlock()
	return job, nil
}

// Remove deletes a job.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.jobs, id)
	s.armTimerLocked()
	s.mu.Unlock()
	return nil
}

// List returns jobs sorted by ID for stable listings.
func (s *Service) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) armTimerLocked() {
	s.stopTimerLocked()
	next := s.nextWakeAtMsLocked()
	if next == nil {
		return
	}
	delayMs := *next - s.nowMs()
	if delayMs < 0 {
		delayMs = 0
	}
	const maxTimeoutMs int64 = (1 << 31) - 1
	if delayMs > maxTimeoutMs {
		delayMs = maxTimeoutMs
	}
	s.timer = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, s.onTimer)
}

func (s *Service) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Service) nextWakeAtMsLocked() *int64 {
	var best *int64
	for _, job := range s.jobs {
		if !job.Enabled || job.State.NextRunAtMs == nil {
			continue
		}
		if best == nil || *job.State.NextRunAtMs < *best {
			v := *job.State.NextRunAtMs
			best = &v
		}
	}
	return best
}

func (s *Service) onTimer() {
	s.mu.Lock()
	now := s.nowMs()
	due := make([]string, 0)
	for id, job := range s.jobs {
		if job.Enabled && !s.running[id] && job.State.NextRunAtMs != nil && now >= *job.State.NextRunAtMs {
			due = append(due, id)
		}
	}
	for _, id := range due {
		s.running[id] = true
	}
	s.mu.Unlock()

	for _, id := range due {
		s.runJob(id)
	}

	s.mu.Lock()
	s.armTimerLocked()
	s.mu.Unlock()
}

func (s *Service) runJob(id string) {
	s.mu.Lock()
	job := s.jobs[id]
	handler := s.handlers[job.Kind]
	s.mu.Unlock()

	startedAt := s.nowMs()
	status, errMsg := "skipped", fmt.Sprintf("no handler registered for kind %q", job.Kind)
	if handler != nil {
		callCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		status, errMsg = handler(callCtx, job)
		cancel()
	} else {
		s.log.Warn().Str("job_id", id).Str("kind", job.Kind).Msg("scheduler: no handler registered for job kind")
	}
	if status != "ok" && handler != nil {
		s.log.Error().Str("job_id", id).Str("kind", job.Kind).Str("error", errMsg).Msg("scheduler: job run failed")
	}
	endedAt := s.nowMs()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.State.LastRunAtMs = &startedAt
	job.State.LastStatus = status
	job.State.LastError = errMsg
	job.State.LastDurationMs = endedAt - startedAt
	job.UpdatedAtMs = endedAt

	shouldDelete := job.Schedule.Kind == KindAt && status == "ok" && job.DeleteAfterRun
	if !shouldDelete {
		if job.Schedule.Kind == KindAt && status == "ok" {
			job.Enabled = false
			job.State.NextRunAtMs = nil
		} else if job.Enabled {
			job.State.NextRunAtMs = ComputeNextRunAtMs(job.Schedule, endedAt)
		}
	}

	if shouldDelete {
		delete(s.jobs, id)
		_ = s.store.Delete(context.Background(), id)
		return
	}
	s.jobs[id] = job
	_ = s.store.Upsert(context.Background(), job)
}
