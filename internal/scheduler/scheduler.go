package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/logging"
	"github.com/example/cohort-bot/internal/recurrence"
)

// Clock is the time source the scheduler sleeps on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Job runs one occurrence. occurrence is the slot time being served, not the
// wall-clock time the job started.
type Job func(ctx context.Context, occurrence time.Time) error

// ErrRunning is returned when jobs are registered after Run started.
var ErrRunning = errors.New("scheduler: already running")

type entry struct {
	name string
	slot recurrence.Slot
	job  Job
	next time.Time
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name string
	Slot recurrence.Slot
	Next time.Time
}

// Scheduler fires registered jobs at their slot occurrences. Jobs run one at
// a time on the Run goroutine; occurrences missed while a job was running are
// coalesced into a single firing.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	entries []*entry
	running bool
}

// New returns a scheduler on clock. A nil clock uses the system clock.
func New(clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{clock: clock, logger: logger.With("component", "scheduler")}
}

// OnSchedule registers job under name to fire at every occurrence of slot.
func (s *Scheduler) OnSchedule(slot recurrence.Slot, name string, job Job) error {
	if job == nil || name == "" {
		return fmt.Errorf("scheduler: job %q needs a name and a function", name)
	}
	if err := slot.Validate(); err != nil {
		return fmt.Errorf("scheduler: job %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.entries = append(s.entries, &entry{name: name, slot: slot, job: job})
	return nil
}

// Jobs lists registered jobs with their next occurrence after now.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		next := e.next
		if next.IsZero() {
			next, _ = e.slot.Next(now)
		}
		out = append(out, JobInfo{Name: e.name, Slot: e.slot, Next: next})
	}
	return out
}

// Run fires jobs until ctx is cancelled and then returns ctx.Err(). Job
// errors are logged and do not stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	entries := s.entries
	now := s.clock.Now()
	for _, e := range entries {
		next, err := e.slot.Next(now)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("scheduler: job %q: %w", e.name, err)
		}
		e.next = next
	}
	s.mu.Unlock()

	if len(entries) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	for _, e := range entries {
		s.logger.InfoContext(ctx, "job scheduled", "job", e.name, "slot", e.slot.String(), "next", e.next)
	}

	for {
		due := s.earliest(entries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(due.Sub(s.clock.Now())):
		}

		now := s.clock.Now()
		for _, e := range s.due(entries, now) {
			s.fire(ctx, e)
			s.mu.Lock()
			next, err := e.slot.Next(s.clock.Now())
			if err == nil {
				e.next = next
			}
			s.mu.Unlock()
			if err != nil {
				return fmt.Errorf("scheduler: job %q: %w", e.name, err)
			}
		}
	}
}

func (s *Scheduler) earliest(entries []*entry) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := entries[0].next
	for _, e := range entries[1:] {
		if e.next.Before(due) {
			due = e.next
		}
	}
	return due
}

// due returns the entries whose occurrence has arrived, earliest first.
func (s *Scheduler) due(entries []*entry, now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entry
	for _, e := range entries {
		if !e.next.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].next.Before(out[j].next) })
	return out
}

func (s *Scheduler) fire(ctx context.Context, e *entry) {
	occurrence := e.next
	logger := s.logger.With("job", e.name, "run_id", uuid.NewString(), "occurrence", occurrence)
	ctx = logging.ContextWithLogger(ctx, logger)

	started := s.clock.Now()
	err := e.job(ctx, occurrence)
	if err != nil {
		logger.ErrorContext(ctx, "job failed", "error", err, "error_kind", application.ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, "job completed", "duration", s.clock.Now().Sub(started))
}
