package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/cohort-bot/internal/recurrence"
	"github.com/example/cohort-bot/internal/scheduler"
	"github.com/example/cohort-bot/internal/testfixtures"
)

type firing struct {
	name       string
	occurrence time.Time
}

func recorder(name string, fired chan<- firing) scheduler.Job {
	return func(_ context.Context, occurrence time.Time) error {
		fired <- firing{name: name, occurrence: occurrence}
		return nil
	}
}

func waitForTimer(t *testing.T, clock *testfixtures.Clock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clock.Waiters() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never started waiting")
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, fired <-chan firing) firing {
	t.Helper()
	select {
	case f := <-fired:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
	return firing{}
}

func TestSchedulerFiresEachOccurrenceOnce(t *testing.T) {
	t.Parallel()

	// Monday 2024-03-04 09:00 UTC.
	clock := testfixtures.NewClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	s := scheduler.New(clock, nil)
	fired := make(chan firing, 8)

	if err := s.OnSchedule(recurrence.Daily(12, 0, time.UTC), "reminders-noon", recorder("noon", fired)); err != nil {
		t.Fatalf("OnSchedule failed: %v", err)
	}
	if err := s.OnSchedule(recurrence.Weekly(time.Wednesday, 10, 0, time.UTC), "interview", recorder("interview", fired)); err != nil {
		t.Fatalf("OnSchedule failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitForTimer(t, clock)
	clock.Set(time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC))
	got := receive(t, fired)
	if got.name != "noon" || !got.occurrence.Equal(time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected firing %+v", got)
	}

	// Tuesday noon, then Wednesday 10:00 before Wednesday noon.
	waitForTimer(t, clock)
	clock.Set(time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC))
	if got := receive(t, fired); got.name != "noon" {
		t.Fatalf("expected Tuesday noon, got %+v", got)
	}
	waitForTimer(t, clock)
	clock.Set(time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC))
	if got := receive(t, fired); got.name != "interview" {
		t.Fatalf("expected Wednesday interview round, got %+v", got)
	}

	waitForTimer(t, clock)
	select {
	case extra := <-fired:
		t.Fatalf("unexpected extra firing %+v", extra)
	default:
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSchedulerCoalescesMissedOccurrences(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	s := scheduler.New(clock, nil)
	fired := make(chan firing, 8)
	if err := s.OnSchedule(recurrence.Daily(12, 0, time.UTC), "noon", recorder("noon", fired)); err != nil {
		t.Fatalf("OnSchedule failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	waitForTimer(t, clock)
	clock.Set(time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC))
	receive(t, fired)

	waitForTimer(t, clock)
	select {
	case extra := <-fired:
		t.Fatalf("missed occurrences must not be replayed, got %+v", extra)
	default:
	}
	jobs := s.Jobs()
	if len(jobs) != 1 || !jobs[0].Next.Equal(time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next occurrence %+v", jobs)
	}
}

func TestSchedulerKeepsRunningAfterJobError(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	s := scheduler.New(clock, nil)
	calls := make(chan struct{}, 4)
	failing := func(context.Context, time.Time) error {
		calls <- struct{}{}
		return errors.New("relay unavailable")
	}
	if err := s.OnSchedule(recurrence.Daily(10, 0, time.UTC), "flaky", failing); err != nil {
		t.Fatalf("OnSchedule failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	for day := 4; day <= 5; day++ {
		waitForTimer(t, clock)
		clock.Set(time.Date(2024, time.March, day, 10, 0, 0, 0, time.UTC))
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not fire on day %d", day)
		}
	}
}

func TestSchedulerRegistration(t *testing.T) {
	t.Parallel()

	s := scheduler.New(testfixtures.NewClock(time.Time{}), nil)
	noop := func(context.Context, time.Time) error { return nil }

	if err := s.OnSchedule(recurrence.Slot{Hour: 25}, "bad", noop); !errors.Is(err, recurrence.ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if err := s.OnSchedule(recurrence.Daily(1, 0, nil), "", noop); err == nil {
		t.Fatal("expected error for unnamed job")
	}
	if err := s.OnSchedule(recurrence.Daily(1, 0, nil), "nil", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}
