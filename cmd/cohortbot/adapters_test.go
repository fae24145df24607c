package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/flow"
	"github.com/example/cohort-bot/internal/persistence"
	"github.com/example/cohort-bot/internal/testfixtures"
)

func TestMapPersistenceError(t *testing.T) {
	t.Parallel()

	other := errors.New("disk full")
	tests := []struct {
		name   string
		in     error
		wantIs []error
	}{
		{name: "not found", in: persistence.ErrNotFound, wantIs: []error{application.ErrNotFound, persistence.ErrNotFound}},
		{name: "duplicate", in: persistence.ErrDuplicate, wantIs: []error{application.ErrAlreadyExists, persistence.ErrDuplicate}},
		{name: "passthrough", in: other, wantIs: []error{other}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := mapPersistenceError(tc.in)
			for _, want := range tc.wantIs {
				if !errors.Is(got, want) {
					t.Fatalf("expected %v to wrap %v", got, want)
				}
			}
		})
	}
	if mapPersistenceError(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestLectureRepositoryAdapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	repo := newLectureRepositoryAdapter(harness.Lectures)

	direction := "Python"
	created, err := repo.CreateLecture(ctx, application.Lecture{
		School:    "ШБР",
		Direction: &direction,
		Lecturer:  "Ivanov",
		Topic:     "Generators",
		Link:      "https://example.org/gen",
		Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateLecture failed: %v", err)
	}
	if created.ID == 0 || created.Direction == nil || *created.Direction != "Python" {
		t.Fatalf("unexpected created lecture %#v", created)
	}

	school := "ШБР"
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	listed, err := repo.ListLectures(ctx, application.LectureRepositoryFilter{School: &school, From: &from, To: &to})
	if err != nil {
		t.Fatalf("ListLectures failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the lecture inside the window, got %#v", listed)
	}

	if _, err := repo.GetLecture(ctx, created.ID+100); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected application.ErrNotFound, got %v", err)
	}
	if err := repo.DeleteLecture(ctx, created.ID); err != nil {
		t.Fatalf("DeleteLecture failed: %v", err)
	}
	if err := repo.DeleteLecture(ctx, created.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected application.ErrNotFound on second delete, got %v", err)
	}
}

func TestParticipantAndPoolAdapters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	participants := newParticipantRepositoryAdapter(harness.Participants)
	pool := newPoolRepositoryAdapter(harness.Pool)

	direction := "Go"
	for _, p := range []application.Participant{
		{Username: "ann", School: "ШБР", Direction: &direction, CoffeeOptIn: true},
		{Username: "bob", School: "ШОК"},
	} {
		if err := participants.UpsertParticipant(ctx, p); err != nil {
			t.Fatalf("UpsertParticipant(%s) failed: %v", p.Username, err)
		}
	}

	school := "ШБР"
	cohort, err := participants.ListParticipants(ctx, application.CohortFilter{School: &school})
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(cohort) != 1 || cohort[0].Username != "ann" || !cohort[0].CoffeeOptIn {
		t.Fatalf("unexpected cohort %#v", cohort)
	}

	if err := pool.UpsertPoolEntry(ctx, application.PoolEntry{Activity: application.ActivityCoffee, Username: "ann", School: "ШБР", Direction: &direction}); err != nil {
		t.Fatalf("UpsertPoolEntry failed: %v", err)
	}
	entries, err := pool.ListPool(ctx, application.ActivityCoffee)
	if err != nil {
		t.Fatalf("ListPool failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Activity != application.ActivityCoffee || entries[0].Direction == nil || *entries[0].Direction != "Go" {
		t.Fatalf("unexpected pool entries %#v", entries)
	}

	if err := participants.DeleteParticipant(ctx, "ann"); err != nil {
		t.Fatalf("DeleteParticipant failed: %v", err)
	}
	if _, err := participants.GetParticipant(ctx, "ann"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected application.ErrNotFound, got %v", err)
	}
	if entries, _ := pool.ListPool(ctx, application.ActivityCoffee); len(entries) != 0 {
		t.Fatalf("expected pool entries to go with the participant, got %#v", entries)
	}
}

func TestSessionStoreAdapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	stamp := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	store := newSessionStoreAdapter(harness.Sessions, func() time.Time { return stamp })

	if _, found, err := store.Get(ctx, "ann"); err != nil || found {
		t.Fatalf("expected no session, got found=%v err=%v", found, err)
	}

	session := flow.Session{
		UserID:  "ann",
		Flow:    flow.FlowAdmin,
		State:   flow.StateID("AddLecturer"),
		Scratch: map[string]string{"school": "ШБР", "stash": "ШБР|Go|1|0"},
	}
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, found, err := store.Get(ctx, "ann")
	if err != nil || !found {
		t.Fatalf("expected stored session, got found=%v err=%v", found, err)
	}
	if got.Flow != session.Flow || got.State != session.State || got.Scratch["stash"] != "ШБР|Go|1|0" || len(got.Scratch) != 2 {
		t.Fatalf("unexpected session %#v", got)
	}
	record, err := harness.Sessions.GetSession(ctx, "ann")
	if err != nil || !record.UpdatedAt.Equal(stamp) {
		t.Fatalf("expected updated_at %v, got %v (err %v)", stamp, record.UpdatedAt, err)
	}

	if err := store.Clear(ctx, "ann"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, found, _ := store.Get(ctx, "ann"); found {
		t.Fatal("expected session to be cleared")
	}
}
