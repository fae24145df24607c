package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/persistence"
	"github.com/example/cohort-bot/internal/testfixtures"
)

func newPersistenceLecture(opts ...testfixtures.LectureOption) persistence.Lecture {
	return testfixtures.NewLectureFixture(opts...).Persistence()
}

func newPersistenceParticipant(opts ...testfixtures.ParticipantOption) persistence.Participant {
	return testfixtures.NewParticipantFixture(opts...).Persistence()
}

func poolEntry(activity application.Activity, p persistence.Participant) persistence.PoolEntry {
	return persistence.PoolEntry{
		Activity:  string(activity),
		Username:  p.Username,
		School:    p.School,
		Direction: p.Direction,
		QueuedAt:  p.UpdatedAt,
	}
}

func TestLectureRepositoryContract(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes lectures", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		created, err := harness.Lectures.CreateLecture(ctx, newPersistenceLecture(
			testfixtures.WithLectureCohort("ШБР", "Java"),
			testfixtures.WithLectureTopic("Generics"),
		))
		if err != nil {
			t.Fatalf("CreateLecture failed: %v", err)
		}
		if created.ID == 0 {
			t.Fatal("expected assigned lecture id")
		}

		fetched, err := harness.Lectures.GetLecture(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetLecture failed: %v", err)
		}
		if fetched.Topic != "Generics" || fetched.Direction == nil || *fetched.Direction != "Java" {
			t.Fatalf("unexpected lecture: %#v", fetched)
		}
		if !fetched.Date.Equal(testfixtures.ReferenceDate()) {
			t.Fatalf("expected date %v, got %v", testfixtures.ReferenceDate(), fetched.Date)
		}

		fetched.Topic = "Streams"
		fetched.Direction = nil
		if err := harness.Lectures.UpdateLecture(ctx, fetched); err != nil {
			t.Fatalf("UpdateLecture failed: %v", err)
		}
		updated, err := harness.Lectures.GetLecture(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetLecture after update failed: %v", err)
		}
		if updated.Topic != "Streams" || updated.Direction != nil {
			t.Fatalf("unexpected updated lecture: %#v", updated)
		}

		if err := harness.Lectures.DeleteLecture(ctx, created.ID); err != nil {
			t.Fatalf("DeleteLecture failed: %v", err)
		}
		if _, err := harness.Lectures.GetLecture(ctx, created.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := harness.Lectures.DeleteLecture(ctx, created.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("date window is inclusive on both ends", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		for _, offset := range []int{-1, 0, 3, 7, 8} {
			if _, err := harness.Lectures.CreateLecture(ctx, newPersistenceLecture(testfixtures.WithLectureDayOffset(offset))); err != nil {
				t.Fatalf("CreateLecture(%d) failed: %v", offset, err)
			}
		}

		from := testfixtures.ReferenceDate()
		to := from.AddDate(0, 0, 7)
		lectures, err := harness.Lectures.ListLectures(ctx, persistence.LectureFilter{From: &from, To: &to})
		if err != nil {
			t.Fatalf("ListLectures failed: %v", err)
		}
		if len(lectures) != 3 {
			t.Fatalf("expected 3 lectures in window, got %d", len(lectures))
		}
		for _, l := range lectures {
			if l.Date.Before(from) || l.Date.After(to) {
				t.Fatalf("lecture %d outside window: %v", l.ID, l.Date)
			}
		}
	})

	t.Run("school-wide lectures reach every direction", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		fixtures := []persistence.Lecture{
			newPersistenceLecture(testfixtures.WithLectureSchool("ШМР"), testfixtures.WithLectureTopic("all")),
			newPersistenceLecture(testfixtures.WithLectureCohort("ШМР", "iOS"), testfixtures.WithLectureTopic("ios")),
			newPersistenceLecture(testfixtures.WithLectureCohort("ШМР", "Android"), testfixtures.WithLectureTopic("android")),
			newPersistenceLecture(testfixtures.WithLectureSchool("ШАР"), testfixtures.WithLectureTopic("other")),
		}
		for _, l := range fixtures {
			if _, err := harness.Lectures.CreateLecture(ctx, l); err != nil {
				t.Fatalf("CreateLecture failed: %v", err)
			}
		}

		school, direction := "ШМР", "iOS"
		lectures, err := harness.Lectures.ListLectures(ctx, persistence.LectureFilter{
			School:            &school,
			Direction:         &direction,
			IncludeSchoolWide: true,
		})
		if err != nil {
			t.Fatalf("ListLectures failed: %v", err)
		}
		var topics []string
		for _, l := range lectures {
			topics = append(topics, l.Topic)
		}
		if !slices.Equal(topics, []string{"all", "ios"}) {
			t.Fatalf("unexpected topics: %v", topics)
		}
	})
}

func TestParticipantRepositoryContract(t *testing.T) {
	t.Parallel()

	t.Run("upsert replaces the record with the same username", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		participant := newPersistenceParticipant(testfixtures.WithUsername("ann"), testfixtures.WithOptIns(true, false))
		if err := harness.Participants.UpsertParticipant(ctx, participant); err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}

		participant.School = "ШБР"
		direction := "Python"
		participant.Direction = &direction
		participant.CoffeeOptIn = false
		if err := harness.Participants.UpsertParticipant(ctx, participant); err != nil {
			t.Fatalf("second UpsertParticipant failed: %v", err)
		}

		fetched, err := harness.Participants.GetParticipant(ctx, "ann")
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if fetched.School != "ШБР" || fetched.Direction == nil || *fetched.Direction != "Python" || fetched.CoffeeOptIn {
			t.Fatalf("unexpected participant: %#v", fetched)
		}

		all, err := harness.Participants.ListParticipants(ctx, persistence.ParticipantFilter{})
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected a single record per username, got %d", len(all))
		}
	})

	t.Run("filters by school and direction", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		for _, p := range []persistence.Participant{
			newPersistenceParticipant(testfixtures.WithUsername("a"), testfixtures.WithParticipantCohort("ШБР", "Java")),
			newPersistenceParticipant(testfixtures.WithUsername("b"), testfixtures.WithParticipantCohort("ШБР", "C++")),
			newPersistenceParticipant(testfixtures.WithUsername("c"), testfixtures.WithParticipantSchool("ШРИ")),
		} {
			if err := harness.Participants.UpsertParticipant(ctx, p); err != nil {
				t.Fatalf("UpsertParticipant failed: %v", err)
			}
		}

		school, direction := "ШБР", "Java"
		cohort, err := harness.Participants.ListParticipants(ctx, persistence.ParticipantFilter{School: &school, Direction: &direction})
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(cohort) != 1 || cohort[0].Username != "a" {
			t.Fatalf("unexpected cohort: %#v", cohort)
		}

		schoolOnly, err := harness.Participants.ListParticipants(ctx, persistence.ParticipantFilter{School: &school})
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(schoolOnly) != 2 {
			t.Fatalf("expected both ШБР participants, got %d", len(schoolOnly))
		}
	})

	t.Run("delete drops queued pool entries", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		participant := newPersistenceParticipant(testfixtures.WithUsername("gone"), testfixtures.WithOptIns(true, true))
		if err := harness.Participants.UpsertParticipant(ctx, participant); err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}
		for _, activity := range application.Activities() {
			if err := harness.Pool.UpsertPoolEntry(ctx, poolEntry(activity, participant)); err != nil {
				t.Fatalf("UpsertPoolEntry failed: %v", err)
			}
		}

		if err := harness.Participants.DeleteParticipant(ctx, "gone"); err != nil {
			t.Fatalf("DeleteParticipant failed: %v", err)
		}
		for _, activity := range application.Activities() {
			entries, err := harness.Pool.ListPool(ctx, string(activity))
			if err != nil {
				t.Fatalf("ListPool failed: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("expected %s pool to be empty, got %#v", activity, entries)
			}
		}
		if err := harness.Participants.DeleteParticipant(ctx, "gone"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPoolRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	ann := newPersistenceParticipant(testfixtures.WithUsername("ann"))
	bob := newPersistenceParticipant(testfixtures.WithUsername("bob"))
	for _, entry := range []persistence.PoolEntry{
		poolEntry(application.ActivityCoffee, ann),
		poolEntry(application.ActivityCoffee, bob),
		poolEntry(application.ActivityCoffee, ann),
		poolEntry(application.ActivityInterview, bob),
	} {
		if err := harness.Pool.UpsertPoolEntry(ctx, entry); err != nil {
			t.Fatalf("UpsertPoolEntry failed: %v", err)
		}
	}

	coffee, err := harness.Pool.ListPool(ctx, string(application.ActivityCoffee))
	if err != nil {
		t.Fatalf("ListPool failed: %v", err)
	}
	if len(coffee) != 2 {
		t.Fatalf("expected one entry per (activity, username), got %d", len(coffee))
	}

	if err := harness.Pool.ClearPool(ctx, string(application.ActivityCoffee)); err != nil {
		t.Fatalf("ClearPool failed: %v", err)
	}
	interview, err := harness.Pool.ListPool(ctx, string(application.ActivityInterview))
	if err != nil {
		t.Fatalf("ListPool failed: %v", err)
	}
	if len(interview) != 1 || interview[0].Username != "bob" {
		t.Fatalf("clearing coffee must leave interview intact, got %#v", interview)
	}

	if err := harness.Pool.RemovePoolEntry(ctx, string(application.ActivityInterview), "nobody"); err != nil {
		t.Fatalf("RemovePoolEntry of a missing entry failed: %v", err)
	}
}

func TestSessionRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	if _, err := harness.Sessions.GetSession(ctx, "ann"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}

	record := persistence.SessionRecord{
		UserID:    "ann",
		Flow:      "admin",
		State:     "add_topic",
		Scratch:   map[string]string{"school": "ШАР", "lecturer": "Dr. Who"},
		UpdatedAt: testfixtures.ReferenceTime(),
	}
	if err := harness.Sessions.PutSession(ctx, record); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}

	record.State = "add_description"
	record.Scratch["topic"] = "Time"
	if err := harness.Sessions.PutSession(ctx, record); err != nil {
		t.Fatalf("second PutSession failed: %v", err)
	}

	fetched, err := harness.Sessions.GetSession(ctx, "ann")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if fetched.State != "add_description" || len(fetched.Scratch) != 3 || fetched.Scratch["topic"] != "Time" {
		t.Fatalf("unexpected session: %#v", fetched)
	}

	if err := harness.Sessions.DeleteSession(ctx, "ann"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := harness.Sessions.DeleteSession(ctx, "ann"); err != nil {
		t.Fatalf("second DeleteSession failed: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, "ann"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
