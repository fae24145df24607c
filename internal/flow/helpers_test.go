package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/testfixtures"
)

const testPassphrase = "open sesame"

var (
	errStoreDown = errors.New("store down")
	errBoom      = errors.New("boom")
)

type harness struct {
	factory *testfixtures.ServiceFactory
	storage *testfixtures.MemoryStorage
	store   *MemoryStore
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	hash, err := application.CreatePassphraseHash(testPassphrase, application.Argon2idParams{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	})
	if err != nil {
		t.Fatalf("CreatePassphraseHash failed: %v", err)
	}

	factory := testfixtures.NewServiceFactory()
	store := NewMemoryStore()
	engine, err := New(Services{
		Lectures:     factory.NewLectureService(),
		Participants: factory.NewParticipantService(),
		Pairing:      factory.NewPairingEngine(),
		Alerts:       factory.NewReminderService(),
		Gate:         application.NewAdminGate(hash),
	}, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &harness{factory: factory, storage: factory.Storage, store: store, engine: engine}
}

func (h *harness) send(t *testing.T, userID, text string) []Action {
	t.Helper()
	actions, err := h.engine.Dispatch(context.Background(), Event{UserID: userID, Text: text})
	if err != nil {
		t.Fatalf("Dispatch(%q, %q) failed: %v", userID, text, err)
	}
	if len(actions) == 0 {
		t.Fatalf("Dispatch(%q, %q) produced no actions", userID, text)
	}
	return actions
}

// script sends every text in order and returns the actions of the last one.
func (h *harness) script(t *testing.T, userID string, texts ...string) []Action {
	t.Helper()
	var actions []Action
	for _, text := range texts {
		actions = h.send(t, userID, text)
	}
	return actions
}

func (h *harness) session(t *testing.T, userID string) Session {
	t.Helper()
	s, ok, err := h.store.Get(context.Background(), userID)
	if err != nil || !ok {
		t.Fatalf("expected stored session for %q, got ok=%v err=%v", userID, ok, err)
	}
	return s
}

func (h *harness) seed(t *testing.T, s Session) {
	t.Helper()
	if err := h.store.Put(context.Background(), s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (h *harness) addLecture(t *testing.T, opts ...testfixtures.LectureOption) application.Lecture {
	t.Helper()
	lecture, err := h.storage.CreateLecture(context.Background(), testfixtures.NewLectureFixture(opts...).Application())
	if err != nil {
		t.Fatalf("CreateLecture failed: %v", err)
	}
	return lecture
}

func (h *harness) register(t *testing.T, username, school, direction string) {
	t.Helper()
	participant := testfixtures.NewParticipantFixture(testfixtures.WithUsername(username), testfixtures.WithParticipantSchool(school))
	if direction != "" {
		participant = testfixtures.NewParticipantFixture(testfixtures.WithUsername(username), testfixtures.WithParticipantCohort(school, direction))
	}
	if err := h.storage.UpsertParticipant(context.Background(), participant.Application()); err != nil {
		t.Fatalf("UpsertParticipant failed: %v", err)
	}
}

func lastAction(actions []Action) Action {
	return actions[len(actions)-1]
}

func texts(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Text)
	}
	return out
}

func assertAt(t *testing.T, s Session, flow FlowID, state StateID) {
	t.Helper()
	if s.Flow != flow || s.State != state {
		t.Fatalf("expected session at %s/%s, got %s/%s", flow, state, s.Flow, s.State)
	}
}
