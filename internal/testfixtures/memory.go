package testfixtures

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/example/cohort-bot/internal/application"
)

// MemoryStorage implements the application repositories in memory. Fail
// injects an error for one named operation until cleared with a nil error.
type MemoryStorage struct {
	mu           sync.Mutex
	nextID       int64
	lectures     map[int64]application.Lecture
	participants map[string]application.Participant
	pool         map[application.Activity][]application.PoolEntry
	failures     map[string]error
}

// NewMemoryStorage returns empty in-memory repositories.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		lectures:     make(map[int64]application.Lecture),
		participants: make(map[string]application.Participant),
		pool:         make(map[application.Activity][]application.PoolEntry),
		failures:     make(map[string]error),
	}
}

// Fail makes every call to operation (the repository method name) return
// err. A nil err clears the injection.
func (m *MemoryStorage) Fail(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, operation)
		return
	}
	m.failures[operation] = err
}

// FailAll makes every operation return err until cleared with nil.
func (m *MemoryStorage) FailAll(err error) {
	for _, op := range []string{
		"CreateLecture", "UpdateLecture", "GetLecture", "ListLectures", "DeleteLecture",
		"UpsertParticipant", "GetParticipant", "ListParticipants", "DeleteParticipant",
		"UpsertPoolEntry", "ListPool", "RemovePoolEntry", "ClearPool",
	} {
		m.Fail(op, err)
	}
}

func (m *MemoryStorage) failure(operation string) error {
	return m.failures[operation]
}

// CreateLecture implements application.LectureRepository.
func (m *MemoryStorage) CreateLecture(_ context.Context, lecture application.Lecture) (application.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateLecture"); err != nil {
		return application.Lecture{}, err
	}
	m.nextID++
	lecture.ID = m.nextID
	m.lectures[lecture.ID] = lecture
	return lecture, nil
}

// UpdateLecture implements application.LectureRepository.
func (m *MemoryStorage) UpdateLecture(_ context.Context, lecture application.Lecture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateLecture"); err != nil {
		return err
	}
	if _, ok := m.lectures[lecture.ID]; !ok {
		return application.ErrNotFound
	}
	m.lectures[lecture.ID] = lecture
	return nil
}

// GetLecture implements application.LectureRepository.
func (m *MemoryStorage) GetLecture(_ context.Context, id int64) (application.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetLecture"); err != nil {
		return application.Lecture{}, err
	}
	lecture, ok := m.lectures[id]
	if !ok {
		return application.Lecture{}, application.ErrNotFound
	}
	return lecture, nil
}

// ListLectures implements application.LectureRepository.
func (m *MemoryStorage) ListLectures(_ context.Context, filter application.LectureRepositoryFilter) ([]application.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListLectures"); err != nil {
		return nil, err
	}
	var out []application.Lecture
	for _, l := range m.lectures {
		if filter.School != nil && l.School != *filter.School {
			continue
		}
		if filter.Direction != nil {
			same := l.Direction != nil && *l.Direction == *filter.Direction
			if !same && !(filter.IncludeSchoolWide && l.Direction == nil) {
				continue
			}
		}
		if filter.From != nil && l.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.Date.After(*filter.To) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteLecture implements application.LectureRepository.
func (m *MemoryStorage) DeleteLecture(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteLecture"); err != nil {
		return err
	}
	if _, ok := m.lectures[id]; !ok {
		return application.ErrNotFound
	}
	delete(m.lectures, id)
	return nil
}

// UpsertParticipant implements application.ParticipantRepository.
func (m *MemoryStorage) UpsertParticipant(_ context.Context, participant application.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpsertParticipant"); err != nil {
		return err
	}
	if existing, ok := m.participants[participant.Username]; ok {
		participant.CreatedAt = existing.CreatedAt
	}
	m.participants[participant.Username] = participant
	return nil
}

// GetParticipant implements application.ParticipantRepository.
func (m *MemoryStorage) GetParticipant(_ context.Context, username string) (application.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetParticipant"); err != nil {
		return application.Participant{}, err
	}
	participant, ok := m.participants[username]
	if !ok {
		return application.Participant{}, application.ErrNotFound
	}
	return participant, nil
}

// ListParticipants implements application.ParticipantRepository.
func (m *MemoryStorage) ListParticipants(_ context.Context, filter application.CohortFilter) ([]application.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListParticipants"); err != nil {
		return nil, err
	}
	var out []application.Participant
	for _, p := range m.participants {
		if filter.School != nil && p.School != *filter.School {
			continue
		}
		if filter.Direction != nil && (p.Direction == nil || *p.Direction != *filter.Direction) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// DeleteParticipant implements application.ParticipantRepository. Pool
// entries of the participant are dropped as well.
func (m *MemoryStorage) DeleteParticipant(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteParticipant"); err != nil {
		return err
	}
	if _, ok := m.participants[username]; !ok {
		return application.ErrNotFound
	}
	delete(m.participants, username)
	for activity, entries := range m.pool {
		m.pool[activity] = slices.DeleteFunc(entries, func(e application.PoolEntry) bool { return e.Username == username })
	}
	return nil
}

// UpsertPoolEntry implements application.PoolRepository.
func (m *MemoryStorage) UpsertPoolEntry(_ context.Context, entry application.PoolEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpsertPoolEntry"); err != nil {
		return err
	}
	entries := m.pool[entry.Activity]
	for i := range entries {
		if entries[i].Username == entry.Username {
			entries[i] = entry
			return nil
		}
	}
	m.pool[entry.Activity] = append(entries, entry)
	return nil
}

// ListPool implements application.PoolRepository.
func (m *MemoryStorage) ListPool(_ context.Context, activity application.Activity) ([]application.PoolEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListPool"); err != nil {
		return nil, err
	}
	return slices.Clone(m.pool[activity]), nil
}

// RemovePoolEntry implements application.PoolRepository.
func (m *MemoryStorage) RemovePoolEntry(_ context.Context, activity application.Activity, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("RemovePoolEntry"); err != nil {
		return err
	}
	m.pool[activity] = slices.DeleteFunc(m.pool[activity], func(e application.PoolEntry) bool { return e.Username == username })
	return nil
}

// ClearPool implements application.PoolRepository.
func (m *MemoryStorage) ClearPool(_ context.Context, activity application.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ClearPool"); err != nil {
		return err
	}
	delete(m.pool, activity)
	return nil
}

// PoolUsernames returns the sorted usernames queued for activity.
func (m *MemoryStorage) PoolUsernames(activity application.Activity) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.pool[activity] {
		out = append(out, e.Username)
	}
	sort.Strings(out)
	return out
}

// Participant returns the stored participant without failure injection.
func (m *MemoryStorage) Participant(username string) (application.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[username]
	return p, ok
}

// Lectures returns every stored lecture ordered by id.
func (m *MemoryStorage) Lectures() []application.Lecture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]application.Lecture, 0, len(m.lectures))
	for _, l := range m.lectures {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
