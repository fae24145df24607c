package application

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"
)

type lectureStore struct {
	mu       sync.Mutex
	nextID   int64
	lectures map[int64]Lecture
	listErr  error
}

func newLectureStore() *lectureStore {
	return &lectureStore{lectures: make(map[int64]Lecture)}
}

func (s *lectureStore) CreateLecture(_ context.Context, lecture Lecture) (Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	lecture.ID = s.nextID
	s.lectures[lecture.ID] = lecture
	return lecture, nil
}

func (s *lectureStore) UpdateLecture(_ context.Context, lecture Lecture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lectures[lecture.ID]; !ok {
		return ErrNotFound
	}
	s.lectures[lecture.ID] = lecture
	return nil
}

func (s *lectureStore) GetLecture(_ context.Context, id int64) (Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lecture, ok := s.lectures[id]
	if !ok {
		return Lecture{}, ErrNotFound
	}
	return lecture, nil
}

func (s *lectureStore) ListLectures(_ context.Context, filter LectureRepositoryFilter) ([]Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Lecture
	for _, l := range s.lectures {
		if filter.School != nil && l.School != *filter.School {
			continue
		}
		if filter.Direction != nil {
			matches := l.Direction != nil && *l.Direction == *filter.Direction
			if !matches && !(filter.IncludeSchoolWide && l.Direction == nil) {
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

func (s *lectureStore) DeleteLecture(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lectures[id]; !ok {
		return ErrNotFound
	}
	delete(s.lectures, id)
	return nil
}

type participantStore struct {
	mu           sync.Mutex
	participants map[string]Participant
	upsertErr    error
}

func newParticipantStore(participants ...Participant) *participantStore {
	s := &participantStore{participants: make(map[string]Participant)}
	for _, p := range participants {
		s.participants[p.Username] = p
	}
	return s
}

func (s *participantStore) UpsertParticipant(_ context.Context, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.participants[p.Username] = p
	return nil
}

func (s *participantStore) GetParticipant(_ context.Context, username string) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[username]
	if !ok {
		return Participant{}, ErrNotFound
	}
	return p, nil
}

func (s *participantStore) ListParticipants(_ context.Context, filter CohortFilter) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Participant
	for _, p := range s.participants {
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

func (s *participantStore) DeleteParticipant(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[username]; !ok {
		return ErrNotFound
	}
	delete(s.participants, username)
	return nil
}

type poolStore struct {
	mu        sync.Mutex
	entries   map[Activity][]PoolEntry
	listErr   error
	clearErr  error
	upsertErr error
}

func newPoolStore(activity Activity, usernames ...string) *poolStore {
	s := &poolStore{entries: make(map[Activity][]PoolEntry)}
	for _, username := range usernames {
		s.entries[activity] = append(s.entries[activity], PoolEntry{Activity: activity, Username: username, School: "ШАР"})
	}
	return s
}

func (s *poolStore) UpsertPoolEntry(_ context.Context, entry PoolEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	entries := s.entries[entry.Activity]
	for i := range entries {
		if entries[i].Username == entry.Username {
			entries[i] = entry
			return nil
		}
	}
	s.entries[entry.Activity] = append(entries, entry)
	return nil
}

func (s *poolStore) ListPool(_ context.Context, activity Activity) ([]PoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return slices.Clone(s.entries[activity]), nil
}

func (s *poolStore) RemovePoolEntry(_ context.Context, activity Activity, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[activity] = slices.DeleteFunc(s.entries[activity], func(e PoolEntry) bool { return e.Username == username })
	return nil
}

func (s *poolStore) ClearPool(_ context.Context, activity Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	delete(s.entries, activity)
	return nil
}

func (s *poolStore) usernames(activity Activity) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.entries[activity] {
		out = append(out, e.Username)
	}
	sort.Strings(out)
	return out
}

type sentMessage struct {
	UserID string
	Text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]error
}

func (n *recordingNotifier) Send(ctx context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail[userID]; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.sent = append(n.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

func (n *recordingNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.UserID)
	}
	return out
}

var errDeliveryFailed = errors.New("delivery failed")

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(v string) *string {
	return &v
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
