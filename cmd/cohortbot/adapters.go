package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/flow"
	"github.com/example/cohort-bot/internal/persistence"
)

// mapPersistenceError translates storage sentinels into the application's,
// keeping the original error in the chain.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	}
	return err
}

type lectureRepositoryAdapter struct {
	repo persistence.LectureRepository
}

func newLectureRepositoryAdapter(repo persistence.LectureRepository) *lectureRepositoryAdapter {
	return &lectureRepositoryAdapter{repo: repo}
}

func (a *lectureRepositoryAdapter) CreateLecture(ctx context.Context, lecture application.Lecture) (application.Lecture, error) {
	stored, err := a.repo.CreateLecture(ctx, toPersistenceLecture(lecture))
	if err != nil {
		return application.Lecture{}, mapPersistenceError(err)
	}
	return toApplicationLecture(stored), nil
}

func (a *lectureRepositoryAdapter) UpdateLecture(ctx context.Context, lecture application.Lecture) error {
	return mapPersistenceError(a.repo.UpdateLecture(ctx, toPersistenceLecture(lecture)))
}

func (a *lectureRepositoryAdapter) GetLecture(ctx context.Context, id int64) (application.Lecture, error) {
	stored, err := a.repo.GetLecture(ctx, id)
	if err != nil {
		return application.Lecture{}, mapPersistenceError(err)
	}
	return toApplicationLecture(stored), nil
}

func (a *lectureRepositoryAdapter) ListLectures(ctx context.Context, filter application.LectureRepositoryFilter) ([]application.Lecture, error) {
	stored, err := a.repo.ListLectures(ctx, persistence.LectureFilter{
		School:            cloneString(filter.School),
		Direction:         cloneString(filter.Direction),
		IncludeSchoolWide: filter.IncludeSchoolWide,
		From:              cloneTime(filter.From),
		To:                cloneTime(filter.To),
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	lectures := make([]application.Lecture, 0, len(stored))
	for _, item := range stored {
		lectures = append(lectures, toApplicationLecture(item))
	}
	return lectures, nil
}

func (a *lectureRepositoryAdapter) DeleteLecture(ctx context.Context, id int64) error {
	return mapPersistenceError(a.repo.DeleteLecture(ctx, id))
}

type participantRepositoryAdapter struct {
	repo persistence.ParticipantRepository
}

func newParticipantRepositoryAdapter(repo persistence.ParticipantRepository) *participantRepositoryAdapter {
	return &participantRepositoryAdapter{repo: repo}
}

func (a *participantRepositoryAdapter) UpsertParticipant(ctx context.Context, participant application.Participant) error {
	return mapPersistenceError(a.repo.UpsertParticipant(ctx, toPersistenceParticipant(participant)))
}

func (a *participantRepositoryAdapter) GetParticipant(ctx context.Context, username string) (application.Participant, error) {
	stored, err := a.repo.GetParticipant(ctx, username)
	if err != nil {
		return application.Participant{}, mapPersistenceError(err)
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) ListParticipants(ctx context.Context, filter application.CohortFilter) ([]application.Participant, error) {
	stored, err := a.repo.ListParticipants(ctx, persistence.ParticipantFilter{
		School:    cloneString(filter.School),
		Direction: cloneString(filter.Direction),
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	participants := make([]application.Participant, 0, len(stored))
	for _, item := range stored {
		participants = append(participants, toApplicationParticipant(item))
	}
	return participants, nil
}

func (a *participantRepositoryAdapter) DeleteParticipant(ctx context.Context, username string) error {
	return mapPersistenceError(a.repo.DeleteParticipant(ctx, username))
}

type poolRepositoryAdapter struct {
	repo persistence.PoolRepository
}

func newPoolRepositoryAdapter(repo persistence.PoolRepository) *poolRepositoryAdapter {
	return &poolRepositoryAdapter{repo: repo}
}

func (a *poolRepositoryAdapter) UpsertPoolEntry(ctx context.Context, entry application.PoolEntry) error {
	return mapPersistenceError(a.repo.UpsertPoolEntry(ctx, persistence.PoolEntry{
		Activity:  string(entry.Activity),
		Username:  entry.Username,
		School:    entry.School,
		Direction: cloneString(entry.Direction),
		QueuedAt:  entry.QueuedAt,
	}))
}

func (a *poolRepositoryAdapter) ListPool(ctx context.Context, activity application.Activity) ([]application.PoolEntry, error) {
	stored, err := a.repo.ListPool(ctx, string(activity))
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	entries := make([]application.PoolEntry, 0, len(stored))
	for _, item := range stored {
		entries = append(entries, application.PoolEntry{
			Activity:  application.Activity(item.Activity),
			Username:  item.Username,
			School:    item.School,
			Direction: cloneString(item.Direction),
			QueuedAt:  item.QueuedAt,
		})
	}
	return entries, nil
}

func (a *poolRepositoryAdapter) RemovePoolEntry(ctx context.Context, activity application.Activity, username string) error {
	return mapPersistenceError(a.repo.RemovePoolEntry(ctx, string(activity), username))
}

func (a *poolRepositoryAdapter) ClearPool(ctx context.Context, activity application.Activity) error {
	return mapPersistenceError(a.repo.ClearPool(ctx, string(activity)))
}

// sessionStoreAdapter implements flow.SessionStore over the durable sessions table.
type sessionStoreAdapter struct {
	repo persistence.SessionRepository
	now  func() time.Time
}

func newSessionStoreAdapter(repo persistence.SessionRepository, now func() time.Time) *sessionStoreAdapter {
	if now == nil {
		now = time.Now
	}
	return &sessionStoreAdapter{repo: repo, now: now}
}

func (a *sessionStoreAdapter) Get(ctx context.Context, userID string) (flow.Session, bool, error) {
	stored, err := a.repo.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return flow.Session{}, false, nil
		}
		return flow.Session{}, false, err
	}
	return flow.Session{
		UserID:  stored.UserID,
		Flow:    flow.FlowID(stored.Flow),
		State:   flow.StateID(stored.State),
		Scratch: stored.Scratch,
	}, true, nil
}

func (a *sessionStoreAdapter) Put(ctx context.Context, session flow.Session) error {
	return a.repo.PutSession(ctx, persistence.SessionRecord{
		UserID:    session.UserID,
		Flow:      string(session.Flow),
		State:     string(session.State),
		Scratch:   session.Scratch,
		UpdatedAt: a.now(),
	})
}

func (a *sessionStoreAdapter) Clear(ctx context.Context, userID string) error {
	return a.repo.DeleteSession(ctx, userID)
}

func toApplicationLecture(model persistence.Lecture) application.Lecture {
	return application.Lecture{
		ID:          model.ID,
		School:      model.School,
		Direction:   cloneString(model.Direction),
		Lecturer:    model.Lecturer,
		Topic:       model.Topic,
		Description: model.Description,
		Link:        model.Link,
		Date:        model.Date,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceLecture(lecture application.Lecture) persistence.Lecture {
	return persistence.Lecture{
		ID:          lecture.ID,
		School:      lecture.School,
		Direction:   cloneString(lecture.Direction),
		Lecturer:    lecture.Lecturer,
		Topic:       lecture.Topic,
		Description: lecture.Description,
		Link:        lecture.Link,
		Date:        lecture.Date,
		CreatedAt:   lecture.CreatedAt,
		UpdatedAt:   lecture.UpdatedAt,
	}
}

func toApplicationParticipant(model persistence.Participant) application.Participant {
	return application.Participant{
		Username:       model.Username,
		School:         model.School,
		Direction:      cloneString(model.Direction),
		CoffeeOptIn:    model.CoffeeOptIn,
		InterviewOptIn: model.InterviewOptIn,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceParticipant(participant application.Participant) persistence.Participant {
	return persistence.Participant{
		Username:       participant.Username,
		School:         participant.School,
		Direction:      cloneString(participant.Direction),
		CoffeeOptIn:    participant.CoffeeOptIn,
		InterviewOptIn: participant.InterviewOptIn,
		CreatedAt:      participant.CreatedAt,
		UpdatedAt:      participant.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
