package persistence

import (
	"context"
	"time"
)

// LectureFilter narrows lecture queries. Nil fields do not filter.
type LectureFilter struct {
	School    *string
	Direction *string
	// IncludeSchoolWide also matches lectures without a direction when
	// Direction is set.
	IncludeSchoolWide bool
	// From and To bound the lecture date, inclusive on both ends.
	From *time.Time
	To   *time.Time
}

// LectureRepository exposes CRUD operations for lectures.
type LectureRepository interface {
	CreateLecture(ctx context.Context, lecture Lecture) (Lecture, error)
	UpdateLecture(ctx context.Context, lecture Lecture) error
	GetLecture(ctx context.Context, id int64) (Lecture, error)
	ListLectures(ctx context.Context, filter LectureFilter) ([]Lecture, error)
	DeleteLecture(ctx context.Context, id int64) error
}

// ParticipantFilter narrows participant queries. Nil fields do not filter.
type ParticipantFilter struct {
	School    *string
	Direction *string
}

// ParticipantRepository stores registrations and opt-in flags.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, username string) (Participant, error)
	ListParticipants(ctx context.Context, filter ParticipantFilter) ([]Participant, error)
	DeleteParticipant(ctx context.Context, username string) error
}

// PoolRepository stores participants awaiting a match, per activity.
// UpsertPoolEntry replaces an existing (activity, username) entry.
type PoolRepository interface {
	UpsertPoolEntry(ctx context.Context, entry PoolEntry) error
	ListPool(ctx context.Context, activity string) ([]PoolEntry, error)
	RemovePoolEntry(ctx context.Context, activity, username string) error
	ClearPool(ctx context.Context, activity string) error
}

// SessionRepository stores conversation sessions.
type SessionRepository interface {
	GetSession(ctx context.Context, userID string) (SessionRecord, error)
	PutSession(ctx context.Context, session SessionRecord) error
	DeleteSession(ctx context.Context, userID string) error
}
