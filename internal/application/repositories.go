package application

import (
	"context"
	"time"
)

// LectureRepositoryFilter narrows lecture listings at the storage layer.
type LectureRepositoryFilter struct {
	School            *string
	Direction         *string
	IncludeSchoolWide bool
	From              *time.Time
	To                *time.Time
}

// LectureRepository defines persistence operations required by the lecture service.
type LectureRepository interface {
	CreateLecture(ctx context.Context, lecture Lecture) (Lecture, error)
	UpdateLecture(ctx context.Context, lecture Lecture) error
	GetLecture(ctx context.Context, id int64) (Lecture, error)
	ListLectures(ctx context.Context, filter LectureRepositoryFilter) ([]Lecture, error)
	DeleteLecture(ctx context.Context, id int64) error
}

// ParticipantRepository defines persistence operations over participant records.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, username string) (Participant, error)
	ListParticipants(ctx context.Context, filter CohortFilter) ([]Participant, error)
	DeleteParticipant(ctx context.Context, username string) error
}

// PoolRepository defines persistence operations over the per-activity pool of
// participants awaiting a match.
type PoolRepository interface {
	UpsertPoolEntry(ctx context.Context, entry PoolEntry) error
	ListPool(ctx context.Context, activity Activity) ([]PoolEntry, error)
	RemovePoolEntry(ctx context.Context, activity Activity, username string) error
	ClearPool(ctx context.Context, activity Activity) error
}

// Notifier delivers a text message to one recipient.
type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}
