package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/persistence"
)

var (
	lectureCounter     uint64
	participantCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar date of ReferenceTime.
func ReferenceDate() time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --------------------------- Lecture fixtures ----------------------------

// LectureFixture represents a deterministic lecture record.
type LectureFixture struct {
	ID          int64
	School      string
	Direction   *string
	Lecturer    string
	Topic       string
	Description string
	Link        string
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LectureOption configures the generated lecture fixture.
type LectureOption func(*LectureFixture)

// NewLectureFixture returns a deterministic school-wide lecture dated on
// ReferenceDate, with optional overrides. ID stays zero so stores assign one.
func NewLectureFixture(opts ...LectureOption) LectureFixture {
	idx := atomic.AddUint64(&lectureCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := LectureFixture{
		School:      "ШАР",
		Lecturer:    fmt.Sprintf("Lecturer %03d", idx),
		Topic:       fmt.Sprintf("Topic %03d", idx),
		Description: fmt.Sprintf("Description %03d", idx),
		Link:        fmt.Sprintf("https://lectures.example.com/%03d", idx),
		Date:        ReferenceDate(),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLectureSchool sets the school and clears the direction.
func WithLectureSchool(school string) LectureOption {
	return func(f *LectureFixture) {
		f.School = school
		f.Direction = nil
	}
}

// WithLectureCohort sets the school and direction.
func WithLectureCohort(school, direction string) LectureOption {
	return func(f *LectureFixture) {
		f.School = school
		f.Direction = &direction
	}
}

// WithLectureTopic overrides the generated topic.
func WithLectureTopic(topic string) LectureOption {
	return func(f *LectureFixture) {
		f.Topic = topic
	}
}

// WithLectureDate sets the lecture date.
func WithLectureDate(date time.Time) LectureOption {
	return func(f *LectureFixture) {
		f.Date = date
	}
}

// WithLectureDayOffset dates the lecture days after ReferenceDate.
func WithLectureDayOffset(days int) LectureOption {
	return func(f *LectureFixture) {
		f.Date = ReferenceDate().AddDate(0, 0, days)
	}
}

// Application returns the fixture as an application.Lecture value.
func (f LectureFixture) Application() application.Lecture {
	return application.Lecture{
		ID:          f.ID,
		School:      f.School,
		Direction:   f.Direction,
		Lecturer:    f.Lecturer,
		Topic:       f.Topic,
		Description: f.Description,
		Link:        f.Link,
		Date:        f.Date,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Lecture value.
func (f LectureFixture) Persistence() persistence.Lecture {
	return persistence.Lecture{
		ID:          f.ID,
		School:      f.School,
		Direction:   f.Direction,
		Lecturer:    f.Lecturer,
		Topic:       f.Topic,
		Description: f.Description,
		Link:        f.Link,
		Date:        f.Date,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Draft returns the fixture as the text an admin would enter.
func (f LectureFixture) Draft() application.LectureDraft {
	draft := application.LectureDraft{
		School:      f.School,
		Lecturer:    f.Lecturer,
		Topic:       f.Topic,
		Description: f.Description,
		Link:        f.Link,
		Date:        f.Date.Format(application.LectureDateLayout),
	}
	if f.Direction != nil {
		draft.Direction = *f.Direction
	}
	return draft
}

// ------------------------- Participant fixtures --------------------------

// ParticipantFixture represents a deterministic participant record.
type ParticipantFixture struct {
	Username       string
	School         string
	Direction      *string
	CoffeeOptIn    bool
	InterviewOptIn bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant with optional overrides.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ParticipantFixture{
		Username:  fmt.Sprintf("student%03d", idx),
		School:    "ШАР",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUsername overrides the generated username.
func WithUsername(username string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.Username = username
	}
}

// WithParticipantSchool sets the school and clears the direction.
func WithParticipantSchool(school string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.School = school
		f.Direction = nil
	}
}

// WithParticipantCohort sets the school and direction.
func WithParticipantCohort(school, direction string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.School = school
		f.Direction = &direction
	}
}

// WithOptIns sets both activity preferences.
func WithOptIns(coffee, interview bool) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.CoffeeOptIn = coffee
		f.InterviewOptIn = interview
	}
}

// Application returns the fixture as an application.Participant value.
func (f ParticipantFixture) Application() application.Participant {
	return application.Participant{
		Username:       f.Username,
		School:         f.School,
		Direction:      f.Direction,
		CoffeeOptIn:    f.CoffeeOptIn,
		InterviewOptIn: f.InterviewOptIn,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Participant value.
func (f ParticipantFixture) Persistence() persistence.Participant {
	return persistence.Participant{
		Username:       f.Username,
		School:         f.School,
		Direction:      f.Direction,
		CoffeeOptIn:    f.CoffeeOptIn,
		InterviewOptIn: f.InterviewOptIn,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// PoolEntry returns the participant queued for activity.
func (f ParticipantFixture) PoolEntry(activity application.Activity) application.PoolEntry {
	return application.PoolEntry{
		Activity:  activity,
		Username:  f.Username,
		School:    f.School,
		Direction: f.Direction,
		QueuedAt:  f.UpdatedAt,
	}
}
