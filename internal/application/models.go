package application

import "time"

// Lecture represents a scheduled lecture for one school, optionally scoped to
// a direction of that school.
type Lecture struct {
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

// LectureDraft captures caller provided lecture fields before validation.
type LectureDraft struct {
	School      string
	Direction   string
	Lecturer    string
	Topic       string
	Description string
	Link        string
	Date        string
}

// LecturePatch names the lecture fields to change. Nil fields are left as is.
// Direction is only honoured for direction-bearing schools; moving a lecture
// to a school without directions clears it.
type LecturePatch struct {
	School      *string
	Direction   *string
	Lecturer    *string
	Topic       *string
	Description *string
	Link        *string
	Date        *string
}

// LectureQuery filters lecture listings.
type LectureQuery struct {
	School    *string
	Direction *string
	// IncludeSchoolWide also matches lectures of School that carry no
	// direction when Direction is set.
	IncludeSchoolWide bool
}

// Participant is a registered member of a cohort.
type Participant struct {
	Username       string
	School         string
	Direction      *string
	CoffeeOptIn    bool
	InterviewOptIn bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAdmin reports whether the participant record currently holds the admin
// sentinel.
func (p Participant) IsAdmin() bool {
	return p.School == AdminSchool
}

// OptedIn reports the participant's preference for activity.
func (p Participant) OptedIn(activity Activity) bool {
	switch activity {
	case ActivityCoffee:
		return p.CoffeeOptIn
	case ActivityInterview:
		return p.InterviewOptIn
	}
	return false
}

// Cohort formats the participant's school and direction for display.
func (p Participant) Cohort() string {
	if p.Direction != nil {
		return p.School + " / " + *p.Direction
	}
	return p.School
}

// PoolEntry is a participant waiting to be matched for one activity.
type PoolEntry struct {
	Activity  Activity
	Username  string
	School    string
	Direction *string
	QueuedAt  time.Time
}

// CohortFilter selects participants by school and direction.
type CohortFilter struct {
	School    *string
	Direction *string
}

// RoundResult summarizes one pairing round.
type RoundResult struct {
	Activity Activity
	// Shuffled is the pool order the round walked.
	Shuffled    []string
	Pairs       [][2]string
	PairsFormed int
	// Leftover is the unmatched trailing member of an odd pool.
	Leftover *string
	// Requeued lists every member written back to the pool.
	Requeued []string
}

// ReminderReport summarizes one reminder run.
type ReminderReport struct {
	Date      time.Time
	Lectures  int
	Delivered int
	Skipped   int
	Failed    int
}

// BroadcastReport summarizes one alert fan-out.
type BroadcastReport struct {
	Recipients int
	Delivered  int
	Failed     int
}
