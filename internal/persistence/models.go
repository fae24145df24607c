package persistence

import "time"

// Lecture is a scheduled lecture for one school, optionally scoped to a direction.
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

// Participant is a registered cohort member keyed by username.
type Participant struct {
	Username       string
	School         string
	Direction      *string
	CoffeeOptIn    bool
	InterviewOptIn bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PoolEntry is a participant waiting to be paired for one activity.
type PoolEntry struct {
	Activity  string
	Username  string
	School    string
	Direction *string
	QueuedAt  time.Time
}

// SessionRecord is the durable form of a conversation session.
type SessionRecord struct {
	UserID    string
	Flow      string
	State     string
	Scratch   map[string]string
	UpdatedAt time.Time
}
