package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/cohort-bot/internal/recurrence"
)

// Scheduled job names.
const (
	JobCoffeePairing    = "coffee_pairing"
	JobInterviewPairing = "interview_pairing"
	JobReminders        = "reminders"
)

// ScheduleEntry is one row of the schedule file.
type ScheduleEntry struct {
	Job       string `yaml:"job"`
	DayOfWeek string `yaml:"day_of_week"`
	Hour      int    `yaml:"hour"`
	Minute    int    `yaml:"minute"`
	Timezone  string `yaml:"timezone"`
}

type scheduleFile struct {
	Jobs []ScheduleEntry `yaml:"jobs"`
}

// ScheduledJob binds a job name to its slot.
type ScheduledJob struct {
	Job  string
	Slot recurrence.Slot
}

// DefaultSchedule returns the built-in table: coffee pairing Friday 10:00,
// interview pairing Wednesday 10:00, reminders daily at 12:00 and 18:00.
func DefaultSchedule(loc *time.Location) []ScheduledJob {
	return []ScheduledJob{
		{Job: JobCoffeePairing, Slot: recurrence.Weekly(time.Friday, 10, 0, loc)},
		{Job: JobInterviewPairing, Slot: recurrence.Weekly(time.Wednesday, 10, 0, loc)},
		{Job: JobReminders, Slot: recurrence.Daily(12, 0, loc)},
		{Job: JobReminders, Slot: recurrence.Daily(18, 0, loc)},
	}
}

// LoadSchedule reads the schedule file at path. An empty path returns the
// built-in table. Entries without a timezone use loc.
func LoadSchedule(path string, loc *time.Location) ([]ScheduledJob, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSchedule(loc), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read schedule: %w", err)
	}
	jobs, err := ParseSchedule(data, loc)
	if err != nil {
		return nil, fmt.Errorf("config: schedule %s: %w", path, err)
	}
	return jobs, nil
}

// ParseSchedule decodes a YAML schedule. Unknown keys and unknown job names
// are rejected.
func ParseSchedule(data []byte, loc *time.Location) ([]ScheduledJob, error) {
	if loc == nil {
		loc = time.UTC
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file scheduleFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schedule is empty")
		}
		return nil, err
	}
	if len(file.Jobs) == 0 {
		return nil, errors.New("schedule lists no jobs")
	}

	var (
		jobs     []ScheduledJob
		problems []error
	)
	for i, entry := range file.Jobs {
		job, err := entry.resolve(loc)
		if err != nil {
			problems = append(problems, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		jobs = append(jobs, job)
	}
	if err := errors.Join(problems...); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (e ScheduleEntry) resolve(loc *time.Location) (ScheduledJob, error) {
	switch e.Job {
	case JobCoffeePairing, JobInterviewPairing, JobReminders:
	default:
		return ScheduledJob{}, fmt.Errorf("unknown job %q", e.Job)
	}

	slot := recurrence.Slot{Hour: e.Hour, Minute: e.Minute, Location: loc}
	if e.Timezone != "" {
		zone, err := time.LoadLocation(e.Timezone)
		if err != nil {
			return ScheduledJob{}, fmt.Errorf("timezone %q: %w", e.Timezone, err)
		}
		slot.Location = zone
	}
	day, ok, err := recurrence.ParseWeekday(e.DayOfWeek)
	if err != nil {
		return ScheduledJob{}, err
	}
	if ok {
		slot.Weekdays = []time.Weekday{day}
	}
	if err := slot.Validate(); err != nil {
		return ScheduledJob{}, err
	}
	return ScheduledJob{Job: e.Job, Slot: slot}, nil
}
