package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Slot is a wall-clock time on selected weekdays, read in Location. An empty
// Weekdays set means every day.
type Slot struct {
	Weekdays []time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

var (
	// ErrInvalidSlot indicates the slot time or weekdays are out of range.
	ErrInvalidSlot = errors.New("recurrence: invalid slot")
	// ErrInvalidWindow indicates the window end precedes its start.
	ErrInvalidWindow = errors.New("recurrence: window end precedes start")
	// ErrUnknownWeekday indicates a weekday name could not be parsed.
	ErrUnknownWeekday = errors.New("recurrence: unknown weekday")
)

// Daily returns a slot firing every day at hour:minute in loc.
func Daily(hour, minute int, loc *time.Location) Slot {
	return Slot{Hour: hour, Minute: minute, Location: loc}
}

// Weekly returns a slot firing on day at hour:minute in loc.
func Weekly(day time.Weekday, hour, minute int, loc *time.Location) Slot {
	return Slot{Weekdays: []time.Weekday{day}, Hour: hour, Minute: minute, Location: loc}
}

// Validate reports whether the slot can ever fire.
func (s Slot) Validate() error {
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidSlot, s.Hour, s.Minute)
	}
	for _, day := range s.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday %d", ErrInvalidSlot, day)
		}
	}
	return nil
}

func (s Slot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Slot) includes(day time.Weekday) bool {
	return len(s.Weekdays) == 0 || slices.Contains(s.Weekdays, day)
}

// Next returns the earliest occurrence strictly after t.
func (s Slot) Next(t time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	loc := s.location()
	local := t.In(loc)

	// Eight days covers a weekly slot whose only weekday is today but whose
	// time has already passed.
	for offset := 0; offset <= 7; offset++ {
		candidate := combineDateTime(local.AddDate(0, 0, offset), s.Hour, s.Minute, loc)
		if candidate.After(t) && s.includes(candidate.Weekday()) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no occurrence within a week of %s", ErrInvalidSlot, t.Format(time.RFC3339))
}

// Occurrences lists every occurrence within [from, to], both ends inclusive.
func (s Slot) Occurrences(from, to time.Time) ([]time.Time, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, ErrInvalidWindow
	}

	var out []time.Time
	current, err := s.Next(from.Add(-time.Nanosecond))
	for err == nil && !current.After(to) {
		out = append(out, current)
		current, err = s.Next(current)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// String renders the slot as "Fri 10:00 Europe/Moscow" or "daily 12:00 UTC".
func (s Slot) String() string {
	days := "daily"
	if len(s.Weekdays) > 0 {
		names := make([]string, len(s.Weekdays))
		for i, day := range s.Weekdays {
			names[i] = day.String()[:3]
		}
		days = strings.Join(names, ",")
	}
	return fmt.Sprintf("%s %02d:%02d %s", days, s.Hour, s.Minute, s.location())
}

// ParseWeekday accepts English weekday names, full or three-letter, in any
// case. "*", "daily" and "" return ok=false, meaning every day.
func ParseWeekday(value string) (day time.Weekday, ok bool, err error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "*", "daily":
		return 0, false, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, true, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %q", ErrUnknownWeekday, value)
}

func combineDateTime(date time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}
