package recurrence

import (
	"errors"
	"testing"
	"time"
)

var msk = time.FixedZone("MSK", 3*60*60)

func TestSlotNext(t *testing.T) {
	t.Parallel()

	// 2024-03-07 is a Thursday.
	thursday := time.Date(2024, time.March, 7, 9, 0, 0, 0, msk)

	tests := []struct {
		name  string
		slot  Slot
		after time.Time
		want  time.Time
	}{
		{
			name:  "later this week",
			slot:  Weekly(time.Friday, 10, 0, msk),
			after: thursday,
			want:  time.Date(2024, time.March, 8, 10, 0, 0, 0, msk),
		},
		{
			name:  "exact occurrence moves to the next week",
			slot:  Weekly(time.Friday, 10, 0, msk),
			after: time.Date(2024, time.March, 8, 10, 0, 0, 0, msk),
			want:  time.Date(2024, time.March, 15, 10, 0, 0, 0, msk),
		},
		{
			name:  "today when the time is still ahead",
			slot:  Weekly(time.Thursday, 10, 0, msk),
			after: thursday,
			want:  time.Date(2024, time.March, 7, 10, 0, 0, 0, msk),
		},
		{
			name:  "next week when today's time has passed",
			slot:  Weekly(time.Thursday, 8, 30, msk),
			after: thursday,
			want:  time.Date(2024, time.March, 14, 8, 30, 0, 0, msk),
		},
		{
			name:  "daily rolls over to tomorrow",
			slot:  Daily(6, 0, msk),
			after: thursday,
			want:  time.Date(2024, time.March, 8, 6, 0, 0, 0, msk),
		},
		{
			name:  "input in another zone",
			slot:  Daily(12, 0, msk),
			after: time.Date(2024, time.March, 7, 8, 59, 0, 0, time.UTC),
			want:  time.Date(2024, time.March, 7, 12, 0, 0, 0, msk),
		},
		{
			name:  "nil location is UTC",
			slot:  Daily(0, 0, nil),
			after: time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC),
			want:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.slot.Next(tt.after)
			if err != nil {
				t.Fatalf("Next returned error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSlotValidate(t *testing.T) {
	t.Parallel()

	for _, slot := range []Slot{
		{Hour: 24},
		{Minute: 60},
		{Hour: -1},
		{Weekdays: []time.Weekday{7}},
	} {
		if err := slot.Validate(); !errors.Is(err, ErrInvalidSlot) {
			t.Fatalf("expected ErrInvalidSlot for %+v, got %v", slot, err)
		}
		if _, err := slot.Next(time.Now()); !errors.Is(err, ErrInvalidSlot) {
			t.Fatalf("expected Next to reject %+v, got %v", slot, err)
		}
	}
}

func TestSlotOccurrences(t *testing.T) {
	t.Parallel()

	t.Run("window is inclusive", func(t *testing.T) {
		t.Parallel()

		slot := Slot{Weekdays: []time.Weekday{time.Monday, time.Wednesday}, Hour: 9, Location: msk}
		from := time.Date(2024, time.March, 4, 9, 0, 0, 0, msk) // Monday
		to := time.Date(2024, time.March, 13, 9, 0, 0, 0, msk)  // Wednesday

		got, err := slot.Occurrences(from, to)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 occurrences, got %v", got)
		}
		if !got[0].Equal(from) || !got[3].Equal(to) {
			t.Fatalf("expected both bounds to be included, got %v", got)
		}
		for i := 1; i < len(got); i++ {
			if !got[i].After(got[i-1]) {
				t.Fatalf("occurrences out of order: %v", got)
			}
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		if _, err := Daily(1, 0, nil).Occurrences(now, now.Add(-time.Hour)); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow, got %v", err)
		}
	})
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   time.Weekday
		wantOK bool
	}{
		{in: "friday", want: time.Friday, wantOK: true},
		{in: "Wed", want: time.Wednesday, wantOK: true},
		{in: " SUNDAY ", want: time.Sunday, wantOK: true},
		{in: "daily"},
		{in: "*"},
		{in: ""},
	}
	for _, tt := range tests {
		day, ok, err := ParseWeekday(tt.in)
		if err != nil {
			t.Fatalf("ParseWeekday(%q) returned error: %v", tt.in, err)
		}
		if ok != tt.wantOK || (ok && day != tt.want) {
			t.Fatalf("ParseWeekday(%q) = %v, %v", tt.in, day, ok)
		}
	}

	if _, _, err := ParseWeekday("someday"); !errors.Is(err, ErrUnknownWeekday) {
		t.Fatalf("expected ErrUnknownWeekday, got %v", err)
	}
}

func TestSlotString(t *testing.T) {
	t.Parallel()

	if got := Weekly(time.Friday, 10, 0, msk).String(); got != "Fri 10:00 MSK" {
		t.Fatalf("unexpected rendering %q", got)
	}
	if got := Daily(18, 5, nil).String(); got != "daily 18:05 UTC" {
		t.Fatalf("unexpected rendering %q", got)
	}
}
