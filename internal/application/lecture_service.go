package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LectureDateLayout is the calendar date format accepted from admins.
const LectureDateLayout = "2006-01-02"

// UpcomingWindowDays is the span of the "this week" listing, today included.
const UpcomingWindowDays = 7

// LectureService validates and persists lectures and answers schedule queries.
type LectureService struct {
	lectures LectureRepository
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewLectureService wires dependencies for the lecture service.
func NewLectureService(lectures LectureRepository, now func() time.Time, location *time.Location) *LectureService {
	return NewLectureServiceWithLogger(lectures, now, location, nil)
}

// NewLectureServiceWithLogger constructs a LectureService with a specified logger.
func NewLectureServiceWithLogger(lectures LectureRepository, now func() time.Time, location *time.Location, logger *slog.Logger) *LectureService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &LectureService{lectures: lectures, now: now, location: location, logger: defaultLogger(logger)}
}

func (s *LectureService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LectureService", operation, attrs...)
}

// ParseLectureDate parses a YYYY-MM-DD calendar date.
func ParseLectureDate(value string) (time.Time, error) {
	date, err := time.Parse(LectureDateLayout, strings.TrimSpace(value))
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("date", "date must use the YYYY-MM-DD format")
		return time.Time{}, vErr
	}
	return date, nil
}

// Today returns the current calendar date in the service location.
func (s *LectureService) Today() time.Time {
	return truncateToDate(s.now().In(s.location))
}

// Create validates draft and persists a new lecture in one repository call.
func (s *LectureService) Create(ctx context.Context, draft LectureDraft) (lecture Lecture, err error) {
	if s == nil {
		err = fmt.Errorf("LectureService is nil")
		return
	}
	if s.lectures == nil {
		err = fmt.Errorf("lecture repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Create", "school", draft.School)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "lecture create failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lecture created", "lecture_id", lecture.ID, "date", lecture.Date.Format(LectureDateLayout))
	}()

	candidate, vErr := lectureFromDraft(draft)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.CreatedAt = s.now()
	candidate.UpdatedAt = candidate.CreatedAt

	lecture, err = s.lectures.CreateLecture(ctx, candidate)
	return
}

// Update applies patch to the lecture identified by id.
func (s *LectureService) Update(ctx context.Context, id int64, patch LecturePatch) (lecture Lecture, err error) {
	if s == nil {
		err = fmt.Errorf("LectureService is nil")
		return
	}
	if s.lectures == nil {
		err = fmt.Errorf("lecture repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Update", "lecture_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "lecture update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lecture updated")
	}()

	lecture, err = s.lectures.GetLecture(ctx, id)
	if err != nil {
		return
	}

	vErr := applyLecturePatch(&lecture, patch)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	lecture.UpdatedAt = s.now()

	err = s.lectures.UpdateLecture(ctx, lecture)
	return
}

// Delete removes the lecture identified by id.
func (s *LectureService) Delete(ctx context.Context, id int64) (err error) {
	if s == nil {
		return fmt.Errorf("LectureService is nil")
	}
	if s.lectures == nil {
		return fmt.Errorf("lecture repository not configured")
	}

	logger := s.loggerWith(ctx, "Delete", "lecture_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "lecture delete failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lecture deleted")
	}()

	return s.lectures.DeleteLecture(ctx, id)
}

// Get returns one lecture.
func (s *LectureService) Get(ctx context.Context, id int64) (Lecture, error) {
	if s == nil || s.lectures == nil {
		return Lecture{}, fmt.Errorf("lecture repository not configured")
	}
	return s.lectures.GetLecture(ctx, id)
}

// List returns every lecture matching query ordered by id.
func (s *LectureService) List(ctx context.Context, query LectureQuery) ([]Lecture, error) {
	return s.list(ctx, query, nil, nil)
}

// ListInWindow returns lectures dated within [start, end], both ends inclusive.
func (s *LectureService) ListInWindow(ctx context.Context, start, end time.Time, query LectureQuery) ([]Lecture, error) {
	from := truncateToDate(start)
	to := truncateToDate(end)
	if to.Before(from) {
		vErr := &ValidationError{}
		vErr.add("window", "end must not precede start")
		return nil, vErr
	}
	return s.list(ctx, query, &from, &to)
}

// ListOnDate returns lectures dated exactly date.
func (s *LectureService) ListOnDate(ctx context.Context, date time.Time, query LectureQuery) ([]Lecture, error) {
	return s.ListInWindow(ctx, date, date, query)
}

// ListUpcoming returns lectures from today through today+UpcomingWindowDays.
func (s *LectureService) ListUpcoming(ctx context.Context, query LectureQuery) ([]Lecture, error) {
	today := s.Today()
	return s.ListInWindow(ctx, today, today.AddDate(0, 0, UpcomingWindowDays), query)
}

func (s *LectureService) list(ctx context.Context, query LectureQuery, from, to *time.Time) ([]Lecture, error) {
	if s == nil || s.lectures == nil {
		return nil, fmt.Errorf("lecture repository not configured")
	}
	lectures, err := s.lectures.ListLectures(ctx, LectureRepositoryFilter{
		School:            query.School,
		Direction:         query.Direction,
		IncludeSchoolWide: query.IncludeSchoolWide,
		From:              from,
		To:                to,
	})
	if err != nil {
		s.loggerWith(ctx, "List").ErrorContext(ctx, "lecture listing failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return lectures, nil
}

// QueryForParticipant scopes a lecture listing to the participant's cohort,
// school-wide lectures included.
func QueryForParticipant(p Participant) LectureQuery {
	school := p.School
	return LectureQuery{School: &school, Direction: p.Direction, IncludeSchoolWide: true}
}

func lectureFromDraft(draft LectureDraft) (Lecture, *ValidationError) {
	vErr := &ValidationError{}
	lecture := Lecture{
		School:      NormalizeSchool(draft.School),
		Lecturer:    strings.TrimSpace(draft.Lecturer),
		Topic:       strings.TrimSpace(draft.Topic),
		Description: strings.TrimSpace(draft.Description),
		Link:        strings.TrimSpace(draft.Link),
	}
	if direction := strings.TrimSpace(draft.Direction); direction != "" {
		lecture.Direction = &direction
	}
	validateCohort(lecture.School, lecture.Direction, vErr)
	validateLectureText(lecture, vErr)

	date, err := ParseLectureDate(draft.Date)
	if err != nil {
		var dateErr *ValidationError
		if errors.As(err, &dateErr) {
			vErr.merge(dateErr)
		}
	}
	lecture.Date = date
	return lecture, vErr
}

func applyLecturePatch(lecture *Lecture, patch LecturePatch) *ValidationError {
	vErr := &ValidationError{}
	if patch.School != nil {
		lecture.School = NormalizeSchool(*patch.School)
		if !RequiresDirection(lecture.School) {
			lecture.Direction = nil
		}
	}
	if patch.Direction != nil {
		direction := strings.TrimSpace(*patch.Direction)
		lecture.Direction = &direction
	}
	if patch.Lecturer != nil {
		lecture.Lecturer = strings.TrimSpace(*patch.Lecturer)
	}
	if patch.Topic != nil {
		lecture.Topic = strings.TrimSpace(*patch.Topic)
	}
	if patch.Description != nil {
		lecture.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Link != nil {
		lecture.Link = strings.TrimSpace(*patch.Link)
	}
	if patch.Date != nil {
		date, err := ParseLectureDate(*patch.Date)
		if err != nil {
			var dateErr *ValidationError
			if errors.As(err, &dateErr) {
				vErr.merge(dateErr)
			}
		} else {
			lecture.Date = date
		}
	}
	validateCohort(lecture.School, lecture.Direction, vErr)
	validateLectureText(*lecture, vErr)
	return vErr
}

func validateLectureText(lecture Lecture, vErr *ValidationError) {
	if lecture.Lecturer == "" {
		vErr.add("lecturer", "lecturer is required")
	}
	if lecture.Topic == "" {
		vErr.add("topic", "topic is required")
	}
	if lecture.Description == "" {
		vErr.add("description", "description is required")
	}
	if lecture.Link == "" {
		vErr.add("link", "link is required")
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatLecture renders a lecture for chat listings.
func FormatLecture(l Lecture) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nLecturer: %s\nDate: %s", l.Topic, l.Lecturer, l.Date.Format(LectureDateLayout))
	if l.Direction != nil {
		fmt.Fprintf(&b, "\nDirection: %s", *l.Direction)
	}
	fmt.Fprintf(&b, "\nDescription: %s\nLink: %s", l.Description, l.Link)
	return b.String()
}
