package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ReminderConfig tunes a ReminderService.
type ReminderConfig struct {
	NotifyTimeout time.Duration
	Location      *time.Location
	// LedgerTTL bounds how long a delivery is remembered for deduplication.
	LedgerTTL  time.Duration
	LedgerSize int
	Logger     *slog.Logger
}

// ReminderService sends lecture-day reminders and admin alerts to cohorts.
type ReminderService struct {
	lectures      *LectureService
	participants  *ParticipantService
	notifier      Notifier
	notifyTimeout time.Duration
	location      *time.Location
	ledger        *deliveryLedger
	logger        *slog.Logger

	// runMu serializes SendDueReminders; the ledger check and the send it
	// guards must not interleave.
	runMu sync.Mutex
}

// NewReminderService wires dependencies for the reminder service.
func NewReminderService(lectures *LectureService, participants *ParticipantService, notifier Notifier, cfg ReminderConfig) *ReminderService {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReminderService{
		lectures:      lectures,
		participants:  participants,
		notifier:      notifier,
		notifyTimeout: cfg.NotifyTimeout,
		location:      cfg.Location,
		ledger:        newDeliveryLedger(cfg.LedgerTTL, cfg.LedgerSize),
		logger:        defaultLogger(cfg.Logger),
	}
}

func (s *ReminderService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReminderService", operation, attrs...)
}

func (s *ReminderService) ready() error {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	if s.lectures == nil || s.participants == nil || s.notifier == nil {
		return fmt.Errorf("reminder service not configured")
	}
	return nil
}

// SendDueReminders notifies the cohort of every lecture dated on asOf's
// calendar day in the service location. asOf identifies the firing: calling
// again with the same minute skips recipients already reminded. A failed
// delivery is logged and the batch continues.
func (s *ReminderService) SendDueReminders(ctx context.Context, asOf time.Time) (report ReminderReport, err error) {
	if err = s.ready(); err != nil {
		return
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()

	local := asOf.In(s.location)
	report.Date = truncateToDate(local)
	slot := local.Truncate(time.Minute).Format(time.RFC3339)

	logger := s.loggerWith(ctx, "SendDueReminders", "date", report.Date.Format(LectureDateLayout), "slot", slot)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reminder run failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder run completed",
			"lectures", report.Lectures,
			"delivered", report.Delivered,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}()

	lectures, err := s.lectures.ListOnDate(ctx, report.Date, LectureQuery{})
	if err != nil {
		return
	}
	report.Lectures = len(lectures)

	for _, lecture := range lectures {
		school := lecture.School
		cohort, listErr := s.participants.ListCohort(ctx, CohortFilter{School: &school, Direction: lecture.Direction})
		if listErr != nil {
			err = listErr
			return
		}

		text := ReminderMessage(lecture)
		for _, participant := range cohort {
			key := deliveryKey{slot: slot, lectureID: lecture.ID, username: participant.Username}
			if s.ledger.Seen(key) {
				report.Skipped++
				continue
			}
			if sendErr := s.send(ctx, participant.Username, text); sendErr != nil {
				report.Failed++
				logger.WarnContext(ctx, "reminder delivery failed",
					"lecture_id", lecture.ID, "username", participant.Username,
					"error", sendErr, "error_kind", ErrorKind(sendErr))
				continue
			}
			s.ledger.Record(key)
			report.Delivered++
		}
	}
	return
}

// Broadcast sends an alert to every registered participant of school, or of
// all schools when school is nil. A failed delivery is logged and the
// fan-out continues.
func (s *ReminderService) Broadcast(ctx context.Context, school *string, text string) (report BroadcastReport, err error) {
	if err = s.ready(); err != nil {
		return
	}

	target := "all"
	if school != nil {
		target = *school
	}
	logger := s.loggerWith(ctx, "Broadcast", "school", target)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "broadcast failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "broadcast completed",
			"recipients", report.Recipients, "delivered", report.Delivered, "failed", report.Failed)
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		vErr := &ValidationError{}
		vErr.add("text", "alert text is required")
		err = vErr
		return
	}
	if school != nil && !IsSchool(*school) {
		vErr := &ValidationError{}
		vErr.add("school", "school must be one of "+strings.Join(schools, ", "))
		err = vErr
		return
	}

	recipients, err := s.participants.ListCohort(ctx, CohortFilter{School: school})
	if err != nil {
		return
	}
	report.Recipients = len(recipients)

	message := AlertMessage(text)
	for _, participant := range recipients {
		if sendErr := s.send(ctx, participant.Username, message); sendErr != nil {
			report.Failed++
			logger.WarnContext(ctx, "alert delivery failed",
				"username", participant.Username, "error", sendErr, "error_kind", ErrorKind(sendErr))
			continue
		}
		report.Delivered++
		logger.DebugContext(ctx, "alert delivered", "username", participant.Username)
	}
	return
}

func (s *ReminderService) send(ctx context.Context, userID, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	return s.notifier.Send(sendCtx, userID, text)
}

// ReminderMessage renders the lecture-day reminder.
func ReminderMessage(l Lecture) string {
	return fmt.Sprintf("Lecture reminder!\nTopic: %s\nLecturer: %s\nDate: %s\nDescription: %s\nLink: %s",
		l.Topic, l.Lecturer, l.Date.Format(LectureDateLayout), l.Description, l.Link)
}

// AlertMessage renders an admin alert.
func AlertMessage(text string) string {
	return "Emergency alert!\n" + text
}
