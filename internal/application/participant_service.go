package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ParticipantService manages registrations, activity opt-in and the admin
// privilege toggle.
type ParticipantService struct {
	participants ParticipantRepository
	pool         PoolRepository
	now          func() time.Time
	logger       *slog.Logger
}

// NewParticipantService wires dependencies for the participant service.
func NewParticipantService(participants ParticipantRepository, pool PoolRepository, now func() time.Time) *ParticipantService {
	return NewParticipantServiceWithLogger(participants, pool, now, nil)
}

// NewParticipantServiceWithLogger constructs a ParticipantService with a specified logger.
func NewParticipantServiceWithLogger(participants ParticipantRepository, pool PoolRepository, now func() time.Time, logger *slog.Logger) *ParticipantService {
	if now == nil {
		now = time.Now
	}
	return &ParticipantService{participants: participants, pool: pool, now: now, logger: defaultLogger(logger)}
}

func (s *ParticipantService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ParticipantService", operation, attrs...)
}

func (s *ParticipantService) ready() error {
	if s == nil {
		return fmt.Errorf("ParticipantService is nil")
	}
	if s.participants == nil {
		return fmt.Errorf("participant repository not configured")
	}
	return nil
}

// Register stores the participant's cohort. Re-registering replaces the
// record and resets both opt-in preferences, dropping any queued pool entries.
func (s *ParticipantService) Register(ctx context.Context, username, school, direction string) (participant Participant, err error) {
	if err = s.ready(); err != nil {
		return
	}

	username = strings.TrimSpace(username)
	logger := s.loggerWith(ctx, "Register", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration completed", "school", participant.School, "direction", derefString(participant.Direction))
	}()

	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "username is required")
	}
	participant = Participant{Username: username, School: NormalizeSchool(school)}
	if d := strings.TrimSpace(direction); d != "" {
		participant.Direction = &d
	}
	validateCohort(participant.School, participant.Direction, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.participants.UpsertParticipant(ctx, participant); err != nil {
		return
	}
	if s.pool != nil {
		for _, activity := range Activities() {
			if err = s.pool.RemovePoolEntry(ctx, activity, username); err != nil {
				return
			}
		}
	}
	return
}

// Get returns the participant record for username.
func (s *ParticipantService) Get(ctx context.Context, username string) (Participant, error) {
	if err := s.ready(); err != nil {
		return Participant{}, err
	}
	return s.participants.GetParticipant(ctx, username)
}

// Lookup returns the registered participant for username. Missing records and
// records held by the admin sentinel report ErrNotRegistered.
func (s *ParticipantService) Lookup(ctx context.Context, username string) (Participant, error) {
	participant, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Participant{}, ErrNotRegistered
		}
		return Participant{}, err
	}
	if participant.IsAdmin() {
		return Participant{}, ErrNotRegistered
	}
	return participant, nil
}

// ListCohort returns registered participants matching filter. Admin sentinel
// records are never part of a cohort.
func (s *ParticipantService) ListCohort(ctx context.Context, filter CohortFilter) ([]Participant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	participants, err := s.participants.ListParticipants(ctx, filter)
	if err != nil {
		return nil, err
	}
	cohort := participants[:0]
	for _, p := range participants {
		if !p.IsAdmin() {
			cohort = append(cohort, p)
		}
	}
	return cohort, nil
}

// ToggleOptIn flips the participant's preference for activity. Opting in
// queues the participant for the next round; opting out removes the queued
// entry. On error the stored flag is unchanged.
func (s *ParticipantService) ToggleOptIn(ctx context.Context, username string, activity Activity) (optedIn bool, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if s.pool == nil {
		err = fmt.Errorf("pool repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ToggleOptIn", "username", username, "activity", string(activity))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "opt-in toggle failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "opt-in toggled", "opted_in", optedIn)
	}()

	var participant Participant
	if participant, err = s.Lookup(ctx, username); err != nil {
		return
	}

	optedIn = !participant.OptedIn(activity)
	switch activity {
	case ActivityCoffee:
		participant.CoffeeOptIn = optedIn
	case ActivityInterview:
		participant.InterviewOptIn = optedIn
	default:
		_, err = ParseActivity(string(activity))
		return
	}

	// Pool first: if either write fails the stored flag is unchanged and a
	// retry repeats the same toggle.
	if optedIn {
		err = s.pool.UpsertPoolEntry(ctx, PoolEntry{
			Activity:  activity,
			Username:  participant.Username,
			School:    participant.School,
			Direction: participant.Direction,
			QueuedAt:  s.now(),
		})
	} else {
		err = s.pool.RemovePoolEntry(ctx, activity, participant.Username)
	}
	if err != nil {
		return
	}
	err = s.participants.UpsertParticipant(ctx, participant)
	return
}

// ActivateAdmin writes the admin sentinel into the participant's school and
// returns the value it replaced. A participant without a record gets a
// sentinel-only record and the stash NoPriorRecord. Activating twice stashes
// the sentinel itself, so the original school is lost.
func (s *ParticipantService) ActivateAdmin(ctx context.Context, username string) (stash string, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ActivateAdmin", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "admin activation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "admin mode activated", "stash", stash)
	}()

	participant, getErr := s.participants.GetParticipant(ctx, username)
	switch {
	case getErr == nil:
		stash = participant.School
		participant.School = AdminSchool
	case errors.Is(getErr, ErrNotFound):
		stash = NoPriorRecord
		participant = Participant{Username: username, School: AdminSchool}
	default:
		err = getErr
		return
	}

	err = s.participants.UpsertParticipant(ctx, participant)
	return
}

// DeactivateAdmin reverses ActivateAdmin using the stash it returned.
func (s *ParticipantService) DeactivateAdmin(ctx context.Context, username, stash string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeactivateAdmin", "username", username, "stash", stash)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "admin deactivation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "admin mode deactivated")
	}()

	if stash == NoPriorRecord || stash == "" {
		err = s.participants.DeleteParticipant(ctx, username)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		return
	}

	var participant Participant
	if participant, err = s.participants.GetParticipant(ctx, username); err != nil {
		return
	}
	participant.School = stash
	err = s.participants.UpsertParticipant(ctx, participant)
	return
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
