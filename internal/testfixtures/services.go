package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/cohort-bot/internal/application"
)

// ServiceFactory assists tests with constructing application services over
// one in-memory storage, one recording notifier and one deterministic clock.
type ServiceFactory struct {
	Clock    *Clock
	Storage  *MemoryStorage
	Notifier *RecordingNotifier
	Location *time.Location
	Logger   *slog.Logger
	// Seed makes pairing shuffles reproducible.
	Seed [2]uint64
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(time.Time{}),
		Storage:  NewMemoryStorage(),
		Notifier: NewRecordingNotifier(),
		Location: time.UTC,
		Seed:     [2]uint64{1, 2},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Storage == nil {
		factory.Storage = NewMemoryStorage()
	}
	if factory.Notifier == nil {
		factory.Notifier = NewRecordingNotifier()
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithLocation overrides the zone used for calendar dates.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// WithSeed overrides the pairing shuffle seed.
func WithSeed(seed1, seed2 uint64) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Seed = [2]uint64{seed1, seed2}
	}
}

// NewLectureService builds a lecture service over the factory storage.
func (f *ServiceFactory) NewLectureService() *application.LectureService {
	return application.NewLectureServiceWithLogger(f.Storage, f.Clock.NowFunc(), f.Location, f.Logger)
}

// NewParticipantService builds a participant service over the factory storage.
func (f *ServiceFactory) NewParticipantService() *application.ParticipantService {
	return application.NewParticipantServiceWithLogger(f.Storage, f.Storage, f.Clock.NowFunc(), f.Logger)
}

// NewPairingEngine builds a pairing engine with a seeded shuffle.
func (f *ServiceFactory) NewPairingEngine() *application.PairingEngine {
	return application.NewPairingEngine(f.Storage, f.Notifier, application.PairingConfig{
		NotifyTimeout: time.Second,
		Shuffle:       application.SeededShuffle(f.Seed[0], f.Seed[1]),
		Now:           f.Clock.NowFunc(),
		Logger:        f.Logger,
	})
}

// NewReminderService builds a reminder service over fresh lecture and
// participant services.
func (f *ServiceFactory) NewReminderService() *application.ReminderService {
	return application.NewReminderService(f.NewLectureService(), f.NewParticipantService(), f.Notifier, application.ReminderConfig{
		NotifyTimeout: time.Second,
		Location:      f.Location,
		Logger:        f.Logger,
	})
}
