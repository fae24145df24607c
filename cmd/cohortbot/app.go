package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/config"
	"github.com/example/cohort-bot/internal/flow"
	httptransport "github.com/example/cohort-bot/internal/http"
	"github.com/example/cohort-bot/internal/notify"
	"github.com/example/cohort-bot/internal/persistence"
	"github.com/example/cohort-bot/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// backend is the storage the bot runs on; *sqlite.Storage satisfies it.
type backend interface {
	persistence.LectureRepository
	persistence.ParticipantRepository
	persistence.PoolRepository
	persistence.SessionRepository
	Ping(ctx context.Context) error
}

type app struct {
	engine    *flow.Engine
	pairing   *application.PairingEngine
	reminders *application.ReminderService
	scheduler *scheduler.Scheduler
	handler   http.Handler
	server    *http.Server
	logger    *slog.Logger
}

func newApp(cfg config.Config, storage backend, schedule []config.ScheduledJob, logger *slog.Logger) (*app, error) {
	now := time.Now

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	lectureRepo := newLectureRepositoryAdapter(storage)
	participantRepo := newParticipantRepositoryAdapter(storage)
	poolRepo := newPoolRepositoryAdapter(storage)

	lectures := application.NewLectureServiceWithLogger(lectureRepo, now, cfg.Location, logger)
	participants := application.NewParticipantServiceWithLogger(participantRepo, poolRepo, now, logger)
	pairing := application.NewPairingEngine(poolRepo, notifier, application.PairingConfig{
		NotifyTimeout: cfg.NotifyTimeout,
		Now:           now,
		Logger:        logger,
	})
	reminders := application.NewReminderService(lectures, participants, notifier, application.ReminderConfig{
		NotifyTimeout: cfg.NotifyTimeout,
		Location:      cfg.Location,
		Logger:        logger,
	})

	store, err := newSessionStore(cfg, storage)
	if err != nil {
		return nil, err
	}
	engine, err := flow.New(flow.Services{
		Lectures:     lectures,
		Participants: participants,
		Pairing:      pairing,
		Alerts:       reminders,
		Gate:         application.NewAdminGate(cfg.AdminPassphraseHash),
	}, store, flow.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(nil, logger)
	if err := registerJobs(sched, schedule, pairing, reminders); err != nil {
		return nil, err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Events:     httptransport.NewEventHandler(engine, logger),
		Jobs:       httptransport.NewJobHandler(pairing, reminders, now, logger),
		Health:     httptransport.NewHealthHandler(storage, logger),
		Auth:       httptransport.RequireToken(cfg.WebhookToken, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{
		engine:    engine,
		pairing:   pairing,
		reminders: reminders,
		scheduler: sched,
		handler:   handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) (application.Notifier, error) {
	if cfg.RelayURL == "" {
		logger.Warn("COHORT_RELAY_URL is not set, outbound messages are only logged")
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewRelayNotifier(cfg.RelayURL, &http.Client{}, logger)
}

func newSessionStore(cfg config.Config, storage persistence.SessionRepository) (flow.SessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		return flow.NewMemoryStore(), nil
	case config.SessionStoreSQLite, "":
		return flow.NewCachedStore(newSessionStoreAdapter(storage, time.Now), cfg.SessionCacheSize)
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

type pairingRunner interface {
	RunRound(ctx context.Context, activity application.Activity) (application.RoundResult, error)
}

type reminderSender interface {
	SendDueReminders(ctx context.Context, asOf time.Time) (application.ReminderReport, error)
}

func registerJobs(sched *scheduler.Scheduler, schedule []config.ScheduledJob, pairing pairingRunner, reminders reminderSender) error {
	var problems []error
	for _, item := range schedule {
		var job scheduler.Job
		switch item.Job {
		case config.JobCoffeePairing:
			job = pairingJob(pairing, application.ActivityCoffee)
		case config.JobInterviewPairing:
			job = pairingJob(pairing, application.ActivityInterview)
		case config.JobReminders:
			job = func(ctx context.Context, occurrence time.Time) error {
				_, err := reminders.SendDueReminders(ctx, occurrence)
				return err
			}
		default:
			problems = append(problems, fmt.Errorf("unknown job %q", item.Job))
			continue
		}
		if err := sched.OnSchedule(item.Slot, item.Job, job); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

func pairingJob(pairing pairingRunner, activity application.Activity) scheduler.Job {
	return func(ctx context.Context, _ time.Time) error {
		_, err := pairing.RunRound(ctx, activity)
		return err
	}
}

// Run serves HTTP and fires scheduled jobs until ctx is cancelled, then shuts
// the server down gracefully.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("scheduler stopped", "error", err)
		}
	}()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("cohort bot listening", "addr", a.server.Addr)

	err := a.server.ListenAndServe()
	cancel()
	<-shutdownDone
	<-schedulerDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
