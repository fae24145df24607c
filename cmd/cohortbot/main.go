// cohortbot serves the cohort assistant: the chat webhook, the operator job
// endpoints and the built-in scheduler for pairing rounds and lecture
// reminders.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/config"
	"github.com/example/cohort-bot/internal/logging"
	"github.com/example/cohort-bot/internal/persistence/sqlite"
)

type options struct {
	envFile        string
	scheduleFile   string
	hashPassphrase string
	migrateOnly    bool
	debug          bool
}

func parseOptions(args []string, usage io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("cohortbot", pflag.ContinueOnError)
	flagSet.StringVar(&opts.envFile, "env-file", "", "load environment variables from this .env file first")
	flagSet.StringVar(&opts.scheduleFile, "schedule", "", "YAML schedule file (overrides COHORT_SCHEDULE_FILE)")
	flagSet.StringVar(&opts.hashPassphrase, "hash-passphrase", "", "print the argon2id hash of this passphrase and exit")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(usage, "Usage: cohortbot [flags]\n%s", flagSet.FlagUsages())
		}
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", rest)
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseOptions(args, stdout)
	if err != nil {
		return err
	}

	if opts.hashPassphrase != "" {
		hash, err := application.CreatePassphraseHash(opts.hashPassphrase, application.DefaultArgon2idParams)
		if err != nil {
			return fmt.Errorf("hash passphrase: %w", err)
		}
		_, err = fmt.Fprintln(stdout, hash)
		return err
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level}))

	if opts.envFile != "" {
		// Variables already present in the environment win over the file.
		if err := godotenv.Load(opts.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.scheduleFile != "" {
		cfg.ScheduleFile = opts.scheduleFile
	}

	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(logging.ContextWithLogger(ctx, logger)); err != nil {
		return err
	}
	if opts.migrateOnly {
		logger.Info("migrations applied", "database", cfg.SQLiteDSN)
		return nil
	}

	schedule, err := config.LoadSchedule(cfg.ScheduleFile, cfg.Location)
	if err != nil {
		return err
	}

	app, err := newApp(cfg, storage, schedule, logger)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
