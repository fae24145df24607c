package sqlite

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/example/cohort-bot/internal/logging"
	"github.com/example/cohort-bot/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// Storage bundles the SQLite repositories over one connection pool. It
// satisfies every repository interface in the persistence package.
type Storage struct {
	*LectureRepository
	*ParticipantRepository
	*PoolRepository
	*SessionRepository

	pool *ConnectionPool
}

// Open opens the database at path with DefaultConfig.
func Open(ctx context.Context, path string) (*Storage, error) {
	return OpenWithConfig(ctx, DefaultConfig(path))
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(ctx context.Context, config Config) (*Storage, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		LectureRepository:     NewLectureRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
		PoolRepository:        NewPoolRepository(pool),
		SessionRepository:     NewSessionRepository(pool),
		pool:                  pool,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending embedded migrations. The logger is taken from ctx
// when present.
func (s *Storage) Migrate(ctx context.Context) error {
	logger := logging.OrDefault(ctx, nil)
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		"migrations",
		logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// SetNow overrides the timestamp source used for created_at/updated_at columns.
func (s *Storage) SetNow(now func() time.Time) {
	s.LectureRepository.now = now
	s.ParticipantRepository.now = now
	s.PoolRepository.now = now
	s.SessionRepository.now = now
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", value, err)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value string, valid bool) *string {
	if !valid {
		return nil
	}
	v := value
	return &v
}
