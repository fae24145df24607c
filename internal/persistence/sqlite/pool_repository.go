package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/cohort-bot/internal/persistence"
)

// PoolRepository implements persistence.PoolRepository over the unpaired table.
type PoolRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewPoolRepository creates a new SQLite pairing pool repository
func NewPoolRepository(pool *ConnectionPool) *PoolRepository {
	return &PoolRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// UpsertPoolEntry inserts entry or replaces the entry with the same
// (activity, username) key.
func (r *PoolRepository) UpsertPoolEntry(ctx context.Context, entry persistence.PoolEntry) error {
	if strings.TrimSpace(entry.Activity) == "" || strings.TrimSpace(entry.Username) == "" {
		return persistence.ErrConstraintViolation
	}
	queuedAt := entry.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = r.now()
	}

	query := `
		INSERT INTO unpaired (activity, username, school, direction, queued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (activity, username) DO UPDATE SET
			school = excluded.school,
			direction = excluded.direction,
			queued_at = excluded.queued_at
	`
	_, err := r.helper.Exec(ctx, query,
		entry.Activity,
		entry.Username,
		entry.School,
		nullableString(entry.Direction),
		formatTimestamp(queuedAt),
	)
	return r.mapper.MapError(err)
}

// ListPool returns every entry queued for activity, oldest first.
func (r *PoolRepository) ListPool(ctx context.Context, activity string) ([]persistence.PoolEntry, error) {
	query := `
		SELECT activity, username, school, direction, queued_at
		FROM unpaired
		WHERE activity = ?
		ORDER BY queued_at ASC, username ASC
	`
	rows, err := r.helper.Query(ctx, query, activity)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.PoolEntry
	for rows.Next() {
		var (
			entry       persistence.PoolEntry
			direction   sql.NullString
			queuedAtStr string
		)
		if err := rows.Scan(&entry.Activity, &entry.Username, &entry.School, &direction, &queuedAtStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		entry.Direction = stringPtr(direction.String, direction.Valid)
		if entry.QueuedAt, err = parseTimestamp(queuedAtStr); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}

// RemovePoolEntry deletes one entry. Removing a missing entry is not an error.
func (r *PoolRepository) RemovePoolEntry(ctx context.Context, activity, username string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM unpaired WHERE activity = ? AND username = ?`, activity, username)
	return r.mapper.MapError(err)
}

// ClearPool deletes every entry queued for activity.
func (r *PoolRepository) ClearPool(ctx context.Context, activity string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM unpaired WHERE activity = ?`, activity)
	return r.mapper.MapError(err)
}
