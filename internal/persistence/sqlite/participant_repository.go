package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/cohort-bot/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite
type ParticipantRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewParticipantRepository creates a new SQLite participant repository
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const participantColumns = `username, school, direction, coffee_opt_in, interview_opt_in, created_at, updated_at`

// UpsertParticipant inserts the participant or replaces the existing record
// with the same username. created_at of an existing record is preserved.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if strings.TrimSpace(participant.Username) == "" || strings.TrimSpace(participant.School) == "" {
		return persistence.ErrConstraintViolation
	}

	now := formatTimestamp(r.now())
	query := `
		INSERT INTO participants (username, school, direction, coffee_opt_in, interview_opt_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			school = excluded.school,
			direction = excluded.direction,
			coffee_opt_in = excluded.coffee_opt_in,
			interview_opt_in = excluded.interview_opt_in,
			updated_at = excluded.updated_at
	`
	_, err := r.helper.Exec(ctx, query,
		participant.Username,
		participant.School,
		nullableString(participant.Direction),
		boolToInt(participant.CoffeeOptIn),
		boolToInt(participant.InterviewOptIn),
		now,
		now,
	)
	return r.mapper.MapError(err)
}

// GetParticipant retrieves a participant by username.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, username string) (persistence.Participant, error) {
	if username == "" {
		return persistence.Participant{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE username = ?`, username)
	participant, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Participant{}, persistence.ErrNotFound
		}
		return persistence.Participant{}, r.mapper.MapError(err)
	}
	return participant, nil
}

// ListParticipants returns participants matching filter ordered by username.
func (r *ParticipantRepository) ListParticipants(ctx context.Context, filter persistence.ParticipantFilter) ([]persistence.Participant, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.School != nil {
		clauses = append(clauses, "school = ?")
		args = append(args, *filter.School)
	}
	if filter.Direction != nil {
		clauses = append(clauses, "direction = ?")
		args = append(args, *filter.Direction)
	}

	query := `SELECT ` + participantColumns + ` FROM participants`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY username ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var participants []persistence.Participant
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return participants, nil
}

// DeleteParticipant removes a participant and any pool entries they hold.
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, username string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM unpaired WHERE username = ?`, username); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM participants WHERE username = ?`, username)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func scanParticipant(row rowScanner) (persistence.Participant, error) {
	var (
		participant                  persistence.Participant
		direction                    sql.NullString
		coffee, interview            int
		createdAtStr, updatedAtStr   string
	)
	if err := row.Scan(
		&participant.Username,
		&participant.School,
		&direction,
		&coffee,
		&interview,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Participant{}, err
	}

	participant.Direction = stringPtr(direction.String, direction.Valid)
	participant.CoffeeOptIn = coffee == 1
	participant.InterviewOptIn = interview == 1

	var err error
	if participant.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Participant{}, err
	}
	if participant.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Participant{}, err
	}
	return participant, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
