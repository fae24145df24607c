package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/example/cohort-bot/internal/persistence"
)

// scratchEncMode encodes scratch maps deterministically (sorted keys), so an
// unchanged session always produces the same bytes.
var (
	scratchEncMode cbor.EncMode
	scratchDecMode cbor.DecMode
)

func init() {
	var err error
	scratchEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sqlite: CBOR encoder initialization failed: " + err.Error())
	}
	scratchDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("sqlite: CBOR decoder initialization failed: " + err.Error())
	}
}

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// GetSession loads the session stored for userID.
func (r *SessionRepository) GetSession(ctx context.Context, userID string) (persistence.SessionRecord, error) {
	if userID == "" {
		return persistence.SessionRecord{}, persistence.ErrNotFound
	}

	var (
		session      persistence.SessionRecord
		scratch      []byte
		updatedAtStr string
	)
	err := r.helper.QueryRow(ctx,
		`SELECT user_id, flow, state, scratch, updated_at FROM sessions WHERE user_id = ?`, userID,
	).Scan(&session.UserID, &session.Flow, &session.State, &scratch, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.SessionRecord{}, persistence.ErrNotFound
		}
		return persistence.SessionRecord{}, r.mapper.MapError(err)
	}

	session.Scratch = map[string]string{}
	if len(scratch) > 0 {
		if err := scratchDecMode.Unmarshal(scratch, &session.Scratch); err != nil {
			return persistence.SessionRecord{}, fmt.Errorf("failed to decode session scratch: %w", err)
		}
	}
	if session.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.SessionRecord{}, err
	}
	return session, nil
}

// PutSession inserts or replaces the session for session.UserID.
func (r *SessionRepository) PutSession(ctx context.Context, session persistence.SessionRecord) error {
	if strings.TrimSpace(session.UserID) == "" || session.Flow == "" || session.State == "" {
		return persistence.ErrConstraintViolation
	}

	scratch := session.Scratch
	if scratch == nil {
		scratch = map[string]string{}
	}
	encoded, err := scratchEncMode.Marshal(scratch)
	if err != nil {
		return fmt.Errorf("failed to encode session scratch: %w", err)
	}

	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.now()
	}

	query := `
		INSERT INTO sessions (user_id, flow, state, scratch, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			flow = excluded.flow,
			state = excluded.state,
			scratch = excluded.scratch,
			updated_at = excluded.updated_at
	`
	_, err = r.helper.Exec(ctx, query, session.UserID, session.Flow, session.State, encoded, formatTimestamp(updatedAt))
	return r.mapper.MapError(err)
}

// DeleteSession removes the session for userID. Deleting a missing session
// is not an error.
func (r *SessionRepository) DeleteSession(ctx context.Context, userID string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return r.mapper.MapError(err)
}
