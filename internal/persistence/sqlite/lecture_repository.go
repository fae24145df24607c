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

// LectureRepository implements persistence.LectureRepository using SQLite
type LectureRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewLectureRepository creates a new SQLite lecture repository
func NewLectureRepository(pool *ConnectionPool) *LectureRepository {
	return &LectureRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const lectureColumns = `id, school, direction, lecturer, topic, description, link, date, created_at, updated_at`

// CreateLecture inserts a lecture and returns it with its assigned ID.
func (r *LectureRepository) CreateLecture(ctx context.Context, lecture persistence.Lecture) (persistence.Lecture, error) {
	if strings.TrimSpace(lecture.School) == "" || lecture.Date.IsZero() {
		return persistence.Lecture{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	lecture.CreatedAt = now
	lecture.UpdatedAt = now

	query := `
		INSERT INTO lectures (school, direction, lecturer, topic, description, link, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.helper.Exec(ctx, query,
		lecture.School,
		nullableString(lecture.Direction),
		lecture.Lecturer,
		lecture.Topic,
		lecture.Description,
		lecture.Link,
		formatDate(lecture.Date),
		formatTimestamp(lecture.CreatedAt),
		formatTimestamp(lecture.UpdatedAt),
	)
	if err != nil {
		return persistence.Lecture{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Lecture{}, fmt.Errorf("failed to read lecture id: %w", err)
	}
	lecture.ID = id
	return lecture, nil
}

// UpdateLecture replaces every mutable column of an existing lecture.
func (r *LectureRepository) UpdateLecture(ctx context.Context, lecture persistence.Lecture) error {
	if lecture.ID <= 0 {
		return persistence.ErrNotFound
	}
	if strings.TrimSpace(lecture.School) == "" || lecture.Date.IsZero() {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE lectures
		SET school = ?, direction = ?, lecturer = ?, topic = ?, description = ?, link = ?, date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		lecture.School,
		nullableString(lecture.Direction),
		lecture.Lecturer,
		lecture.Topic,
		lecture.Description,
		lecture.Link,
		formatDate(lecture.Date),
		formatTimestamp(r.now()),
		lecture.ID,
	)
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
}

// GetLecture retrieves a lecture by ID.
func (r *LectureRepository) GetLecture(ctx context.Context, id int64) (persistence.Lecture, error) {
	if id <= 0 {
		return persistence.Lecture{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = ?`, id)
	lecture, err := scanLecture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Lecture{}, persistence.ErrNotFound
		}
		return persistence.Lecture{}, r.mapper.MapError(err)
	}
	return lecture, nil
}

// ListLectures returns lectures matching filter ordered by ID ascending.
func (r *LectureRepository) ListLectures(ctx context.Context, filter persistence.LectureFilter) ([]persistence.Lecture, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.School != nil {
		clauses = append(clauses, "school = ?")
		args = append(args, *filter.School)
	}
	if filter.Direction != nil {
		if filter.IncludeSchoolWide {
			clauses = append(clauses, "(direction = ? OR direction IS NULL)")
		} else {
			clauses = append(clauses, "direction = ?")
		}
		args = append(args, *filter.Direction)
	}
	if filter.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, formatDate(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, formatDate(*filter.To))
	}

	query := `SELECT ` + lectureColumns + ` FROM lectures`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var lectures []persistence.Lecture
	for rows.Next() {
		lecture, err := scanLecture(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		lectures = append(lectures, lecture)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return lectures, nil
}

// DeleteLecture removes a lecture by ID.
func (r *LectureRepository) DeleteLecture(ctx context.Context, id int64) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM lectures WHERE id = ?`, id)
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
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLecture(row rowScanner) (persistence.Lecture, error) {
	var (
		lecture                            persistence.Lecture
		direction                          sql.NullString
		dateStr, createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&lecture.ID,
		&lecture.School,
		&direction,
		&lecture.Lecturer,
		&lecture.Topic,
		&lecture.Description,
		&lecture.Link,
		&dateStr,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Lecture{}, err
	}

	lecture.Direction = stringPtr(direction.String, direction.Valid)

	var err error
	if lecture.Date, err = parseDate(dateStr); err != nil {
		return persistence.Lecture{}, err
	}
	if lecture.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Lecture{}, err
	}
	if lecture.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Lecture{}, err
	}
	return lecture, nil
}
