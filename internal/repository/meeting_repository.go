package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
)

const meetingColumns = "id, date, time, title, notes, link, created_at, updated_at"

// uniqueViolation is the Postgres error code raised when an insert collides
// with the (date, time) unique constraint.
const uniqueViolation = "23505"

// ErrDuplicateKey signals an insert that collided with an existing
// (date, time) natural key. Under correct reconciliation it indicates a
// concurrent writer, so callers surface it as a conflict.
var ErrDuplicateKey = errors.New("meeting with this date and time already exists")

// MeetingRepository persists meeting occurrences.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs a meeting repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// List returns meetings filtered relative to today. Upcoming listings sort
// ascending, previous listings descending, matching how a calendar view
// consumes them.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingTimeFilter, today string) ([]models.Meeting, error) {
	query := fmt.Sprintf("SELECT %s FROM meetings", meetingColumns)
	var args []interface{}
	order := " ORDER BY date ASC, time ASC"

	switch filter {
	case models.MeetingFilterUpcoming:
		query += " WHERE date >= $1"
		args = append(args, today)
	case models.MeetingFilterPrevious:
		query += " WHERE date < $1"
		args = append(args, today)
		order = " ORDER BY date DESC, time DESC"
	}

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query+order, args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// ListKeys returns the natural keys of every persisted meeting. The snapshot
// feeds reconciliation and must be complete before a plan is computed.
func (r *MeetingRepository) ListKeys(ctx context.Context) (map[recurrence.Key]struct{}, error) {
	var rows []recurrence.Key
	if err := r.db.SelectContext(ctx, &rows, "SELECT date, time FROM meetings"); err != nil {
		return nil, fmt.Errorf("list meeting keys: %w", err)
	}
	keys := make(map[recurrence.Key]struct{}, len(rows))
	for _, key := range rows {
		keys[key] = struct{}{}
	}
	return keys, nil
}

// FindByID fetches a meeting.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := fmt.Sprintf("SELECT %s FROM meetings WHERE id = $1", meetingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}
	return &meeting, nil
}

// FindByKey fetches a meeting by its (date, time) natural key.
func (r *MeetingRepository) FindByKey(ctx context.Context, key recurrence.Key) (*models.Meeting, error) {
	query := fmt.Sprintf("SELECT %s FROM meetings WHERE date = $1 AND time = $2 LIMIT 1", meetingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, key.Date, key.Time); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by key: %w", err)
	}
	return &meeting, nil
}

// Create inserts a single meeting.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	const query = `INSERT INTO meetings (id, date, time, title, notes, link, created_at, updated_at) VALUES (:id, :date, :time, :title, :notes, :link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return wrapMeetingInsertErr(err)
	}
	return nil
}

// Update modifies the mutable fields of a meeting.
func (r *MeetingRepository) Update(ctx context.Context, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE meetings SET time = :time, title = :title, notes = :notes, link = :link, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return wrapMeetingInsertErr(err)
	}
	return nil
}

// Delete removes a meeting by id.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM meetings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertManyTx bulk-inserts meetings within a transaction.
func (r *MeetingRepository) InsertManyTx(ctx context.Context, tx *sqlx.Tx, meetings []models.Meeting) error {
	const query = `INSERT INTO meetings (id, date, time, title, notes, link, created_at, updated_at) VALUES (:id, :date, :time, :title, :notes, :link, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range meetings {
		if meetings[i].ID == "" {
			meetings[i].ID = uuid.NewString()
		}
		if meetings[i].CreatedAt.IsZero() {
			meetings[i].CreatedAt = now
		}
		meetings[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, meetings[i]); err != nil {
			return wrapMeetingInsertErr(err)
		}
	}
	return nil
}

// DeleteAllTx removes every meeting within a transaction.
func (r *MeetingRepository) DeleteAllTx(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM meetings"); err != nil {
		return fmt.Errorf("delete all meetings: %w", err)
	}
	return nil
}

// UpdateLinkFrom patches the conferencing link on every meeting dated on or
// after the given day. Past occurrences keep their historical link.
func (r *MeetingRepository) UpdateLinkFrom(ctx context.Context, dateGte, link string) (int64, error) {
	const query = `UPDATE meetings SET link = $2, updated_at = $3 WHERE date >= $1`
	result, err := r.db.ExecContext(ctx, query, dateGte, link, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update meeting links: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// BeginTxx opens a transaction for plan application.
func (r *MeetingRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

func wrapMeetingInsertErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return fmt.Errorf("write meeting: %w", err)
}
