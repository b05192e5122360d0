package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
)

func newMeetingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func meetingRows(meetings ...models.Meeting) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "date", "time", "title", "notes", "link", "created_at", "updated_at"})
	for _, m := range meetings {
		rows.AddRow(m.ID, m.Date, m.Time, m.Title, m.Notes, m.Link, time.Now(), time.Now())
	}
	return rows
}

func TestMeetingRepositoryListUpcoming(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, date, time, title, notes, link, created_at, updated_at FROM meetings WHERE date >= $1 ORDER BY date ASC, time ASC")).
		WithArgs("2025-06-15").
		WillReturnRows(meetingRows(
			models.Meeting{ID: "m1", Date: "2025-06-19", Time: "19:00", Title: "Team Meeting - Thursday, Jun 19, 2025"},
			models.Meeting{ID: "m2", Date: "2025-06-21", Time: "13:00", Title: "Saturday Team Meeting - Jun 21, 2025"},
		))

	meetings, err := repo.List(context.Background(), models.MeetingFilterUpcoming, "2025-06-15")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	require.Equal(t, "m1", meetings[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListPreviousOrdersDescending(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE date < $1 ORDER BY date DESC, time DESC")).
		WithArgs("2025-06-15").
		WillReturnRows(meetingRows(models.Meeting{ID: "m3", Date: "2025-06-12", Time: "19:00"}))

	meetings, err := repo.List(context.Background(), models.MeetingFilterPrevious, "2025-06-15")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListKeys(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date, time FROM meetings")).
		WillReturnRows(sqlmock.NewRows([]string{"date", "time"}).
			AddRow("2025-06-19", "19:00").
			AddRow("2025-06-21", "13:00"))

	keys, err := repo.ListKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	_, ok := keys[recurrence.Key{Date: "2025-06-19", Time: "19:00"}]
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryCreateDuplicateKey(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meetings")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Meeting{Date: "2025-06-19", Time: "19:00", Title: "x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meetings WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryUpdateLinkFrom(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meetings SET link = $2, updated_at = $3 WHERE date >= $1")).
		WithArgs("2025-06-15", "https://meet.example.com/new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	affected, err := repo.UpdateLinkFrom(context.Background(), "2025-06-15", "https://meet.example.com/new")
	require.NoError(t, err)
	require.Equal(t, int64(42), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryInsertManyTx(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewMeetingRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meetings")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meetings")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.InsertManyTx(context.Background(), tx, []models.Meeting{
		{Date: "2025-06-19", Time: "19:00", Title: "a"},
		{Date: "2025-06-21", Time: "13:00", Title: "b"},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
