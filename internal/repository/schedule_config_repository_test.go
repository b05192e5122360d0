package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/teamcal/teamcal-api/internal/models"
)

func TestScheduleConfigRepositoryGet(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewScheduleConfigRepository(db)
	rows := sqlmock.NewRows([]string{"id", "default_link", "slot1_day", "slot1_time", "slot2_day", "slot2_time", "updated_by", "updated_at"}).
		AddRow("default", "https://meet.example.com/room", 4, "19:00", 6, "13:00", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, default_link, slot1_day, slot1_time, slot2_day, slot2_time, updated_by, updated_at FROM schedule_config WHERE id = $1")).
		WithArgs("default").
		WillReturnRows(rows)

	cfg, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Slot1Day)
	require.Equal(t, "13:00", cfg.Slot2Time)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleConfigRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewScheduleConfigRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_config")).
		WithArgs("default").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleConfigRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()

	repo := NewScheduleConfigRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_config")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := &models.ScheduleConfig{
		DefaultLink: "https://meet.example.com/room",
		Slot1Day:    4,
		Slot1Time:   "19:00",
		Slot2Day:    6,
		Slot2Time:   "13:00",
	}
	require.NoError(t, repo.Upsert(context.Background(), cfg))
	require.Equal(t, "default", cfg.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
