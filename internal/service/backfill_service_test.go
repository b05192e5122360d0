package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/internal/repository"
	"github.com/teamcal/teamcal-api/pkg/config"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type stubBackfillRepo struct {
	db       *sqlx.DB
	keys     map[recurrence.Key]struct{}
	inserted []models.Meeting
	cleared  bool

	keysErr   error
	insertErr error
}

func (s *stubBackfillRepo) ListKeys(ctx context.Context) (map[recurrence.Key]struct{}, error) {
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	if s.keys == nil {
		return map[recurrence.Key]struct{}{}, nil
	}
	return s.keys, nil
}

func (s *stubBackfillRepo) InsertManyTx(ctx context.Context, tx *sqlx.Tx, meetings []models.Meeting) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, meetings...)
	return nil
}

func (s *stubBackfillRepo) DeleteAllTx(ctx context.Context, tx *sqlx.Tx) error {
	s.cleared = true
	return nil
}

func (s *stubBackfillRepo) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, opts)
}

type stubScheduleReader struct {
	cfg *models.ScheduleConfig
	err error
}

func (s *stubScheduleReader) Current(ctx context.Context) (*models.ScheduleConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg, nil
}

type stubAuditor struct {
	logs []*models.AuditLog
}

func (s *stubAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func newBackfillFixture(t *testing.T) (*BackfillService, *stubBackfillRepo, *stubAuditor, sqlmock.Sqlmock, func()) {
	t.Helper()
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(rawDB, "sqlmock")

	repo := &stubBackfillRepo{db: db}
	schedule := &stubScheduleReader{cfg: &models.ScheduleConfig{
		ID:          "default",
		DefaultLink: "https://x",
		Slot1Day:    4,
		Slot1Time:   "19:00",
		Slot2Day:    6,
		Slot2Time:   "13:00",
	}}
	auditor := &stubAuditor{}

	window := config.ScheduleConfig{Epoch: "2019-01-01", Horizon: 7 * 24 * time.Hour}
	svc := NewBackfillService(repo, schedule, auditor, recurrence.NewEngine(nil), nil, nil, zap.NewNop(), window)
	// Pin "now" so the window covers exactly January 2019.
	svc.now = func() time.Time { return time.Date(2019, time.January, 24, 12, 0, 0, 0, time.UTC) }

	return svc, repo, auditor, mock, func() { rawDB.Close() }
}

func TestBackfillAddMissingEmptyStore(t *testing.T) {
	svc, repo, auditor, mock, cleanup := newBackfillFixture(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyAddMissing}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 9, result.CreatedCount)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, 0, result.HolidaysExcludedCount)
	assert.Equal(t, "2019-01-01", result.RangeStart)
	assert.Equal(t, "2019-01-31", result.RangeEnd)
	assert.Len(t, repo.inserted, 9)
	assert.False(t, repo.cleared)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionBackfill, auditor.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillAddMissingIsIdempotent(t *testing.T) {
	svc, repo, _, mock, cleanup := newBackfillFixture(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	first, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyAddMissing}, "")
	require.NoError(t, err)
	require.Equal(t, 9, first.CreatedCount)

	// Second run sees everything the first run inserted; no transaction is
	// opened because the plan is empty.
	keys := make(map[recurrence.Key]struct{}, len(repo.inserted))
	for _, m := range repo.inserted {
		keys[m.Key()] = struct{}{}
	}
	repo.keys = keys
	repo.inserted = nil

	second, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyAddMissing}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Empty(t, repo.inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillReplaceAllRequiresConfirm(t *testing.T) {
	svc, repo, _, _, cleanup := newBackfillFixture(t)
	defer cleanup()

	_, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyReplaceAll}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.False(t, repo.cleared)
}

func TestBackfillReplaceAll(t *testing.T) {
	svc, repo, _, mock, cleanup := newBackfillFixture(t)
	defer cleanup()

	repo.keys = map[recurrence.Key]struct{}{
		{Date: "2018-06-01", Time: "09:00"}: {},
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyReplaceAll, Confirm: true}, "admin-1")
	require.NoError(t, err)
	assert.True(t, repo.cleared)
	assert.Equal(t, 9, result.CreatedCount)
	assert.Equal(t, 1, result.DeletedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillDuplicateKeyIsConflict(t *testing.T) {
	svc, repo, _, mock, cleanup := newBackfillFixture(t)
	defer cleanup()

	repo.insertErr = repository.ErrDuplicateKey
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyAddMissing}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillUnknownPolicy(t *testing.T) {
	svc, _, _, _, cleanup := newBackfillFixture(t)
	defer cleanup()

	_, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.Policy("purge")}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBackfillStorageSnapshotFailure(t *testing.T) {
	svc, repo, _, _, cleanup := newBackfillFixture(t)
	defer cleanup()

	repo.keysErr = sql.ErrConnDone
	_, err := svc.Run(context.Background(), BackfillRequest{Policy: recurrence.PolicyAddMissing}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStorageUnavailable.Code, appErr.Code)
}
