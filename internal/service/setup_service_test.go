package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/models"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type stubSetupRepo struct {
	count    int
	countErr error

	created   *models.User
	auditLogs []*models.AuditLog
}

func (s *stubSetupRepo) Count(ctx context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.count, nil
}

func (s *stubSetupRepo) Create(ctx context.Context, user *models.User) error {
	s.created = user
	s.count++
	return nil
}

func (s *stubSetupRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

func TestSetupRequired(t *testing.T) {
	svc := NewSetupService(&stubSetupRepo{count: 0}, NewValidator(), zap.NewNop())
	required, err := svc.Required(context.Background())
	require.NoError(t, err)
	assert.True(t, required)

	svc = NewSetupService(&stubSetupRepo{count: 3}, NewValidator(), zap.NewNop())
	required, err = svc.Required(context.Background())
	require.NoError(t, err)
	assert.False(t, required)
}

func TestSetupInitializeCreatesAdmin(t *testing.T) {
	repo := &stubSetupRepo{}
	svc := NewSetupService(repo, NewValidator(), zap.NewNop())

	admin, err := svc.Initialize(context.Background(), models.SetupRequest{
		Email:    "owner@example.com",
		Password: "first-admin-1",
		FullName: "Owner",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)
	require.NotNil(t, repo.created)
	require.Len(t, repo.auditLogs, 1)
}

func TestSetupInitializeClosedOnceUsersExist(t *testing.T) {
	repo := &stubSetupRepo{count: 1}
	svc := NewSetupService(repo, NewValidator(), zap.NewNop())

	_, err := svc.Initialize(context.Background(), models.SetupRequest{
		Email:    "late@example.com",
		Password: "too-late-now",
		FullName: "Late",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}
