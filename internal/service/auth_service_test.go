package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamcal/teamcal-api/internal/models"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type stubAuthRepo struct {
	user         *models.User
	refreshToken *models.RefreshToken

	emailErr   error
	findErr    error
	refreshErr error

	createdTokens []*models.RefreshToken
	revokedIDs    []string
	revokedUser   string
	passwordHash  string
	auditLogs     []*models.AuditLog
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.emailErr != nil {
		return nil, s.emailErr
	}
	return s.user, nil
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *stubAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *stubAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.passwordHash = passwordHash
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revokedUser = userID
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.createdTokens = append(s.createdTokens, token)
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshToken, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.revokedIDs = append(s.revokedIDs, id)
	return nil
}

func (s *stubAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "teamcal-api",
		Audience:           []string{"teamcal"},
	}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "u1",
		Email:        "u1@example.com",
		PasswordHash: string(hash),
		FullName:     "User One",
		Role:         models.RoleMember,
		Active:       true,
	}
}

func TestAuthLogin(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser(t, "correct-horse")}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "u1@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "u1", resp.User.ID)
	require.Len(t, repo.createdTokens, 1)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleMember, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser(t, "correct-horse")}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "u1@example.com",
		Password: "wrong-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	repo := &stubAuthRepo{emailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	require.Error(t, err)
	// Unknown email and wrong password are indistinguishable to the caller.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "correct-horse")
	user.Active = false
	repo := &stubAuthRepo{user: user}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "u1@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	repo := &stubAuthRepo{
		user: activeUser(t, "correct-horse"),
		refreshToken: &models.RefreshToken{
			ID:        "rt1",
			UserID:    "u1",
			Token:     "old-token",
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		},
	}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedIDs, "rt1")
	require.Len(t, repo.createdTokens, 1)
}

func TestAuthRefreshExpiredToken(t *testing.T) {
	repo := &stubAuthRepo{
		user: activeUser(t, "correct-horse"),
		refreshToken: &models.RefreshToken{
			ID:        "rt1",
			UserID:    "u1",
			Token:     "old-token",
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		},
	}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshUnknownToken(t *testing.T) {
	repo := &stubAuthRepo{refreshErr: sql.ErrNoRows}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "bogus"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthLogoutForeignToken(t *testing.T) {
	repo := &stubAuthRepo{
		refreshToken: &models.RefreshToken{ID: "rt1", UserID: "someone-else", Token: "tok"},
	}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "tok", "u1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.revokedIDs)
}

func TestAuthChangePassword(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser(t, "old-password")}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "new-password-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, repo.passwordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHash), []byte("new-password-1")))
	// All sessions end when the password changes.
	assert.Equal(t, "u1", repo.revokedUser)
}

func TestAuthChangePasswordWrongOld(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser(t, "old-password")}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "not-the-password",
		NewPassword: "new-password-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.passwordHash)
}

func TestAuthValidateTokenTamperedSignature(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser(t, "correct-horse")}
	svc := NewAuthService(repo, NewValidator(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "u1@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, NewValidator(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Minute,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
