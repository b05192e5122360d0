package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamcal/teamcal-api/internal/models"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type setupRepository interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetupService bootstraps the first administrator account on a fresh install.
type SetupService struct {
	repo      setupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSetupService constructs a SetupService.
func NewSetupService(repo setupRepository, validate *validator.Validate, logger *zap.Logger) *SetupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SetupService{repo: repo, validator: validate, logger: logger}
}

// Required reports whether the install still needs its first administrator.
func (s *SetupService) Required(ctx context.Context) (bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	return count == 0, nil
}

// Initialize creates the first administrator. Once any user exists the
// endpoint is permanently closed.
func (s *SetupService) Initialize(ctx context.Context, req models.SetupRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setup payload")
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	if count > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "setup has already been completed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create administrator")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &admin.ID,
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &admin.ID,
		NewValues:  []byte(`{"setup":true}`),
	}); err != nil {
		s.logger.Warn("failed to record setup audit log", zap.Error(err))
	}

	return admin, nil
}
