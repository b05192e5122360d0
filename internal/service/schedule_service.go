package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/pkg/config"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type scheduleConfigRepository interface {
	Get(ctx context.Context) (*models.ScheduleConfig, error)
	Upsert(ctx context.Context, cfg *models.ScheduleConfig) error
}

type meetingLinkUpdater interface {
	UpdateLinkFrom(ctx context.Context, dateGte, link string) (int64, error)
}

type scheduleAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ScheduleService owns the persisted schedule configuration: the two weekly
// slots and the default conferencing link.
type ScheduleService struct {
	repo      scheduleConfigRepository
	meetings  meetingLinkUpdater
	audit     scheduleAuditor
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  config.ScheduleConfig
	now       func() time.Time
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleConfigRepository, meetings meetingLinkUpdater, audit scheduleAuditor, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaults config.ScheduleConfig) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ScheduleService{
		repo:      repo,
		meetings:  meetings,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Current returns the stored schedule configuration, installing the
// configured defaults on first access.
func (s *ScheduleService) Current(ctx context.Context) (*models.ScheduleConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule config")
	}

	seeded := s.defaultConfig()
	if err := s.repo.Upsert(ctx, seeded); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed schedule config")
	}
	return seeded, nil
}

// Update applies a partial update to the schedule configuration. An updated
// default link is propagated to every meeting dated today or later; past
// meetings keep the link they were held with.
func (s *ScheduleService) Update(ctx context.Context, patch models.SchedulePatch, actorID string) (*models.ScheduleConfig, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no schedule fields to update")
	}

	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	next := current.Apply(patch)
	if err := next.Schedule().Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule")
	}

	next.UpdatedAt = s.now()
	if actorID != "" {
		next.UpdatedBy = &actorID
	}

	if err := s.repo.Upsert(ctx, &next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store schedule config")
	}

	if patch.DefaultLink != nil && *patch.DefaultLink != current.DefaultLink {
		today := s.now().Format(recurrence.DateLayout)
		updated, err := s.meetings.UpdateLinkFrom(ctx, today, *patch.DefaultLink)
		if err != nil {
			s.logger.Error("failed to propagate default link", zap.Error(err))
		} else {
			s.logger.Info("propagated default link to upcoming meetings", zap.Int64("meetings", updated))
		}
		if s.cache != nil {
			s.cache.Invalidate(ctx, meetingCachePattern)
		}
	}

	s.recordAudit(ctx, actorID, current, &next)
	return &next, nil
}

func (s *ScheduleService) defaultConfig() *models.ScheduleConfig {
	return &models.ScheduleConfig{
		ID:          "default",
		DefaultLink: s.defaults.DefaultLink,
		Slot1Day:    s.defaults.DefaultSlot1Day,
		Slot1Time:   s.defaults.DefaultSlot1At,
		Slot2Day:    s.defaults.DefaultSlot2Day,
		Slot2Time:   s.defaults.DefaultSlot2At,
		UpdatedAt:   s.now(),
	}
}

func (s *ScheduleService) recordAudit(ctx context.Context, actorID string, before, after *models.ScheduleConfig) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(before)
	newValues, _ := json.Marshal(after)
	resourceID := after.ID
	log := &models.AuditLog{
		Action:     models.AuditActionScheduleUpdate,
		Resource:   "schedule",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record schedule audit log", zap.Error(err))
	}
}
