package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/internal/repository"
	"github.com/teamcal/teamcal-api/pkg/config"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type backfillMeetingRepository interface {
	ListKeys(ctx context.Context) (map[recurrence.Key]struct{}, error)
	InsertManyTx(ctx context.Context, tx *sqlx.Tx, meetings []models.Meeting) error
	DeleteAllTx(ctx context.Context, tx *sqlx.Tx) error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// BackfillRequest selects the reconciliation policy for a run. ReplaceAll is
// destructive and demands the explicit confirmation flag.
type BackfillRequest struct {
	Policy  recurrence.Policy `json:"policy" validate:"required"`
	Confirm bool              `json:"confirm"`
}

// BackfillResult reports what one backfill run did.
type BackfillResult struct {
	Policy                recurrence.Policy `json:"policy"`
	CreatedCount          int               `json:"created_count"`
	DeletedCount          int               `json:"deleted_count"`
	HolidaysExcludedCount int               `json:"holidays_excluded_count"`
	RangeStart            string            `json:"range_start"`
	RangeEnd              string            `json:"range_end"`
}

// BackfillService drives the generate-reconcile-apply cycle that keeps the
// meetings table in line with the configured schedule. The planner itself is
// pure; this service owns every storage round-trip and serializes runs with
// an in-process mutex, with the meetings unique constraint as the backstop
// against writers outside this process.
type BackfillService struct {
	meetings backfillMeetingRepository
	schedule scheduleReader
	audit    scheduleAuditor
	engine   *recurrence.Engine
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	window   config.ScheduleConfig
	now      func() time.Time

	mu sync.Mutex
}

// NewBackfillService constructs a BackfillService.
func NewBackfillService(meetings backfillMeetingRepository, schedule scheduleReader, audit scheduleAuditor, engine *recurrence.Engine, cache *CacheService, metrics *MetricsService, logger *zap.Logger, window config.ScheduleConfig) *BackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &BackfillService{
		meetings: meetings,
		schedule: schedule,
		audit:    audit,
		engine:   engine,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one backfill over the configured range (epoch through now plus
// horizon). add_missing inserts only absent natural keys and is idempotent;
// replace_all wipes the table first and requires confirm=true.
func (s *BackfillService) Run(ctx context.Context, req BackfillRequest, actorID string) (*BackfillResult, error) {
	if !req.Policy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "policy must be add_missing or replace_all")
	}
	if req.Policy == recurrence.PolicyReplaceAll && !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrValidation, "replace_all discards all meeting notes; set confirm to proceed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.schedule.Current(ctx)
	if err != nil {
		return nil, err
	}
	schedule := cfg.Schedule()

	start, end, err := recurrence.DefaultRange(s.window.Epoch, s.window.Horizon, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid backfill range")
	}

	generated, err := s.engine.Generate(schedule, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "schedule cannot be expanded")
	}

	unfiltered, err := s.engine.CountWithoutHolidayFilter(schedule, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to size occurrence range")
	}

	existing, err := s.meetings.ListKeys(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to snapshot existing meetings")
	}

	plan, err := recurrence.Reconcile(generated, existing, req.Policy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to plan reconciliation")
	}

	if err := s.apply(ctx, req.Policy, plan); err != nil {
		return nil, err
	}

	result := &BackfillResult{
		Policy:                req.Policy,
		CreatedCount:          len(plan.ToInsert),
		DeletedCount:          len(plan.ToDelete),
		HolidaysExcludedCount: unfiltered - len(generated),
		RangeStart:            start.Format(recurrence.DateLayout),
		RangeEnd:              end.Format(recurrence.DateLayout),
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, meetingCachePattern)
	}
	if s.metrics != nil {
		s.metrics.ObserveBackfill(string(req.Policy), result.CreatedCount, result.HolidaysExcludedCount)
	}
	s.recordAudit(ctx, actorID, result)

	s.logger.Info("backfill completed",
		zap.String("policy", string(req.Policy)),
		zap.Int("created", result.CreatedCount),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("holidays_excluded", result.HolidaysExcludedCount),
		zap.String("range_start", result.RangeStart),
		zap.String("range_end", result.RangeEnd))
	return result, nil
}

// apply commits the plan in one transaction so a half-applied replace_all can
// never be observed.
func (s *BackfillService) apply(ctx context.Context, policy recurrence.Policy, plan recurrence.Plan) error {
	if policy == recurrence.PolicyAddMissing && len(plan.ToInsert) == 0 {
		return nil
	}

	tx, err := s.meetings.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if policy == recurrence.PolicyReplaceAll {
		if err := s.meetings.DeleteAllTx(ctx, tx); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to clear meetings")
		}
	}

	rows := make([]models.Meeting, 0, len(plan.ToInsert))
	for _, occ := range plan.ToInsert {
		rows = append(rows, models.Meeting{
			Date:  occ.Date,
			Time:  occ.Time,
			Title: occ.Title,
			Notes: occ.Notes,
			Link:  occ.Link,
		})
	}

	if err := s.meetings.InsertManyTx(ctx, tx, rows); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return appErrors.Clone(appErrors.ErrConflict, "a concurrent writer inserted a colliding meeting; retry the backfill")
		}
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to insert meetings")
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to commit backfill")
	}
	return nil
}

func (s *BackfillService) recordAudit(ctx context.Context, actorID string, result *BackfillResult) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(result)
	resource := "schedule"
	log := &models.AuditLog{
		Action:     models.AuditActionBackfill,
		Resource:   resource,
		ResourceID: &resource,
		NewValues:  payload,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record backfill audit log", zap.Error(err))
	}
}
