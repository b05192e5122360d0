package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/internal/repository"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
	"github.com/teamcal/teamcal-api/pkg/export"
)

type meetingRepository interface {
	List(ctx context.Context, filter models.MeetingTimeFilter, today string) ([]models.Meeting, error)
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	Create(ctx context.Context, meeting *models.Meeting) error
	Update(ctx context.Context, meeting *models.Meeting) error
	Delete(ctx context.Context, id string) error
}

type scheduleReader interface {
	Current(ctx context.Context) (*models.ScheduleConfig, error)
}

const meetingCachePattern = "meetings:*"

// ExportFormat selects the rendering for meeting exports.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// MeetingService provides meeting listing and ad-hoc CRUD. Generated
// occurrences arrive through BackfillService; this service handles the rows
// users touch directly.
type MeetingService struct {
	repo      meetingRepository
	schedule  scheduleReader
	holidays  *recurrence.HolidayCalendar
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	now       func() time.Time
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(repo meetingRepository, schedule scheduleReader, holidays *recurrence.HolidayCalendar, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if holidays == nil {
		holidays = recurrence.NewHolidayCalendar()
	}
	return &MeetingService{
		repo:      repo,
		schedule:  schedule,
		holidays:  holidays,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns meetings filtered relative to today. Upcoming lists ascending,
// previous descending, matching how the calendar is displayed.
func (s *MeetingService) List(ctx context.Context, filter models.MeetingTimeFilter) ([]models.Meeting, error) {
	switch filter {
	case models.MeetingFilterAll, models.MeetingFilterUpcoming, models.MeetingFilterPrevious:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown filter %q", filter))
	}

	cacheKey := fmt.Sprintf("meetings:list:%s", filter)
	var cached []models.Meeting
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	today := s.now().Format(recurrence.DateLayout)
	meetings, err := s.repo.List(ctx, filter, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, meetings)
	}
	return meetings, nil
}

// Get returns a meeting by ID.
func (s *MeetingService) Get(ctx context.Context, id string) (*models.Meeting, error) {
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch meeting")
	}
	return meeting, nil
}

// Create adds an ad-hoc meeting. The date and time must land on one of the
// configured weekly slots and may not fall on a public holiday; a colliding
// natural key is a conflict.
func (s *MeetingService) Create(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}

	date, err := recurrence.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting date")
	}

	if s.holidays.IsHoliday(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a public holiday", req.Date))
	}

	cfg, err := s.schedule.Current(ctx)
	if err != nil {
		return nil, err
	}
	schedule := cfg.Schedule()

	slotIndex := -1
	for i, slot := range [2]recurrence.WeeklySlot{schedule.Slot1, schedule.Slot2} {
		if date.Weekday() == slot.Weekday() && req.Time == slot.Time {
			slotIndex = i
			break
		}
	}
	if slotIndex < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date and time do not match a configured meeting slot")
	}

	link := req.Link
	if link == "" {
		link = schedule.DefaultLink
	}

	now := s.now()
	meeting := &models.Meeting{
		ID:        uuid.NewString(),
		Date:      req.Date,
		Time:      req.Time,
		Title:     recurrence.OccurrenceTitle(slotIndex, date),
		Notes:     req.Notes,
		Link:      link,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, meeting); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a meeting already exists at this date and time")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting")
	}

	s.invalidate(ctx)
	return meeting, nil
}

// Update applies a partial update of time, notes, or link.
func (s *MeetingService) Update(ctx context.Context, id string, req models.UpdateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}

	meeting, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Time != nil {
		meeting.Time = *req.Time
	}
	if req.Notes != nil {
		meeting.Notes = *req.Notes
	}
	if req.Link != nil {
		meeting.Link = *req.Link
	}
	meeting.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, meeting); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a meeting already exists at this date and time")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update meeting")
	}

	s.invalidate(ctx)
	return meeting, nil
}

// Delete removes a meeting by ID.
func (s *MeetingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete meeting")
	}
	s.invalidate(ctx)
	return nil
}

// Export renders the filtered meeting list as CSV or PDF bytes along with the
// content type for the HTTP response.
func (s *MeetingService) Export(ctx context.Context, filter models.MeetingTimeFilter, format ExportFormat) ([]byte, string, error) {
	meetings, err := s.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Time", "Title", "Notes", "Link"},
		Rows:    make([]map[string]string, 0, len(meetings)),
	}
	for _, m := range meetings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":  m.Date,
			"Time":  m.Time,
			"Title": m.Title,
			"Notes": m.Notes,
			"Link":  m.Link,
		})
	}

	switch strings.ToLower(string(format)) {
	case string(ExportCSV):
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case string(ExportPDF):
		payload, err := s.pdf.Render(dataset, "Team Meetings")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export format %q", format))
	}
}

func (s *MeetingService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, meetingCachePattern)
	}
}
