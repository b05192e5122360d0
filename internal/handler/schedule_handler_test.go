package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/middleware"
	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/service"
	"github.com/teamcal/teamcal-api/pkg/config"
)

type scheduleRepoMock struct {
	cfg     *models.ScheduleConfig
	upserts int
}

func (m *scheduleRepoMock) Get(ctx context.Context) (*models.ScheduleConfig, error) {
	return m.cfg, nil
}

func (m *scheduleRepoMock) Upsert(ctx context.Context, cfg *models.ScheduleConfig) error {
	m.upserts++
	return nil
}

type linkUpdaterMock struct{}

func (m *linkUpdaterMock) UpdateLinkFrom(ctx context.Context, dateGte, link string) (int64, error) {
	return 0, nil
}

func newScheduleHandlerFixture() (*ScheduleHandler, *scheduleRepoMock) {
	repo := &scheduleRepoMock{cfg: &models.ScheduleConfig{
		ID:          "default",
		DefaultLink: "https://meet.example.com/team",
		Slot1Day:    4,
		Slot1Time:   "19:00",
		Slot2Day:    6,
		Slot2Time:   "13:00",
	}}
	scheduleSvc := service.NewScheduleService(repo, &linkUpdaterMock{}, nil, nil, service.NewValidator(), zap.NewNop(), config.ScheduleConfig{})
	backfillSvc := service.NewBackfillService(nil, nil, nil, nil, nil, nil, zap.NewNop(), config.ScheduleConfig{})
	return NewScheduleHandler(scheduleSvc, backfillSvc), repo
}

func TestScheduleHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/schedule", nil)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "slot1_day")
}

func TestScheduleHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]any{"slot1_day": 2})
	req, _ := http.NewRequest(http.MethodPatch, "/schedule", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, repo.upserts)
	assert.Contains(t, w.Body.String(), `"slot1_day":2`)
}

func TestScheduleHandlerUpdateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/schedule", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerUpdateCollidingSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]any{"slot1_day": 6, "slot1_time": "13:00"})
	req, _ := http.NewRequest(http.MethodPatch, "/schedule", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerBackfillWithoutConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]any{"policy": "replace_all"})
	req, _ := http.NewRequest(http.MethodPost, "/schedule/backfill", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Backfill(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerBackfillUnknownPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScheduleHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]any{"policy": "purge"})
	req, _ := http.NewRequest(http.MethodPost, "/schedule/backfill", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Backfill(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
