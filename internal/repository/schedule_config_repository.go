package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamcal/teamcal-api/internal/models"
)

// scheduleConfigID pins the single logical configuration row.
const scheduleConfigID = "default"

// ScheduleConfigRepository persists the meeting-schedule configuration.
type ScheduleConfigRepository struct {
	db *sqlx.DB
}

// NewScheduleConfigRepository constructs the repository.
func NewScheduleConfigRepository(db *sqlx.DB) *ScheduleConfigRepository {
	return &ScheduleConfigRepository{db: db}
}

// Get fetches the configuration row. sql.ErrNoRows means no configuration
// has been stored yet; callers install defaults in that case.
func (r *ScheduleConfigRepository) Get(ctx context.Context) (*models.ScheduleConfig, error) {
	const query = `SELECT id, default_link, slot1_day, slot1_time, slot2_day, slot2_time, updated_by, updated_at FROM schedule_config WHERE id = $1 LIMIT 1`
	var cfg models.ScheduleConfig
	if err := r.db.GetContext(ctx, &cfg, query, scheduleConfigID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get schedule config: %w", err)
	}
	return &cfg, nil
}

// Upsert writes the configuration row, creating it when absent.
func (r *ScheduleConfigRepository) Upsert(ctx context.Context, cfg *models.ScheduleConfig) error {
	cfg.ID = scheduleConfigID
	cfg.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO schedule_config (id, default_link, slot1_day, slot1_time, slot2_day, slot2_time, updated_by, updated_at)
VALUES (:id, :default_link, :slot1_day, :slot1_time, :slot2_day, :slot2_time, :updated_by, :updated_at)
ON CONFLICT (id)
DO UPDATE SET default_link = EXCLUDED.default_link, slot1_day = EXCLUDED.slot1_day, slot1_time = EXCLUDED.slot1_time,
              slot2_day = EXCLUDED.slot2_day, slot2_time = EXCLUDED.slot2_time,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("upsert schedule config: %w", err)
	}
	return nil
}
