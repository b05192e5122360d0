package models

import (
	"time"

	"github.com/teamcal/teamcal-api/internal/recurrence"
)

// ScheduleConfig is the persisted meeting-schedule configuration: the two
// weekly slots and the conferencing link stamped onto generated occurrences.
// A single logical row exists; it is created with defaults on first access
// and mutated only by administrator actions.
type ScheduleConfig struct {
	ID          string    `db:"id" json:"id"`
	DefaultLink string    `db:"default_link" json:"default_link"`
	Slot1Day    int       `db:"slot1_day" json:"slot1_day"`
	Slot1Time   string    `db:"slot1_time" json:"slot1_time"`
	Slot2Day    int       `db:"slot2_day" json:"slot2_day"`
	Slot2Time   string    `db:"slot2_time" json:"slot2_time"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Schedule converts the stored row into the generator's schedule value.
func (c ScheduleConfig) Schedule() recurrence.Schedule {
	return recurrence.Schedule{
		DefaultLink: c.DefaultLink,
		Slot1:       recurrence.WeeklySlot{Day: c.Slot1Day, Time: c.Slot1Time},
		Slot2:       recurrence.WeeklySlot{Day: c.Slot2Day, Time: c.Slot2Time},
	}
}

// SchedulePatch is an explicit partial update of the schedule configuration.
// Nil fields are left untouched; the merge is performed by
// ScheduleConfig.Apply rather than by presence checks scattered over
// handlers.
type SchedulePatch struct {
	DefaultLink *string `json:"default_link,omitempty" validate:"omitempty,url"`
	Slot1Day    *int    `json:"slot1_day,omitempty" validate:"omitempty,min=0,max=6"`
	Slot1Time   *string `json:"slot1_time,omitempty" validate:"omitempty,hhmm"`
	Slot2Day    *int    `json:"slot2_day,omitempty" validate:"omitempty,min=0,max=6"`
	Slot2Time   *string `json:"slot2_time,omitempty" validate:"omitempty,hhmm"`
}

// Empty reports whether the patch changes nothing.
func (p SchedulePatch) Empty() bool {
	return p.DefaultLink == nil && p.Slot1Day == nil && p.Slot1Time == nil && p.Slot2Day == nil && p.Slot2Time == nil
}

// Apply merges the patch into a copy of the configuration.
func (c ScheduleConfig) Apply(patch SchedulePatch) ScheduleConfig {
	next := c
	if patch.DefaultLink != nil {
		next.DefaultLink = *patch.DefaultLink
	}
	if patch.Slot1Day != nil {
		next.Slot1Day = *patch.Slot1Day
	}
	if patch.Slot1Time != nil {
		next.Slot1Time = *patch.Slot1Time
	}
	if patch.Slot2Day != nil {
		next.Slot2Day = *patch.Slot2Day
	}
	if patch.Slot2Time != nil {
		next.Slot2Time = *patch.Slot2Time
	}
	return next
}
