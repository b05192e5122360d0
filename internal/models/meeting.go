package models

import (
	"time"

	"github.com/teamcal/teamcal-api/internal/recurrence"
)

// Meeting is a persisted meeting occurrence. Date and Time keep their
// canonical string forms (YYYY-MM-DD, HH:MM) because together they are the
// natural key the generator reconciles against.
type Meeting struct {
	ID        string    `db:"id" json:"id"`
	Date      string    `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`
	Title     string    `db:"title" json:"title"`
	Notes     string    `db:"notes" json:"notes"`
	Link      string    `db:"link" json:"link"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the meeting's natural key.
func (m Meeting) Key() recurrence.Key {
	return recurrence.Key{Date: m.Date, Time: m.Time}
}

// CreateMeetingRequest is the payload for an ad-hoc meeting. The date and
// time must land on one of the configured weekly slots and must not fall on a
// public holiday.
type CreateMeetingRequest struct {
	Date  string `json:"date" validate:"required,caldate"`
	Time  string `json:"time" validate:"required,hhmm"`
	Notes string `json:"notes"`
	Link  string `json:"link" validate:"omitempty,url"`
}

// UpdateMeetingRequest is an explicit partial update of a meeting.
type UpdateMeetingRequest struct {
	Time  *string `json:"time,omitempty" validate:"omitempty,hhmm"`
	Notes *string `json:"notes,omitempty"`
	Link  *string `json:"link,omitempty" validate:"omitempty,url"`
}

// MeetingTimeFilter narrows listings relative to today.
type MeetingTimeFilter string

const (
	MeetingFilterAll      MeetingTimeFilter = ""
	MeetingFilterUpcoming MeetingTimeFilter = "upcoming"
	MeetingFilterPrevious MeetingTimeFilter = "previous"
)
