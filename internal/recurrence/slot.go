package recurrence

import (
	"fmt"
	"regexp"
	"time"

	"github.com/teambition/rrule-go"
)

// DateLayout is the canonical calendar-date string form. Dates and times are
// stored as zero-padded strings with no timezone offset because the pair is
// also the reconciliation natural key; any formatting drift would break
// deduplication against persisted rows.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// WeeklySlot is a weekly recurrence rule: a weekday (0 = Sunday .. 6 =
// Saturday) and a minute-resolution time of day.
type WeeklySlot struct {
	Day  int    `json:"day" db:"day"`
	Time string `json:"time" db:"time"`
}

// Validate rejects weekdays outside [0,6] and malformed time strings. A bad
// slot fails the whole generation run rather than silently producing wrong
// dates.
func (s WeeklySlot) Validate() error {
	if s.Day < 0 || s.Day > 6 {
		return fmt.Errorf("weekly slot: day %d outside [0,6]", s.Day)
	}
	if !timeOfDayRe.MatchString(s.Time) {
		return fmt.Errorf("weekly slot: time %q is not 24-hour HH:MM", s.Time)
	}
	return nil
}

// Weekday returns the slot's day as a time.Weekday.
func (s WeeklySlot) Weekday() time.Weekday {
	return time.Weekday(s.Day)
}

// rrule-go orders weekdays Monday-first; slots count Sunday as 0.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Dates expands the slot into every matching calendar date within
// [start, end], both bounds inclusive. The result is recomputed on every
// call; there is no shared cursor state.
func (s WeeklySlot) Dates(start, end time.Time) ([]time.Time, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	start = Midnight(start)
	end = Midnight(end)
	if end.Before(start) {
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: []rrule.Weekday{rruleWeekdays[s.Day]},
	})
	if err != nil {
		return nil, fmt.Errorf("weekly slot rule: %w", err)
	}
	return rule.All(), nil
}

// Midnight truncates an instant to its civil date (midnight UTC).
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidTimeOfDay reports whether value is a zero-padded 24-hour HH:MM string.
func ValidTimeOfDay(value string) bool {
	return timeOfDayRe.MatchString(value)
}

// ParseDate parses a canonical YYYY-MM-DD string.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}
