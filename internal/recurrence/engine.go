package recurrence

import (
	"fmt"
	"sort"
	"time"
)

// Schedule is the value passed into every generation run. It is an explicit
// parameter rather than ambient state; callers load it from storage and hand
// it in.
type Schedule struct {
	DefaultLink string     `json:"default_link"`
	Slot1       WeeklySlot `json:"slot1"`
	Slot2       WeeklySlot `json:"slot2"`
}

// Validate checks both slots and rejects a schedule whose slots collide on
// the same weekday and time, which would collapse to one natural key.
func (s Schedule) Validate() error {
	if err := s.Slot1.Validate(); err != nil {
		return fmt.Errorf("slot1: %w", err)
	}
	if err := s.Slot2.Validate(); err != nil {
		return fmt.Errorf("slot2: %w", err)
	}
	if s.Slot1.Day == s.Slot2.Day && s.Slot1.Time == s.Slot2.Time {
		return fmt.Errorf("slot1 and slot2 may not share weekday %d at %s", s.Slot1.Day, s.Slot1.Time)
	}
	return nil
}

// Key is the natural key of a meeting occurrence. Both fields use canonical
// string forms (YYYY-MM-DD, HH:MM) and the struct compares by value.
type Key struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Occurrence is one generated instance of a recurring meeting. It stays
// transient until the reconciliation plan is applied to storage.
type Occurrence struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Title string `json:"title"`
	Notes string `json:"notes"`
	Link  string `json:"link"`
}

// Key returns the occurrence's natural key.
func (o Occurrence) Key() Key {
	return Key{Date: o.Date, Time: o.Time}
}

// Engine generates the full occurrence set for a schedule over a date range.
// All methods are pure; the engine performs no I/O and is safe for
// concurrent use.
type Engine struct {
	holidays *HolidayCalendar
}

// NewEngine builds an engine around a holiday calendar.
func NewEngine(holidays *HolidayCalendar) *Engine {
	if holidays == nil {
		holidays = NewHolidayCalendar()
	}
	return &Engine{holidays: holidays}
}

// Generate expands both slots over [start, end], drops holiday dates, and
// returns occurrences sorted ascending by (date, time). Ties are impossible
// for a valid schedule because the slots differ in weekday or time.
func (e *Engine) Generate(schedule Schedule, start, end time.Time) ([]Occurrence, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	occurrences := make([]Occurrence, 0, 128)
	for i, slot := range [2]WeeklySlot{schedule.Slot1, schedule.Slot2} {
		dates, err := slot.Dates(start, end)
		if err != nil {
			return nil, err
		}
		for _, date := range dates {
			if e.holidays.IsHoliday(date) {
				continue
			}
			occurrences = append(occurrences, Occurrence{
				Date:  date.Format(DateLayout),
				Time:  slot.Time,
				Title: OccurrenceTitle(i, date),
				Notes: "",
				Link:  schedule.DefaultLink,
			})
		}
	}

	sort.Slice(occurrences, func(i, j int) bool {
		if occurrences[i].Date != occurrences[j].Date {
			return occurrences[i].Date < occurrences[j].Date
		}
		return occurrences[i].Time < occurrences[j].Time
	})
	return occurrences, nil
}

// CountWithoutHolidayFilter returns how many occurrences the range would hold
// with no holiday exclusion. The difference against len(Generate(...)) is the
// "N holidays excluded" figure reported to callers.
func (e *Engine) CountWithoutHolidayFilter(schedule Schedule, start, end time.Time) (int, error) {
	if err := schedule.Validate(); err != nil {
		return 0, err
	}
	total := 0
	for _, slot := range [2]WeeklySlot{schedule.Slot1, schedule.Slot2} {
		dates, err := slot.Dates(start, end)
		if err != nil {
			return 0, err
		}
		total += len(dates)
	}
	return total, nil
}

// DefaultRange resolves the backfill window: a fixed historical epoch through
// now plus the horizon. The epoch is absolute, never relative to now, so
// repeated backfills always cover the same history.
func DefaultRange(epoch string, horizon time.Duration, now time.Time) (time.Time, time.Time, error) {
	start, err := ParseDate(epoch)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("schedule epoch: %w", err)
	}
	end := Midnight(now.Add(horizon))
	return start, end, nil
}

// OccurrenceTitle renders the title for a slot's occurrence on date. The two
// slots use visibly different templates so a viewer can tell slot identity
// from the title alone.
func OccurrenceTitle(slotIndex int, date time.Time) string {
	formatted := date.Format("Jan 2, 2006")
	weekday := date.Format("Monday")
	if slotIndex == 0 {
		return fmt.Sprintf("Team Meeting - %s, %s", weekday, formatted)
	}
	return fmt.Sprintf("%s Team Meeting - %s", weekday, formatted)
}
