package recurrence

import (
	"sort"
	"sync"
	"time"
)

// monthDay identifies a holiday within one year.
type monthDay struct {
	Month time.Month
	Day   int
}

// HolidayCalendar computes Irish public holidays. Fixed dates and the
// weekday-of-month bank holidays are static rules; Easter Monday is the only
// date that moves per year. Computed years are cached for the process
// lifetime, which is safe because the rules never change for a given year.
type HolidayCalendar struct {
	mu     sync.Mutex
	byYear map[int]map[monthDay]struct{}
}

// NewHolidayCalendar constructs an empty calendar.
func NewHolidayCalendar() *HolidayCalendar {
	return &HolidayCalendar{byYear: make(map[int]map[monthDay]struct{})}
}

// HolidaysForYear returns all public holidays of the year as civil dates
// (midnight UTC), sorted ascending.
func (c *HolidayCalendar) HolidaysForYear(year int) []time.Time {
	set := c.yearSet(year)
	dates := make([]time.Time, 0, len(set))
	for md := range set {
		dates = append(dates, time.Date(year, md.Month, md.Day, 0, 0, 0, 0, time.UTC))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// IsHoliday reports whether the given calendar date is a public holiday.
func (c *HolidayCalendar) IsHoliday(date time.Time) bool {
	set := c.yearSet(date.Year())
	_, ok := set[monthDay{Month: date.Month(), Day: date.Day()}]
	return ok
}

func (c *HolidayCalendar) yearSet(year int) map[monthDay]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.byYear[year]; ok {
		return set
	}

	set := make(map[monthDay]struct{}, 9)
	add := func(t time.Time) {
		set[monthDay{Month: t.Month(), Day: t.Day()}] = struct{}{}
	}

	// New Year's Day, St. Patrick's Day, Christmas Day, St. Stephen's Day.
	set[monthDay{Month: time.January, Day: 1}] = struct{}{}
	set[monthDay{Month: time.March, Day: 17}] = struct{}{}
	set[monthDay{Month: time.December, Day: 25}] = struct{}{}
	set[monthDay{Month: time.December, Day: 26}] = struct{}{}

	add(EasterSunday(year).AddDate(0, 0, 1)) // Easter Monday

	add(FirstMonday(year, time.May))
	add(FirstMonday(year, time.June))
	add(FirstMonday(year, time.August))
	add(LastMonday(year, time.October))

	c.byYear[year] = set
	return set
}

// EasterSunday computes Easter Sunday for a year using the anonymous
// Gregorian computus (Meeus/Jones/Butcher).
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// FirstMonday returns the first Monday of the given month.
func FirstMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// LastMonday returns the last Monday of the given month.
func LastMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
