package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklySlotValidate(t *testing.T) {
	assert.NoError(t, WeeklySlot{Day: 0, Time: "00:00"}.Validate())
	assert.NoError(t, WeeklySlot{Day: 6, Time: "23:59"}.Validate())
	assert.Error(t, WeeklySlot{Day: -1, Time: "12:00"}.Validate())
	assert.Error(t, WeeklySlot{Day: 7, Time: "12:00"}.Validate())
	assert.Error(t, WeeklySlot{Day: 3, Time: "9:00"}.Validate())
	assert.Error(t, WeeklySlot{Day: 3, Time: "24:00"}.Validate())
	assert.Error(t, WeeklySlot{Day: 3, Time: "12:60"}.Validate())
	assert.Error(t, WeeklySlot{Day: 3, Time: ""}.Validate())
}

func TestWeeklySlotDatesInclusiveBounds(t *testing.T) {
	// Thursdays across January 2019; both the start and end of the range are
	// themselves matching dates.
	slot := WeeklySlot{Day: 4, Time: "19:00"}
	start := time.Date(2019, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, time.January, 31, 0, 0, 0, 0, time.UTC)

	dates, err := slot.Dates(start, end)
	require.NoError(t, err)
	require.Len(t, dates, 5)
	assert.Equal(t, "2019-01-03", dates[0].Format(DateLayout))
	assert.Equal(t, "2019-01-31", dates[len(dates)-1].Format(DateLayout))
}

func TestWeeklySlotDatesSevenDayStep(t *testing.T) {
	slot := WeeklySlot{Day: 6, Time: "13:00"}
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, time.March, 31, 0, 0, 0, 0, time.UTC)

	dates, err := slot.Dates(start, end)
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	for i, d := range dates {
		assert.Equal(t, time.Saturday, d.Weekday())
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, d.Sub(dates[i-1]))
		}
	}
}

func TestWeeklySlotDatesEmptyRange(t *testing.T) {
	slot := WeeklySlot{Day: 1, Time: "09:00"}
	start := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	dates, err := slot.Dates(start, end)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestWeeklySlotDatesSingleDayRange(t *testing.T) {
	// 2024-05-06 is a Monday; a one-day range matching the slot yields it.
	slot := WeeklySlot{Day: 1, Time: "09:00"}
	day := time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)

	dates, err := slot.Dates(day, day)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2024-05-06", dates[0].Format(DateLayout))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2019-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("01/01/2019")
	assert.Error(t, err)
	_, err = ParseDate("2019-1-1")
	assert.Error(t, err)
}

func TestValidTimeOfDay(t *testing.T) {
	assert.True(t, ValidTimeOfDay("00:00"))
	assert.True(t, ValidTimeOfDay("19:00"))
	assert.False(t, ValidTimeOfDay("7:30"))
	assert.False(t, ValidTimeOfDay("25:00"))
	assert.False(t, ValidTimeOfDay("19:00:00"))
}
