package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateAvailableDatesWeekdays(t *testing.T) {
	dates := GenerateAvailableDates(mkDate(2025, time.January, 6), mkDate(2025, time.January, 10), nil)
	require.Len(t, dates, 5)
	assert.Equal(t, mkDate(2025, time.January, 6), dates[0])
	assert.Equal(t, mkDate(2025, time.January, 10), dates[4])
}

func TestGenerateAvailableDatesSkipsWeekendsAndHolidays(t *testing.T) {
	holidays := []time.Time{
		time.Date(2025, time.January, 8, 15, 30, 0, 0, time.UTC),
		mkDate(2025, time.January, 11), // Saturday, already excluded
	}
	dates := GenerateAvailableDates(mkDate(2025, time.January, 3), mkDate(2025, time.January, 14), holidays)

	want := []time.Time{
		mkDate(2025, time.January, 3),
		mkDate(2025, time.January, 6),
		mkDate(2025, time.January, 7),
		mkDate(2025, time.January, 9),
		mkDate(2025, time.January, 10),
		mkDate(2025, time.January, 13),
		mkDate(2025, time.January, 14),
	}
	assert.Equal(t, want, dates)

	for i, d := range dates {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
		if i > 0 {
			assert.True(t, d.After(dates[i-1]))
		}
	}
}

func TestGenerateAvailableDatesIgnoresClockAndZone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	start := time.Date(2025, time.January, 6, 23, 0, 0, 0, loc)
	end := time.Date(2025, time.January, 7, 1, 0, 0, 0, loc)
	dates := GenerateAvailableDates(start, end, []time.Time{time.Date(2025, time.January, 7, 0, 0, 0, 0, loc)})
	assert.Equal(t, []time.Time{mkDate(2025, time.January, 6)}, dates)
}

func TestGenerateAvailableDatesEmptyWindows(t *testing.T) {
	assert.Empty(t, GenerateAvailableDates(mkDate(2025, time.January, 10), mkDate(2025, time.January, 6), nil))
	assert.Empty(t, GenerateAvailableDates(mkDate(2025, time.January, 11), mkDate(2025, time.January, 12), nil))
	assert.Empty(t, GenerateAvailableDates(mkDate(2025, time.January, 6), mkDate(2025, time.January, 6), []time.Time{mkDate(2025, time.January, 6)}))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 1, daysBetween(mkDate(2025, time.January, 6), mkDate(2025, time.January, 7)))
	assert.Equal(t, 0, daysBetween(mkDate(2025, time.January, 6), mkDate(2025, time.January, 6)))
	assert.Equal(t, -3, daysBetween(mkDate(2025, time.January, 10), mkDate(2025, time.January, 7)))
}
