package service

import (
	"time"
)

// GenerateAvailableDates returns every weekday in [start, end] that is not a holiday.
// Dates are compared by calendar day and returned as UTC midnights in ascending order.
func GenerateAvailableDates(start, end time.Time, holidays []time.Time) []time.Time {
	from := calendarDay(start)
	to := calendarDay(end)
	if from.After(to) {
		return []time.Time{}
	}

	skip := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		skip[calendarDay(h)] = struct{}{}
	}

	dates := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		if _, ok := skip[day]; ok {
			continue
		}
		dates = append(dates, day)
	}
	return dates
}

// calendarDay drops the clock and zone, keeping the date as written.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween is the signed whole-day distance from a to b.
func daysBetween(a, b time.Time) int {
	return int(calendarDay(b).Sub(calendarDay(a)).Hours() / 24)
}
