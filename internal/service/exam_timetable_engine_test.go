package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

func catalogSubject(code, dept string, typ models.SubjectType) models.Subject {
	return models.Subject{Code: code, Name: "Subject " + code, Department: dept, Year: 3, SubjectType: typ}
}

func examWindow(examType models.ExamType, start, end time.Time) models.ExamWindow {
	return models.ExamWindow{Year: 3, ExamType: examType, StartDate: start, EndDate: end}
}

func TestScheduleExamsInternalScenario(t *testing.T) {
	res, err := ScheduleExams(
		examWindow(models.ExamTypeInternal, mkDate(2025, time.January, 6), mkDate(2025, time.January, 10)),
		[]models.Subject{
			catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
			catalogSubject("CS302", "CSE", models.SubjectTypeNonMajor),
		},
	)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.Violations)
	assert.Equal(t, 5, res.Summary.AvailableDates)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "CS301", res.Entries[0].SubjectCode)
	assert.Equal(t, mkDate(2025, time.January, 6), res.Entries[0].Date)
	assert.Equal(t, models.SessionFN, res.Entries[0].Session)
	assert.Equal(t, "CS302", res.Entries[1].SubjectCode)
	assert.Equal(t, mkDate(2025, time.January, 7), res.Entries[1].Date)
	assert.Equal(t, models.SessionFN, res.Entries[1].Session)
}

func TestScheduleExamsHeavyBeforeNonMajor(t *testing.T) {
	res, err := ScheduleExams(
		examWindow(models.ExamTypeSemester, mkDate(2025, time.January, 6), mkDate(2025, time.January, 10)),
		[]models.Subject{
			catalogSubject("N1", "ECE", models.SubjectTypeNonMajor),
			catalogSubject("H1", "ECE", models.SubjectTypeHeavy),
			catalogSubject("N2", "ECE", models.SubjectTypeNonMajor),
			catalogSubject("H2", "ECE", models.SubjectTypeHeavy),
		},
	)
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)

	codes := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		codes = append(codes, e.SubjectCode)
	}
	assert.Equal(t, []string{"H1", "H2", "N1", "N2"}, codes)
}

func TestScheduleExamsEmptyCalendar(t *testing.T) {
	res, err := ScheduleExams(
		examWindow(models.ExamTypeSemester, mkDate(2025, time.January, 11), mkDate(2025, time.January, 12)),
		[]models.Subject{catalogSubject("CS301", "CSE", models.SubjectTypeHeavy)},
	)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Entries)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.SeverityError, res.Violations[0].Severity)
	assert.Equal(t, 1, res.Summary.Unscheduled)
}

func TestScheduleExamsUnplaceableSubject(t *testing.T) {
	res, err := ScheduleExams(
		examWindow(models.ExamTypeSemester, mkDate(2025, time.January, 6), mkDate(2025, time.January, 7)),
		[]models.Subject{
			catalogSubject("A1", "CSE", models.SubjectTypeHeavy),
			catalogSubject("A2", "CSE", models.SubjectTypeHeavy),
			catalogSubject("A3", "CSE", models.SubjectTypeNonMajor),
			catalogSubject("B1", "MECH", models.SubjectTypeNonMajor),
		},
	)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Len(t, res.Entries, 3)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.SeverityError, res.Violations[0].Severity)
	assert.Equal(t, "A3", res.Violations[0].SubjectCode)
	assert.Equal(t, "CSE", res.Violations[0].Department)
	assert.Equal(t, models.ScheduleSummary{
		TotalSubjects: 4, Scheduled: 3, Unscheduled: 1, Departments: 2, AvailableDates: 2, Errors: 1,
	}, res.Summary)
}

func TestScheduleExamsDepartmentFilter(t *testing.T) {
	res, err := ScheduleExams(
		models.ExamWindow{
			Year: 3, ExamType: models.ExamTypeInternal,
			StartDate: mkDate(2025, time.January, 6), EndDate: mkDate(2025, time.January, 10),
			Departments: []string{"MECH"},
		},
		[]models.Subject{
			catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
			catalogSubject("ME301", "MECH", models.SubjectTypeHeavy),
		},
	)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "ME301", res.Entries[0].SubjectCode)
	assert.Equal(t, 1, res.Summary.Departments)
}

func TestScheduleExamsSortsAcrossDepartments(t *testing.T) {
	res, err := ScheduleExams(
		examWindow(models.ExamTypeSemester, mkDate(2025, time.January, 6), mkDate(2025, time.January, 10)),
		[]models.Subject{
			catalogSubject("CS1", "CSE", models.SubjectTypeHeavy),
			catalogSubject("CS2", "CSE", models.SubjectTypeHeavy),
			catalogSubject("ME1", "MECH", models.SubjectTypeHeavy),
		},
	)
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, []string{"CS1", "ME1", "CS2"}, []string{res.Entries[0].SubjectCode, res.Entries[1].SubjectCode, res.Entries[2].SubjectCode})
}

func TestScheduleExamsRejectsMalformedWindow(t *testing.T) {
	cases := map[string]models.ExamWindow{
		"missing start": {ExamType: models.ExamTypeInternal, EndDate: mkDate(2025, time.January, 6)},
		"missing end":   {ExamType: models.ExamTypeInternal, StartDate: mkDate(2025, time.January, 6)},
		"unknown type":  {ExamType: "Midterm", StartDate: mkDate(2025, time.January, 6), EndDate: mkDate(2025, time.January, 7)},
		"reversed":      {ExamType: models.ExamTypeSemester, StartDate: mkDate(2025, time.January, 7), EndDate: mkDate(2025, time.January, 6)},
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ScheduleExams(w, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestScheduleExamsPropertiesHold(t *testing.T) {
	depts := []string{"CSE", "ECE", "MECH"}
	subjects := make([]models.Subject, 0)
	for i := 0; i < 24; i++ {
		typ := models.SubjectTypeNonMajor
		if i%3 != 0 {
			typ = models.SubjectTypeHeavy
		}
		subjects = append(subjects, catalogSubject(fmt.Sprintf("S%02d", i), depts[i%len(depts)], typ))
	}

	for _, examType := range []models.ExamType{models.ExamTypeInternal, models.ExamTypeSemester} {
		res, err := ScheduleExams(examWindow(examType, mkDate(2025, time.March, 3), mkDate(2025, time.March, 14)), subjects)
		require.NoError(t, err)

		warned := make(map[string]bool)
		for _, v := range res.Violations {
			if v.Severity == models.SeverityWarning {
				warned[v.SubjectCode] = true
			}
		}

		seen := make(map[string]models.ScheduleEntry)
		last := make(map[string]models.ScheduleEntry)
		for i, e := range res.Entries {
			if i > 0 {
				prev := res.Entries[i-1]
				assert.False(t, e.Date.Before(prev.Date))
				if e.Date.Equal(prev.Date) {
					assert.LessOrEqual(t, prev.Session.Order(), e.Session.Order())
				}
			}
			if examType == models.ExamTypeInternal {
				assert.Equal(t, models.SessionFN, e.Session)
			}

			key := e.Department + "|" + e.Date.String()
			if other, dup := seen[key]; dup {
				assert.True(t, warned[e.SubjectCode] || warned[other.SubjectCode], "duplicate department date without warning")
			}
			seen[key] = e

			if p, ok := last[e.Department]; ok && examType == models.ExamTypeSemester && !warned[e.SubjectCode] {
				gap := daysBetween(p.Date, e.Date)
				if e.SubjectType == models.SubjectTypeHeavy {
					assert.GreaterOrEqual(t, gap, 1)
					if gap == 1 && p.Session == models.SessionAN {
						assert.Equal(t, models.SessionAN, e.Session)
					}
				}
				if e.SubjectType == models.SubjectTypeNonMajor && gap == 0 {
					assert.NotEqual(t, p.Session, e.Session)
				}
			}
			last[e.Department] = e
		}
		assert.Equal(t, len(res.Entries)+res.Summary.Unscheduled, len(subjects))
		assert.Equal(t, res.Summary.Errors == 0, res.Success)
	}
}

func TestGapAllows(t *testing.T) {
	mon := mkDate(2025, time.January, 6)
	tue := mkDate(2025, time.January, 7)
	wed := mkDate(2025, time.January, 8)
	prevFN := &models.ScheduleEntry{Date: mon, Session: models.SessionFN}
	prevAN := &models.ScheduleEntry{Date: mon, Session: models.SessionAN}

	cases := []struct {
		name     string
		examType models.ExamType
		subject  models.SubjectType
		prev     *models.ScheduleEntry
		day      time.Time
		session  models.Session
		want     bool
	}{
		{"first exam", models.ExamTypeSemester, models.SubjectTypeHeavy, nil, mon, models.SessionFN, true},
		{"internal ignores gap", models.ExamTypeInternal, models.SubjectTypeHeavy, prevFN, mon, models.SessionFN, true},
		{"heavy same day", models.ExamTypeSemester, models.SubjectTypeHeavy, prevFN, mon, models.SessionAN, false},
		{"heavy next day after FN", models.ExamTypeSemester, models.SubjectTypeHeavy, prevFN, tue, models.SessionFN, true},
		{"heavy next day FN after AN", models.ExamTypeSemester, models.SubjectTypeHeavy, prevAN, tue, models.SessionFN, false},
		{"heavy next day AN after AN", models.ExamTypeSemester, models.SubjectTypeHeavy, prevAN, tue, models.SessionAN, true},
		{"heavy two days after AN", models.ExamTypeSemester, models.SubjectTypeHeavy, prevAN, wed, models.SessionFN, true},
		{"nonmajor same session", models.ExamTypeSemester, models.SubjectTypeNonMajor, prevFN, mon, models.SessionFN, false},
		{"nonmajor other session", models.ExamTypeSemester, models.SubjectTypeNonMajor, prevFN, mon, models.SessionAN, true},
		{"nonmajor next day", models.ExamTypeSemester, models.SubjectTypeNonMajor, prevAN, tue, models.SessionFN, true},
		{"earlier than previous", models.ExamTypeSemester, models.SubjectTypeNonMajor, &models.ScheduleEntry{Date: wed, Session: models.SessionFN}, tue, models.SessionAN, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, gapAllows(tc.examType, tc.subject, tc.prev, tc.day, tc.session))
		})
	}
}

func TestTimetableStateForcedPlacement(t *testing.T) {
	dates := GenerateAvailableDates(mkDate(2025, time.January, 6), mkDate(2025, time.January, 8), nil)
	state := newTimetableState(models.ExamTypeSemester, dates)

	// the department's last exam sits after every free date, so no slot passes the gap rule
	track := state.track("CSE")
	wed := mkDate(2025, time.January, 8)
	track.used[wed] = struct{}{}
	track.last = &models.ScheduleEntry{Date: wed, Session: models.SessionFN, Department: "CSE"}

	state.place(catalogSubject("CS310", "CSE", models.SubjectTypeHeavy))
	require.Len(t, state.entries, 1)
	assert.Equal(t, mkDate(2025, time.January, 6), state.entries[0].Date)
	assert.Equal(t, models.SessionFN, state.entries[0].Session)
	require.Len(t, state.violations, 1)
	assert.Equal(t, models.SeverityWarning, state.violations[0].Severity)
	assert.Contains(t, state.violations[0].Message, "CS310")

	res := state.result(1, 1)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Summary.Warnings)
}
