package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

// ScheduleExams assigns each subject a date and session inside the window.
// Constraint failures are reported as violations; only a malformed window is an error.
func ScheduleExams(window models.ExamWindow, subjects []models.Subject) (models.ScheduleResult, error) {
	if err := validateWindow(window); err != nil {
		return models.ScheduleResult{}, err
	}

	catalog := filterByDepartment(subjects, window.Departments)
	order, groups := groupByDepartment(catalog)
	dates := GenerateAvailableDates(window.StartDate, window.EndDate, window.Holidays)

	state := newTimetableState(window.ExamType, dates)
	if len(dates) == 0 {
		state.violations = append(state.violations, models.Violation{
			Message: fmt.Sprintf("no usable exam dates between %s and %s",
				window.StartDate.Format(dto.DateLayout), window.EndDate.Format(dto.DateLayout)),
			Severity: models.SeverityError,
		})
	} else {
		for _, dept := range order {
			for _, subject := range groups[dept] {
				state.place(subject)
			}
		}
	}

	return state.result(len(catalog), len(order)), nil
}

func validateWindow(window models.ExamWindow) error {
	switch {
	case window.StartDate.IsZero():
		return appErrors.Clone(appErrors.ErrValidation, "startDate is required")
	case window.EndDate.IsZero():
		return appErrors.Clone(appErrors.ErrValidation, "endDate is required")
	case !window.ExamType.Valid():
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported exam type %q", window.ExamType))
	case calendarDay(window.EndDate).Before(calendarDay(window.StartDate)):
		return appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	return nil
}

func filterByDepartment(subjects []models.Subject, departments []string) []models.Subject {
	if len(departments) == 0 {
		return subjects
	}
	allowed := make(map[string]struct{}, len(departments))
	for _, d := range departments {
		allowed[strings.TrimSpace(d)] = struct{}{}
	}
	out := make([]models.Subject, 0, len(subjects))
	for _, s := range subjects {
		if _, ok := allowed[s.Department]; ok {
			out = append(out, s)
		}
	}
	return out
}

// groupByDepartment keeps departments in first-appearance order and puts HEAVY
// subjects ahead of NONMAJOR ones without disturbing catalog order otherwise.
func groupByDepartment(subjects []models.Subject) ([]string, map[string][]models.Subject) {
	order := make([]string, 0)
	groups := make(map[string][]models.Subject)
	for _, s := range subjects {
		if _, seen := groups[s.Department]; !seen {
			order = append(order, s.Department)
		}
		groups[s.Department] = append(groups[s.Department], s)
	}
	for _, dept := range order {
		list := groups[dept]
		sort.SliceStable(list, func(i, j int) bool {
			return subjectRank(list[i]) < subjectRank(list[j])
		})
	}
	return order, groups
}

func subjectRank(s models.Subject) int {
	if s.SubjectType == models.SubjectTypeHeavy {
		return 0
	}
	return 1
}

type departmentTrack struct {
	last *models.ScheduleEntry
	used map[time.Time]struct{}
}

func (d *departmentTrack) hasUsed(day time.Time) bool {
	_, ok := d.used[day]
	return ok
}

// timetableState holds the trackers for one scheduling pass.
type timetableState struct {
	examType    models.ExamType
	dates       []time.Time
	sessions    []models.Session
	departments map[string]*departmentTrack
	entries     []models.ScheduleEntry
	violations  []models.Violation
}

func newTimetableState(examType models.ExamType, dates []time.Time) *timetableState {
	return &timetableState{
		examType:    examType,
		dates:       dates,
		sessions:    examType.Sessions(),
		departments: make(map[string]*departmentTrack),
		entries:     make([]models.ScheduleEntry, 0),
		violations:  make([]models.Violation, 0),
	}
}

func (s *timetableState) track(dept string) *departmentTrack {
	t, ok := s.departments[dept]
	if !ok {
		t = &departmentTrack{used: make(map[time.Time]struct{})}
		s.departments[dept] = t
	}
	return t
}

func (s *timetableState) place(subject models.Subject) {
	track := s.track(subject.Department)
	for _, day := range s.dates {
		if track.hasUsed(day) {
			continue
		}
		for _, session := range s.sessions {
			if gapAllows(s.examType, subject.SubjectType, track.last, day, session) {
				s.commit(track, subject, day, session)
				return
			}
		}
	}

	// forced placement rescans from the first date and only keeps date uniqueness
	for _, day := range s.dates {
		if track.hasUsed(day) {
			continue
		}
		session := s.sessions[0]
		s.commit(track, subject, day, session)
		s.violations = append(s.violations, models.Violation{
			Message: fmt.Sprintf("%s (%s) placed on %s %s without its required gap",
				subject.Code, subject.Department, day.Format(dto.DateLayout), session),
			Severity:    models.SeverityWarning,
			SubjectCode: subject.Code,
			Department:  subject.Department,
		})
		return
	}

	s.violations = append(s.violations, models.Violation{
		Message:     fmt.Sprintf("%s (%s) could not be scheduled: no free exam date left for the department", subject.Code, subject.Department),
		Severity:    models.SeverityError,
		SubjectCode: subject.Code,
		Department:  subject.Department,
	})
}

func (s *timetableState) commit(track *departmentTrack, subject models.Subject, day time.Time, session models.Session) {
	entry := models.ScheduleEntry{
		Date:        day,
		Session:     session,
		SubjectCode: subject.Code,
		SubjectName: subject.Name,
		Department:  subject.Department,
		SubjectType: subject.SubjectType,
	}
	s.entries = append(s.entries, entry)
	track.used[day] = struct{}{}
	track.last = &entry
}

func (s *timetableState) result(totalSubjects, departments int) models.ScheduleResult {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Session.Order() < b.Session.Order()
	})

	summary := models.ScheduleSummary{
		TotalSubjects:  totalSubjects,
		Scheduled:      len(s.entries),
		Unscheduled:    totalSubjects - len(s.entries),
		Departments:    departments,
		AvailableDates: len(s.dates),
	}
	for _, v := range s.violations {
		if v.Severity == models.SeverityError {
			summary.Errors++
		} else {
			summary.Warnings++
		}
	}

	return models.ScheduleResult{
		Entries:    s.entries,
		Violations: s.violations,
		Success:    summary.Errors == 0,
		Summary:    summary,
	}
}

// gapAllows tests a candidate slot against the department's previous exam.
func gapAllows(examType models.ExamType, subjectType models.SubjectType, prev *models.ScheduleEntry, day time.Time, session models.Session) bool {
	if prev == nil || examType == models.ExamTypeInternal {
		return true
	}
	days := daysBetween(prev.Date, day)
	if days < 0 {
		return false
	}
	if subjectType == models.SubjectTypeHeavy {
		if days < 1 {
			return false
		}
		if days == 1 && prev.Session == models.SessionAN {
			return session == models.SessionAN
		}
		return true
	}
	if days == 0 {
		return session != prev.Session
	}
	return true
}
