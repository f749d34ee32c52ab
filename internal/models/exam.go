package models

import "time"

// ExamType selects session availability and the seating layout.
type ExamType string

const (
	ExamTypeInternal ExamType = "Internal"
	ExamTypeSemester ExamType = "Semester"
)

// Valid reports whether the exam type is supported.
func (t ExamType) Valid() bool {
	return t == ExamTypeInternal || t == ExamTypeSemester
}

// Sessions returns the sessions offered per date, forenoon first.
func (t ExamType) Sessions() []Session {
	if t == ExamTypeSemester {
		return []Session{SessionFN, SessionAN}
	}
	return []Session{SessionFN}
}

// Session is the forenoon or afternoon sitting on an exam date.
type Session string

const (
	SessionFN Session = "FN"
	SessionAN Session = "AN"
)

// Valid reports whether the session is FN or AN.
func (s Session) Valid() bool {
	return s == SessionFN || s == SessionAN
}

// Order returns 0 for FN and 1 for AN.
func (s Session) Order() int {
	if s == SessionAN {
		return 1
	}
	return 0
}

// ExamWindow defines one scheduling problem.
type ExamWindow struct {
	Year        int
	ExamType    ExamType
	StartDate   time.Time
	EndDate     time.Time
	Holidays    []time.Time
	Departments []string
}

// ScheduleEntry is one subject placed on a date and session.
type ScheduleEntry struct {
	Date        time.Time   `json:"date"`
	Session     Session     `json:"session"`
	SubjectCode string      `json:"subjectCode"`
	SubjectName string      `json:"subjectName"`
	Department  string      `json:"department"`
	SubjectType SubjectType `json:"subjectType"`
}

// ViolationSeverity distinguishes relaxed constraints from failed placements.
type ViolationSeverity string

const (
	SeverityWarning ViolationSeverity = "WARNING"
	SeverityError   ViolationSeverity = "ERROR"
)

// Violation documents a constraint the scheduler could not honour.
type Violation struct {
	Message     string            `json:"message"`
	Severity    ViolationSeverity `json:"severity"`
	SubjectCode string            `json:"subjectCode,omitempty"`
	Department  string            `json:"department,omitempty"`
}

// ScheduleSummary aggregates one scheduling run.
type ScheduleSummary struct {
	TotalSubjects  int `json:"totalSubjects"`
	Scheduled      int `json:"scheduled"`
	Unscheduled    int `json:"unscheduled"`
	Departments    int `json:"departments"`
	AvailableDates int `json:"availableDates"`
	Warnings       int `json:"warnings"`
	Errors         int `json:"errors"`
}

// ScheduleResult is the outcome of a scheduling run.
type ScheduleResult struct {
	Entries    []ScheduleEntry `json:"entries"`
	Violations []Violation     `json:"violations"`
	Success    bool            `json:"success"`
	Summary    ScheduleSummary `json:"summary"`
}

// Exam is a persisted schedule entry.
type Exam struct {
	ID                   string      `db:"id" json:"id"`
	Year                 int         `db:"year" json:"year"`
	ExamType             ExamType    `db:"exam_type" json:"examType"`
	Department           string      `db:"department" json:"department"`
	SubjectCode          string      `db:"subject_code" json:"subjectCode"`
	SubjectName          string      `db:"subject_name" json:"subjectName"`
	SubjectType          SubjectType `db:"subject_type" json:"subjectType"`
	ExamDate             time.Time   `db:"exam_date" json:"examDate"`
	Session              Session     `db:"session" json:"session"`
	SeatingPublished     bool        `db:"seating_published" json:"seatingPublished"`
	HallTicketsGenerated bool        `db:"hall_tickets_generated" json:"hallTicketsGenerated"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updatedAt"`
}

// ExamFilter narrows exam listings. Zero values are ignored.
type ExamFilter struct {
	Year       int
	ExamType   ExamType
	Department string
}
