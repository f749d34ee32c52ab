package dto

import "github.com/noah-isme/sma-exam-api/internal/models"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// GenerateExamScheduleRequest describes the window to build a timetable for.
type GenerateExamScheduleRequest struct {
	Year        int      `json:"year" validate:"required,min=1,max=8"`
	ExamType    string   `json:"examType" validate:"required,oneof=Internal Semester"`
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Holidays    []string `json:"holidays" validate:"omitempty,dive,datetime=2006-01-02"`
	Departments []string `json:"departments" validate:"omitempty,dive,required"`
}

// GenerateExamScheduleResponse returns the stored proposal.
type GenerateExamScheduleResponse struct {
	ProposalID string                 `json:"proposalId"`
	Entries    []models.ScheduleEntry `json:"entries"`
	Violations []models.Violation     `json:"violations"`
	Success    bool                   `json:"success"`
	Summary    models.ScheduleSummary `json:"summary"`
}

// SaveExamScheduleRequest persists a generated proposal as exams.
type SaveExamScheduleRequest struct {
	ProposalID   string `json:"proposalId" validate:"required"`
	AllowPartial bool   `json:"allowPartial"`
}

// SaveExamScheduleResponse lists the exams created from a proposal.
type SaveExamScheduleResponse struct {
	ExamIDs []string `json:"examIds"`
	Count   int      `json:"count"`
}

// ExamQuery filters persisted exams.
type ExamQuery struct {
	Year       int    `form:"year" validate:"omitempty,min=1,max=8"`
	ExamType   string `form:"examType" validate:"omitempty,oneof=Internal Semester"`
	Department string `form:"department"`
}

// CalendarQuery previews usable exam dates.
type CalendarQuery struct {
	StartDate string   `form:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string   `form:"endDate" validate:"required,datetime=2006-01-02"`
	Holidays  []string `form:"holidays" validate:"omitempty,dive,datetime=2006-01-02"`
}

// CalendarResponse lists usable exam dates.
type CalendarResponse struct {
	Dates []string `json:"dates"`
	Count int      `json:"count"`
}
