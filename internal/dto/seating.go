package dto

import (
	"time"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// AllocateSeatingRequest drives seat allocation for one exam. Department and
// year default to the exam's own values.
type AllocateSeatingRequest struct {
	ExamID      string   `json:"-" validate:"required"`
	Department  string   `json:"department"`
	Year        int      `json:"year" validate:"omitempty,min=1,max=8"`
	RoomNumbers []string `json:"roomNumbers" validate:"omitempty,dive,required"`
	Seed        *int64   `json:"seed"`
	DryRun      bool     `json:"dryRun"`
}

// AllocateSeatingResponse returns the allocation and whether it was committed.
type AllocateSeatingResponse struct {
	ExamID      string                  `json:"examId"`
	Seed        int64                   `json:"seed"`
	Committed   bool                    `json:"committed"`
	Assignments []models.SeatAssignment `json:"assignments"`
	Summary     models.SeatingSummary   `json:"summary"`
}

// AvailableRoomsQuery asks which rooms are free for a date and session.
type AvailableRoomsQuery struct {
	Date          string `form:"date" validate:"required,datetime=2006-01-02"`
	Session       string `form:"session" validate:"required,oneof=FN AN"`
	ExcludeExamID string `form:"excludeExamId"`
}

// SeatingPlanFormat selects the rendered plan format.
type SeatingPlanFormat string

const (
	SeatingPlanFormatCSV SeatingPlanFormat = "csv"
	SeatingPlanFormatPDF SeatingPlanFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f SeatingPlanFormat) Valid() bool {
	return f == SeatingPlanFormatCSV || f == SeatingPlanFormatPDF
}

// SeatingPlanLink is a signed download reference for a rendered plan.
type SeatingPlanLink struct {
	ExamID    string            `json:"examId"`
	Format    SeatingPlanFormat `json:"format"`
	URL       string            `json:"url"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ExamSeating is the published seating of an exam.
type ExamSeating struct {
	Exam        models.Exam             `json:"exam"`
	Assignments []models.SeatAssignment `json:"assignments"`
	Total       int                     `json:"total"`
}
