package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/middleware"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/response"
)

type examScheduler interface {
	Calendar(query dto.CalendarQuery) (*dto.CalendarResponse, error)
	Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.GenerateExamScheduleResponse, error)
	Proposal(proposalID string) (*dto.GenerateExamScheduleResponse, error)
	Save(ctx context.Context, req dto.SaveExamScheduleRequest) (*dto.SaveExamScheduleResponse, error)
	List(ctx context.Context, query dto.ExamQuery) ([]models.Exam, error)
}

// ExamScheduleHandler exposes exam calendar and timetable endpoints.
type ExamScheduleHandler struct {
	service examScheduler
}

// NewExamScheduleHandler constructs the handler.
func NewExamScheduleHandler(svc *service.ExamTimetableService) *ExamScheduleHandler {
	return &ExamScheduleHandler{service: svc}
}

// Calendar godoc
// @Summary Preview usable exam dates
// @Description Lists dates in the window excluding weekends and holidays.
// @Tags Exams
// @Produce json
// @Param startDate query string true "Window start (YYYY-MM-DD)"
// @Param endDate query string true "Window end (YYYY-MM-DD)"
// @Param holidays query []string false "Holiday dates (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /exam-calendar/dates [get]
func (h *ExamScheduleHandler) Calendar(c *gin.Context) {
	var query dto.CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar query"))
		return
	}
	query.Holidays = splitList(query.Holidays)
	result, err := h.service.Calendar(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Generate godoc
// @Summary Generate an exam timetable proposal
// @Description Builds a preview timetable. Nothing is persisted until the proposal is saved.
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.GenerateExamScheduleRequest true "Generate timetable payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exam-schedules/generate [post]
func (h *ExamScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "mode", "preview")
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Proposal godoc
// @Summary Fetch a pending timetable proposal
// @Tags Exams
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exam-schedules/proposals/{id} [get]
func (h *ExamScheduleHandler) Proposal(c *gin.Context) {
	result, err := h.service.Proposal(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "mode", "preview")
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Save godoc
// @Summary Persist a timetable proposal as exams
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.SaveExamScheduleRequest true "Save timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exam-schedules/save [post]
func (h *ExamScheduleHandler) Save(c *gin.Context) {
	var req dto.SaveExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List scheduled exams
// @Tags Exams
// @Produce json
// @Param year query int false "Academic year"
// @Param examType query string false "Internal or Semester"
// @Param department query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamScheduleHandler) List(c *gin.Context) {
	var query dto.ExamQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam query"))
		return
	}
	exams, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(exams))
	response.JSON(c, http.StatusOK, exams, nil, middleware.ExtractMeta(c))
}

// splitList accepts both repeated and comma separated query values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
