package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/middleware"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/response"
)

type roomFinder interface {
	ListAvailable(ctx context.Context, query dto.AvailableRoomsQuery) ([]models.Room, error)
}

type seatingAllocator interface {
	AllocateSeating(ctx context.Context, req dto.AllocateSeatingRequest) (*dto.AllocateSeatingResponse, error)
	GetSeating(ctx context.Context, examID string) (*dto.ExamSeating, bool, error)
}

type seatingPlanProvider interface {
	Link(ctx context.Context, examID string, format dto.SeatingPlanFormat) (*dto.SeatingPlanLink, error)
	Open(ctx context.Context, token string) (*service.SeatingPlanDownload, error)
}

// SeatingHandler exposes room availability, seating allocation and plan downloads.
type SeatingHandler struct {
	rooms   roomFinder
	seating seatingAllocator
	plans   seatingPlanProvider
}

// NewSeatingHandler constructs the handler.
func NewSeatingHandler(rooms *service.RoomAvailabilityService, seating *service.SeatingService, plans *service.SeatingPlanService) *SeatingHandler {
	return &SeatingHandler{rooms: rooms, seating: seating, plans: plans}
}

// AvailableRooms godoc
// @Summary List rooms free for a date and session
// @Tags Seating
// @Produce json
// @Param date query string true "Exam date (YYYY-MM-DD)"
// @Param session query string true "FN or AN"
// @Param excludeExamId query string false "Ignore this exam's own bookings"
// @Success 200 {object} response.Envelope
// @Router /rooms/available [get]
func (h *SeatingHandler) AvailableRooms(c *gin.Context) {
	var query dto.AvailableRoomsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room query"))
		return
	}
	rooms, err := h.rooms.ListAvailable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(rooms))
	response.JSON(c, http.StatusOK, rooms, nil, middleware.ExtractMeta(c))
}

// Allocate godoc
// @Summary Allocate and publish seating for an exam
// @Description Replaces any previous seating of the exam. Set dryRun to preview without publishing.
// @Tags Seating
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.AllocateSeatingRequest false "Allocation options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams/{id}/seating [post]
func (h *SeatingHandler) Allocate(c *gin.Context) {
	var req dto.AllocateSeatingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating payload"))
			return
		}
	}
	req.ExamID = c.Param("id")

	result, err := h.seating.AllocateSeating(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Committed {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}

// Seating godoc
// @Summary Get the published seating of an exam
// @Tags Seating
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id}/seating [get]
func (h *SeatingHandler) Seating(c *gin.Context) {
	result, hit, err := h.seating.GetSeating(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// PlanLink godoc
// @Summary Get a signed seating plan download link
// @Tags Seating
// @Produce json
// @Param id path string true "Exam ID"
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exams/{id}/seating/plan [get]
func (h *SeatingHandler) PlanLink(c *gin.Context) {
	format := dto.SeatingPlanFormat(c.DefaultQuery("format", string(dto.SeatingPlanFormatPDF)))
	if !format.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	link, err := h.plans.Link(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadPlan godoc
// @Summary Download a seating plan by signed token
// @Tags Seating
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /seating-plans/{token} [get]
func (h *SeatingHandler) DownloadPlan(c *gin.Context) {
	download, err := h.plans.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read seating plan"))
		return
	}
	response.Attachment(c, download.Filename, download.ContentType, info.Size(), download.File)
}
