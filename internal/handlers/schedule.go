package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/response"
)

// ScheduleHandler exposes appointment booking operations.
type ScheduleHandler struct {
	schedules *services.ScheduleService
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(schedules *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

type createScheduleRequest struct {
	CounsellorID  string    `json:"counsellor_id" validate:"required"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
}

// POST /api/v1/schedule
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	if who.Role != models.RoleStudent {
		response.Error(c, errors.ErrForbidden.WithMessage("Only students can request appointments"))
		return
	}

	request, err := h.schedules.CreateRequest(requestContext(c), services.CreateScheduleInput{
		StudentID:     who.UserID,
		CounsellorID:  req.CounsellorID,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, request)
}

// GET /api/v1/schedule
func (h *ScheduleHandler) List(c *gin.Context) {
	who := currentActor(c)
	requests, err := h.schedules.ListRequests(requestContext(c), who.UserID, who.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, requests)
}

type updateScheduleRequest struct {
	Status string `json:"status" validate:"required,oneof=pending accepted rejected declined"`
}

// PATCH /api/v1/schedule/:id
func (h *ScheduleHandler) UpdateStatus(c *gin.Context) {
	var req updateScheduleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	request, err := h.schedules.UpdateStatus(requestContext(c), c.Param("id"), req.Status, who.UserID, who.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// GET /api/v1/schedule/busy-slots?counsellor_id=...&date=2026-09-14
func (h *ScheduleHandler) BusySlots(c *gin.Context) {
	counsellorID := c.Query("counsellor_id")
	rawDate := c.Query("date")
	if counsellorID == "" || rawDate == "" {
		response.Error(c, errors.NewBadRequest("counsellor_id and date are required"))
		return
	}

	day, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		response.Error(c, errors.NewBadRequest("date must be formatted as YYYY-MM-DD"))
		return
	}

	slots, err := h.schedules.BusySlots(requestContext(c), counsellorID, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"busy_slots": slots})
}
