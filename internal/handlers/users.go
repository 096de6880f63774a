package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/response"
)

// UserHandler exposes user listing and profile operations.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/v1/users?role=counsellor&available=true
func (h *UserHandler) List(c *gin.Context) {
	onlyAvailable, _ := strconv.ParseBool(c.Query("available"))

	users, err := h.users.List(requestContext(c), services.ListUsersInput{
		Role:          c.Query("role"),
		OnlyAvailable: onlyAvailable,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

// PATCH /api/v1/users/availability
func (h *UserHandler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.SetAvailability(requestContext(c), currentActor(c).UserID, *req.IsAvailable)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
