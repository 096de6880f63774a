package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/response"
)

// RatingHandler exposes counsellor rating operations.
type RatingHandler struct {
	ratings *services.RatingService
}

// NewRatingHandler constructs a RatingHandler.
func NewRatingHandler(ratings *services.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type createRatingRequest struct {
	CounsellorID string `json:"counsellor_id" validate:"required"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Review       string `json:"review"`
}

// POST /api/v1/ratings
func (h *RatingHandler) Create(c *gin.Context) {
	var req createRatingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	if who.Role != models.RoleStudent {
		response.Error(c, errors.ErrForbidden.WithMessage("Only students can rate counsellors"))
		return
	}

	rating, err := h.ratings.Create(requestContext(c), services.CreateRatingInput{
		StudentID:    who.UserID,
		CounsellorID: req.CounsellorID,
		Rating:       req.Rating,
		Review:       req.Review,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, rating)
}

// GET /api/v1/ratings/:counsellorID
func (h *RatingHandler) ListForCounsellor(c *gin.Context) {
	ratings, err := h.ratings.ListForCounsellor(requestContext(c), c.Param("counsellorID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ratings)
}
