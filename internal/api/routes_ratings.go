package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
)

func registerRatingRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	handler := handlers.NewRatingHandler(deps.Ratings)

	ratings := v1.Group("/ratings")
	ratings.Use(requireAuth)
	{
		ratings.POST("", handler.Create)
		ratings.GET("/:counsellorID", handler.ListForCounsellor)
	}
}
