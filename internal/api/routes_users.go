package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
	"github.com/sonderhq/sonder-server/internal/middleware"
	"github.com/sonderhq/sonder-server/internal/models"
)

func registerUserRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	handler := handlers.NewUserHandler(deps.Users)

	users := v1.Group("/users")
	users.Use(requireAuth)
	{
		users.GET("", handler.List)
		users.PATCH("/availability",
			middleware.RequireRoles(models.RoleCounsellor),
			handler.SetAvailability)
		users.GET("/:id", handler.Get)
	}
}
