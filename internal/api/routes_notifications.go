package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
)

func registerNotificationRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	handler := handlers.NewNotificationHandler(deps.Notifications)

	notifications := v1.Group("/notifications")
	notifications.Use(requireAuth)
	{
		notifications.GET("", handler.List)
		notifications.POST("/read-all", handler.MarkAllRead)
		notifications.POST("/:id/read", handler.MarkRead)
	}
}
