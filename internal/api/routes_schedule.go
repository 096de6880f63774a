package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
)

func registerScheduleRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	handler := handlers.NewScheduleHandler(deps.Schedules)

	schedule := v1.Group("/schedule")
	schedule.Use(requireAuth)
	{
		schedule.POST("", handler.Create)
		schedule.GET("", handler.List)
		schedule.GET("/busy-slots", handler.BusySlots)
		schedule.PATCH("/:id", handler.UpdateStatus)
	}
}
