package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
)

func registerAuthRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	handler := handlers.NewAuthHandler(deps.Users)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/verify-email", handler.VerifyEmail)
		auth.POST("/resend-otp", handler.ResendOTP)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
