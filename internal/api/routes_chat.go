package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/handlers"
)

func registerChatRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, deps Deps) {
	chatHandler := handlers.NewChatHandler(deps.Chats, deps.Hub)
	assistantHandler := handlers.NewAssistantHandler(deps.Assistant)

	chat := v1.Group("/chat")
	chat.Use(requireAuth)
	{
		chat.POST("/sessions", chatHandler.CreateSession)
		chat.GET("/sessions", chatHandler.ListSessions)
		chat.POST("/sessions/:id/messages", chatHandler.SendMessage)
		chat.GET("/sessions/:id/messages", chatHandler.ListMessages)
		chat.POST("/sessions/:id/close", chatHandler.CloseSession)
		chat.GET("/ws/:userID", chatHandler.ServeWS)
	}

	chatbot := v1.Group("/chatbot")
	chatbot.Use(requireAuth)
	{
		chatbot.POST("/chat", assistantHandler.Chat)
	}
}
