package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/response"
)

// AssistantHandler exposes the AI chat endpoint.
type AssistantHandler struct {
	assistant *services.AssistantService
}

// NewAssistantHandler constructs an AssistantHandler.
func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type assistantChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// POST /api/v1/chatbot/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	if h.assistant == nil {
		response.Error(c, errors.ErrInternalServer.WithMessage("The assistant is not configured"))
		return
	}

	var req assistantChatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	if who.Role != models.RoleStudent {
		response.Error(c, errors.ErrForbidden.WithMessage("Only students can chat with the assistant"))
		return
	}

	reply, err := h.assistant.Chat(requestContext(c), who.UserID, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, reply)
}
