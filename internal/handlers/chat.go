package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/realtime"
	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/response"
)

// ChatHandler exposes chat sessions, messages and the WebSocket endpoint.
type ChatHandler struct {
	chats *services.ChatService
	hub   *realtime.Hub
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(chats *services.ChatService, hub *realtime.Hub) *ChatHandler {
	return &ChatHandler{chats: chats, hub: hub}
}

type createSessionRequest struct {
	CounsellorID string `json:"counsellor_id"`
	ChatType     string `json:"chat_type" validate:"omitempty,oneof=ai counsellor"`
}

// POST /api/v1/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	if who.Role != models.RoleStudent {
		response.Error(c, errors.ErrForbidden.WithMessage("Only students can open chat sessions"))
		return
	}

	session, err := h.chats.CreateSession(requestContext(c), services.CreateSessionInput{
		StudentID:    who.UserID,
		CounsellorID: req.CounsellorID,
		ChatType:     req.ChatType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// GET /api/v1/chat/sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	who := currentActor(c)
	sessions, err := h.chats.ListSessions(requestContext(c), who.UserID, who.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// POST /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	who := currentActor(c)
	message, err := h.chats.SendMessage(requestContext(c), c.Param("id"), who.UserID, who.Role, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// GET /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	who := currentActor(c)
	messages, err := h.chats.ListMessages(requestContext(c), c.Param("id"), who.UserID, who.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}

// POST /api/v1/chat/sessions/:id/close
func (h *ChatHandler) CloseSession(c *gin.Context) {
	who := currentActor(c)
	session, err := h.chats.CloseSession(requestContext(c), c.Param("id"), who.UserID, who.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// GET /api/v1/chat/ws/:userID
//
// The path user id must match the authenticated user; the connection then
// receives NEW_SESSION and NEW_MESSAGE events until it closes.
func (h *ChatHandler) ServeWS(c *gin.Context) {
	who := currentActor(c)
	if c.Param("userID") != who.UserID {
		response.Error(c, errors.ErrForbidden.WithMessage("Cannot open a connection for another user"))
		return
	}
	h.hub.Serve(who.UserID, c.Writer, c.Request)
}
