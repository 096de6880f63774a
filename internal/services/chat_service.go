package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/realtime"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/metrics"
)

// CreateSessionInput captures a student's request to open a conversation.
type CreateSessionInput struct {
	StudentID    string
	CounsellorID string
	ChatType     string
}

// SessionEventPayload is pushed with NEW_SESSION events.
type SessionEventPayload struct {
	SessionID   string `json:"session_id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	ChatType    string `json:"chat_type"`
}

// MessageEventPayload is pushed with NEW_MESSAGE events.
type MessageEventPayload struct {
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id"`
	SenderRole string `json:"sender_role"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

// ChatService manages chat sessions and relays messages to live connections.
type ChatService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewChatService constructs a ChatService. The hub may be nil; messages are
// then persisted without live delivery.
func NewChatService(db *gorm.DB, hub *realtime.Hub) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	return &ChatService{db: db, hub: hub}, nil
}

// CreateSession opens a conversation for the student, reusing an existing
// active session for the same pairing. Counsellor sessions announce themselves
// to the counsellor via NEW_SESSION.
func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*models.ChatSession, error) {
	ctx = ensureContext(ctx)

	studentID := strings.TrimSpace(input.StudentID)
	counsellorID := strings.TrimSpace(input.CounsellorID)
	chatType := strings.ToLower(strings.TrimSpace(input.ChatType))
	if chatType == "" {
		chatType = models.ChatTypeCounsellor
	}

	if studentID == "" {
		return nil, apperrors.NewBadRequest("Student is required")
	}
	switch chatType {
	case models.ChatTypeAI:
		counsellorID = ""
	case models.ChatTypeCounsellor:
		if counsellorID == "" {
			return nil, apperrors.NewBadRequest("Counsellor is required")
		}
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown chat type %q", chatType))
	}

	var student models.User
	if err := s.db.WithContext(ctx).Where("id = ?", studentID).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Student not found")
		}
		return nil, fmt.Errorf("chat service: load student: %w", err)
	}

	query := s.db.WithContext(ctx).
		Where("student_id = ? AND chat_type = ? AND status = ?", studentID, chatType, models.SessionStatusActive)
	if counsellorID != "" {
		query = query.Where("counsellor_id = ?", counsellorID)
	}

	var existing models.ChatSession
	err := query.First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chat service: find session: %w", err)
	}

	session := models.ChatSession{
		StudentID: studentID,
		ChatType:  chatType,
		Status:    models.SessionStatusActive,
	}
	if counsellorID != "" {
		var counsellor models.User
		if err := s.db.WithContext(ctx).
			Where("id = ? AND role = ?", counsellorID, models.RoleCounsellor).
			First(&counsellor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrNotFound.WithMessage("Counsellor not found")
			}
			return nil, fmt.Errorf("chat service: load counsellor: %w", err)
		}
		session.CounsellorID = &counsellor.ID
	}

	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("chat service: create session: %w", err)
	}

	if s.hub != nil && session.CounsellorID != nil {
		s.hub.Deliver(*session.CounsellorID, realtime.Event{
			Type: realtime.EventNewSession,
			Data: SessionEventPayload{
				SessionID:   session.ID,
				StudentID:   student.ID,
				StudentName: student.Username,
				ChatType:    session.ChatType,
			},
		})
	}

	return &session, nil
}

// SendMessage persists a message from a session participant, then pushes
// NEW_MESSAGE to both parties. Delivery is best effort and never affects the
// stored message.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, senderID, senderRole, text string) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewBadRequest("Message is required")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if senderRole != models.SenderAI {
		if err := requireParticipant(session, senderID, senderRole); err != nil {
			return nil, err
		}
	}
	if session.Status == models.SessionStatusClosed {
		return nil, apperrors.NewBadRequest("Session is closed")
	}

	message := models.ChatMessage{
		SessionID:  session.ID,
		SenderRole: senderRole,
		Message:    text,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("chat service: create message: %w", err)
	}

	metrics.ChatMessages.WithLabelValues(senderRole).Inc()
	s.pushMessage(session, &message)
	return &message, nil
}

// ListMessages returns a session's messages oldest first. Only participants
// and admins may read.
func (s *ChatService) ListMessages(ctx context.Context, sessionID, actorID, actorRole string) ([]models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin {
		if err := requireParticipant(session, actorID, actorRole); err != nil {
			return nil, err
		}
	}

	var messages []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("chat service: list messages: %w", err)
	}
	return messages, nil
}

// ListSessions returns sessions visible to the actor: students and counsellors
// see their own, admins see everything.
func (s *ChatService) ListSessions(ctx context.Context, actorID, actorRole string) ([]models.ChatSession, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Counsellor").
		Order("created_at DESC")

	switch actorRole {
	case models.RoleStudent:
		query = query.Where("student_id = ?", actorID)
	case models.RoleCounsellor:
		query = query.Where("counsellor_id = ?", actorID)
	case models.RoleAdmin:
	default:
		return nil, apperrors.ErrForbidden
	}

	var sessions []models.ChatSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("chat service: list sessions: %w", err)
	}
	return sessions, nil
}

// CloseSession marks a session closed. Participants and admins only.
func (s *ChatService) CloseSession(ctx context.Context, sessionID, actorID, actorRole string) (*models.ChatSession, error) {
	ctx = ensureContext(ctx)

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin {
		if err := requireParticipant(session, actorID, actorRole); err != nil {
			return nil, err
		}
	}
	if session.Status == models.SessionStatusClosed {
		return session, nil
	}

	if err := s.db.WithContext(ctx).
		Model(session).
		Update("status", models.SessionStatusClosed).Error; err != nil {
		return nil, fmt.Errorf("chat service: close session: %w", err)
	}
	session.Status = models.SessionStatusClosed
	return session, nil
}

// ActiveAISession finds or creates the student's active AI session.
func (s *ChatService) ActiveAISession(ctx context.Context, studentID string) (*models.ChatSession, error) {
	return s.CreateSession(ctx, CreateSessionInput{
		StudentID: studentID,
		ChatType:  models.ChatTypeAI,
	})
}

func (s *ChatService) loadSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Chat session not found")
		}
		return nil, fmt.Errorf("chat service: load session: %w", err)
	}
	return &session, nil
}

func (s *ChatService) pushMessage(session *models.ChatSession, message *models.ChatMessage) {
	if s.hub == nil {
		return
	}

	payload := MessageEventPayload{
		SessionID:  session.ID,
		MessageID:  message.ID,
		SenderRole: message.SenderRole,
		Message:    message.Message,
		CreatedAt:  message.CreatedAt.UTC().Format(time.RFC3339),
	}
	event := realtime.Event{Type: realtime.EventNewMessage, Data: payload}

	s.hub.Deliver(session.StudentID, event)
	if session.CounsellorID != nil {
		s.hub.Deliver(*session.CounsellorID, event)
	}
}

func requireParticipant(session *models.ChatSession, actorID, actorRole string) error {
	switch actorRole {
	case models.RoleStudent:
		if session.StudentID == actorID {
			return nil
		}
	case models.RoleCounsellor:
		if session.CounsellorID != nil && *session.CounsellorID == actorID {
			return nil
		}
	}
	return apperrors.ErrForbidden
}
