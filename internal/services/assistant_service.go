package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

const (
	defaultGeminiModel  = "gemini-1.5-flash"
	assistantHistoryLen = 10

	assistantSystemPrompt = "You are Sonder AI, a supportive companion for students on the Sonder " +
		"mental-health platform. Listen with empathy, keep replies short and warm, and never " +
		"diagnose or prescribe. If the student appears to be in crisis, gently encourage them " +
		"to book a session with a counsellor or contact local emergency services."
)

// ChatTurn is one prior exchange handed to the completion backend. Role is
// "user" for the student and "model" for assistant replies.
type ChatTurn struct {
	Role string
	Text string
}

// Completer produces an assistant reply from conversation history.
type Completer interface {
	Complete(ctx context.Context, history []ChatTurn, prompt string) (string, error)
	Close() error
}

// GeminiConfig configures the Gemini completion backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiCompleter talks to the Gemini generative API.
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiCompleter dials Gemini and prepares the model with the Sonder
// system prompt.
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: create gemini client: %w", err)
	}

	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(assistantSystemPrompt)},
	}

	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete replays the history into a chat session and sends the prompt.
func (g *GeminiCompleter) Complete(ctx context.Context, history []ChatTurn, prompt string) (string, error) {
	chat := g.model.StartChat()
	chat.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		chat.History = append(chat.History, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("assistant: generate reply: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("assistant: empty completion")
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	reply := strings.TrimSpace(builder.String())
	if reply == "" {
		return "", errors.New("assistant: completion contained no text")
	}
	return reply, nil
}

// Close releases the underlying client.
func (g *GeminiCompleter) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// AssistantService drives AI chat sessions: it persists the student's message,
// asks the completion backend for a reply with recent context, and persists
// the reply with the assistant sender role.
type AssistantService struct {
	chats     *ChatService
	completer Completer
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(chats *ChatService, completer Completer) (*AssistantService, error) {
	if chats == nil {
		return nil, errors.New("assistant service: chat service is required")
	}
	if completer == nil {
		return nil, errors.New("assistant service: completer is required")
	}
	return &AssistantService{chats: chats, completer: completer}, nil
}

// Chat handles one student message and returns the stored assistant reply.
func (s *AssistantService) Chat(ctx context.Context, studentID, text string) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewBadRequest("Message is required")
	}

	session, err := s.chats.ActiveAISession(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.chats.SendMessage(ctx, session.ID, studentID, models.RoleStudent, text); err != nil {
		return nil, err
	}

	messages, err := s.chats.ListMessages(ctx, session.ID, studentID, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	if len(messages) > assistantHistoryLen {
		messages = messages[len(messages)-assistantHistoryLen:]
	}

	// The final message is the one just stored; everything before it is context.
	history := make([]ChatTurn, 0, len(messages)-1)
	for _, message := range messages[:len(messages)-1] {
		role := "user"
		if message.SenderRole == models.SenderAI {
			role = "model"
		}
		history = append(history, ChatTurn{Role: role, Text: message.Message})
	}

	reply, err := s.completer.Complete(ctx, history, text)
	if err != nil {
		return nil, apperrors.ErrInternalServer.
			WithMessage("The assistant is unavailable right now").
			WithInternal(err)
	}

	return s.chats.SendMessage(ctx, session.ID, "", models.SenderAI, reply)
}
