package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

type scriptedCompleter struct {
	replies  []string
	calls    int
	history  []ChatTurn
	prompt   string
	failWith error
}

func (c *scriptedCompleter) Complete(_ context.Context, history []ChatTurn, prompt string) (string, error) {
	c.calls++
	c.history = history
	c.prompt = prompt
	if c.failWith != nil {
		return "", c.failWith
	}
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return reply, nil
}

func (c *scriptedCompleter) Close() error { return nil }

func TestAssistantChatRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	chats, err := NewChatService(db, nil)
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{"that sounds stressful, tell me more", "have you considered a counsellor session?"}}
	service, err := NewAssistantService(chats, completer)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "ai-student-1")

	reply, err := service.Chat(context.Background(), student.ID, "I'm overwhelmed by deadlines")
	require.NoError(t, err)
	require.Equal(t, models.SenderAI, reply.SenderRole)
	require.Equal(t, "that sounds stressful, tell me more", reply.Message)
	require.Empty(t, completer.history)
	require.Equal(t, "I'm overwhelmed by deadlines", completer.prompt)

	// The second turn carries the first exchange as context.
	_, err = service.Chat(context.Background(), student.ID, "mostly my thesis")
	require.NoError(t, err)
	require.Len(t, completer.history, 2)
	require.Equal(t, "user", completer.history[0].Role)
	require.Equal(t, "model", completer.history[1].Role)

	// Both turns live in one AI session.
	sessions, err := chats.ListSessions(context.Background(), student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, models.ChatTypeAI, sessions[0].ChatType)

	messages, err := chats.ListMessages(context.Background(), sessions[0].ID, student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, messages, 4)
}

func TestAssistantChatHistoryWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	chats, err := NewChatService(db, nil)
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{"ok"}}
	service, err := NewAssistantService(chats, completer)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "ai-student-2")

	for i := 0; i < 8; i++ {
		_, err := service.Chat(context.Background(), student.ID, "checking in again")
		require.NoError(t, err)
	}

	// 8 exchanges = 16 stored messages, but only the last 10 reach the model:
	// 9 history turns plus the prompt itself.
	require.Len(t, completer.history, 9)
}

func TestAssistantChatBackendFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	chats, err := NewChatService(db, nil)
	require.NoError(t, err)

	completer := &scriptedCompleter{failWith: context.DeadlineExceeded}
	service, err := NewAssistantService(chats, completer)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "ai-student-3")

	_, err = service.Chat(context.Background(), student.ID, "hello?")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INTERNAL_SERVER_ERROR", appErr.Code)

	// The student's message is still stored even when the backend fails.
	sessions, err := chats.ListSessions(context.Background(), student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	messages, err := chats.ListMessages(context.Background(), sessions[0].ID, student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, models.RoleStudent, messages[0].SenderRole)
}
