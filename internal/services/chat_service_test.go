package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

func TestCreateSessionIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-1")
	counsellor := seedUser(t, db, models.RoleCounsellor, "chat-counsellor-1")

	first, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusActive, first.Status)
	require.Equal(t, models.ChatTypeCounsellor, first.ChatType)

	second, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// Closing the session allows a fresh one.
	_, err = service.CloseSession(context.Background(), first.ID, student.ID, models.RoleStudent)
	require.NoError(t, err)

	third, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
}

func TestCreateSessionValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-2")

	_, err = service.CreateSession(context.Background(), CreateSessionInput{
		StudentID: student.ID,
		ChatType:  models.ChatTypeCounsellor,
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	_, err = service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: "missing-counsellor",
	})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	// AI sessions need no counsellor.
	session, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID: student.ID,
		ChatType:  models.ChatTypeAI,
	})
	require.NoError(t, err)
	require.Nil(t, session.CounsellorID)
}

func TestSendMessageMembership(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-3")
	counsellor := seedUser(t, db, models.RoleCounsellor, "chat-counsellor-2")
	outsider := seedUser(t, db, models.RoleStudent, "chat-student-4")

	session, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)

	_, err = service.SendMessage(context.Background(), session.ID, student.ID, models.RoleStudent, "hi, do you have time this week?")
	require.NoError(t, err)
	_, err = service.SendMessage(context.Background(), session.ID, counsellor.ID, models.RoleCounsellor, "of course, book a slot that suits you")
	require.NoError(t, err)

	_, err = service.SendMessage(context.Background(), session.ID, outsider.ID, models.RoleStudent, "let me in")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = service.SendMessage(context.Background(), session.ID, student.ID, models.RoleStudent, "   ")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestListMessagesAscending(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-5")
	counsellor := seedUser(t, db, models.RoleCounsellor, "chat-counsellor-3")

	session, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		_, err = service.SendMessage(context.Background(), session.ID, student.ID, models.RoleStudent, text)
		require.NoError(t, err)
	}

	messages, err := service.ListMessages(context.Background(), session.ID, counsellor.ID, models.RoleCounsellor)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, text := range texts {
		require.Equal(t, text, messages[i].Message)
	}

	outsider := seedUser(t, db, models.RoleStudent, "chat-student-6")
	_, err = service.ListMessages(context.Background(), session.ID, outsider.ID, models.RoleStudent)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestListSessionsScoping(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-7")
	counsellor := seedUser(t, db, models.RoleCounsellor, "chat-counsellor-4")

	session, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)

	forStudent, err := service.ListSessions(context.Background(), student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, forStudent, 1)
	require.Equal(t, session.ID, forStudent[0].ID)

	forCounsellor, err := service.ListSessions(context.Background(), counsellor.ID, models.RoleCounsellor)
	require.NoError(t, err)
	require.Len(t, forCounsellor, 1)

	_, err = service.ListSessions(context.Background(), student.ID, "support")
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSendMessageClosedSession(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewChatService(db, nil)
	require.NoError(t, err)

	student := seedUser(t, db, models.RoleStudent, "chat-student-8")
	counsellor := seedUser(t, db, models.RoleCounsellor, "chat-counsellor-5")

	session, err := service.CreateSession(context.Background(), CreateSessionInput{
		StudentID:    student.ID,
		CounsellorID: counsellor.ID,
	})
	require.NoError(t, err)

	_, err = service.CloseSession(context.Background(), session.ID, counsellor.ID, models.RoleCounsellor)
	require.NoError(t, err)

	_, err = service.SendMessage(context.Background(), session.ID, student.ID, models.RoleStudent, "anyone there?")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}
