package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

func TestNotificationCreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, models.RoleCounsellor, "notif-user-1")

	created, err := service.Create(context.Background(), CreateNotificationInput{
		UserID:   user.ID,
		Type:     models.NotificationTypeBookingRequested,
		Title:    "New appointment request",
		Message:  "alice requested an appointment",
		Metadata: map[string]any{"request_id": "req-1"},
	})
	require.NoError(t, err)
	require.False(t, created.IsRead)

	items, err := service.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, created.ID, items[0].ID)
	require.Contains(t, string(items[0].Metadata), "req-1")
}

func TestNotificationMarkRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, models.RoleStudent, "notif-user-2")
	other := seedUser(t, db, models.RoleStudent, "notif-user-3")

	created, err := service.Create(context.Background(), CreateNotificationInput{
		UserID:  user.ID,
		Type:    models.NotificationTypeBookingDecided,
		Title:   "Appointment accepted",
		Message: "your appointment was accepted",
	})
	require.NoError(t, err)

	read, err := service.MarkRead(context.Background(), user.ID, created.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	// Reading someone else's notification is a not-found, not a leak.
	_, err = service.MarkRead(context.Background(), other.ID, created.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationMarkAllReadAndUnreadFilter(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, models.RoleStudent, "notif-user-4")

	for i := 0; i < 3; i++ {
		_, err := service.Create(context.Background(), CreateNotificationInput{
			UserID:  user.ID,
			Type:    models.NotificationTypeBookingDecided,
			Title:   "Appointment declined",
			Message: "your appointment was declined",
		})
		require.NoError(t, err)
	}

	unread, err := service.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 3)

	require.NoError(t, service.MarkAllRead(context.Background(), user.ID))

	unread, err = service.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	all, err := service.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
}
