package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/cache"
	testutil "github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/models"
)

func seedMaintenanceUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	tag := uuid.NewString()[:8]
	user := &models.User{
		Email:      fmt.Sprintf("maint-%s@sonder.test", tag),
		Username:   "maint-" + tag,
		Password:   "irrelevant",
		Role:       role,
		IsVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCleanerPrunesOldReadNotifications(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	user := seedMaintenanceUser(t, db, models.RoleStudent)

	oldRead := models.Notification{
		UserID: user.ID,
		Type:   models.NotificationTypeBookingDecided,
		Title:  "old read",
		IsRead: true,
	}
	oldRead.CreatedAt = now.AddDate(0, 0, -45)
	oldUnread := models.Notification{
		UserID: user.ID,
		Type:   models.NotificationTypeBookingDecided,
		Title:  "old unread",
	}
	oldUnread.CreatedAt = now.AddDate(0, 0, -45)
	recentRead := models.Notification{
		UserID: user.ID,
		Type:   models.NotificationTypeBookingDecided,
		Title:  "recent read",
		IsRead: true,
	}
	recentRead.CreatedAt = now.AddDate(0, 0, -2)
	require.NoError(t, db.Create(&oldRead).Error)
	require.NoError(t, db.Create(&oldUnread).Error)
	require.NoError(t, db.Create(&recentRead).Error)

	cleaner := NewCleaner(db, nil, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var remaining []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, n := range remaining {
		require.NotEqual(t, "old read", n.Title)
	}
}

func TestCleanerExpiresStalePendingBookings(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	student := seedMaintenanceUser(t, db, models.RoleStudent)
	counsellor := seedMaintenanceUser(t, db, models.RoleCounsellor)

	stale := models.ScheduleRequest{
		StudentID:     student.ID,
		CounsellorID:  counsellor.ID,
		ScheduledTime: now.Add(-2 * time.Hour),
		Status:        models.ScheduleStatusPending,
	}
	upcoming := models.ScheduleRequest{
		StudentID:     student.ID,
		CounsellorID:  counsellor.ID,
		ScheduledTime: now.Add(2 * time.Hour),
		Status:        models.ScheduleStatusPending,
	}
	pastAccepted := models.ScheduleRequest{
		StudentID:     student.ID,
		CounsellorID:  counsellor.ID,
		ScheduledTime: now.Add(-3 * time.Hour),
		Status:        models.ScheduleStatusAccepted,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&upcoming).Error)
	require.NoError(t, db.Create(&pastAccepted).Error)

	cleaner := NewCleaner(db, nil, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var got models.ScheduleRequest
	require.NoError(t, db.First(&got, "id = ?", stale.ID).Error)
	require.Equal(t, models.ScheduleStatusDeclined, got.Status)

	require.NoError(t, db.First(&got, "id = ?", upcoming.ID).Error)
	require.Equal(t, models.ScheduleStatusPending, got.Status)

	require.NoError(t, db.First(&got, "id = ?", pastAccepted.ID).Error)
	require.Equal(t, models.ScheduleStatusAccepted, got.Status)
}

func TestCleanerSweepsMemoryStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	current := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore().WithClock(func() time.Time { return current })
	require.NoError(t, store.Set(context.Background(), "stale", []byte("v"), time.Minute))
	current = current.Add(2 * time.Minute)

	cleaner := NewCleaner(db, store)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	_, ok, err := store.Get(context.Background(), "stale")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := cache.NewMemoryStore()

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(db, store,
		WithCron(scheduler),
		WithNotificationRetentionDays(7),
		WithNotificationSchedule("@every 1h"),
		WithBookingSchedule("@every 30m"),
	)

	require.NoError(t, cleaner.Start())
	require.Len(t, scheduler.Entries(), 3)
	<-cleaner.Stop().Done()
}
