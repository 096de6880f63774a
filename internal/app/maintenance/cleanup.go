package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 30
	defaultNotificationSpec          = "@daily"
	defaultBookingSpec               = "@hourly"
	defaultCacheSpec                 = "@every 10m"
)

// Cleaner coordinates background maintenance tasks: pruning old read
// notifications, expiring pending bookings whose scheduled time has passed,
// and sweeping expired entries from the in-memory cache.
type Cleaner struct {
	db        *gorm.DB
	memory    *cache.MemoryStore
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	notificationSchedule string
	bookingSchedule      string
	cacheSchedule        string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are retained.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithNotificationSchedule overrides the cron specification for notification pruning.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// WithBookingSchedule overrides the cron specification for expiring stale bookings.
func WithBookingSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.bookingSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil memory store
// results in the cache sweep being skipped.
func NewCleaner(db *gorm.DB, memory *cache.MemoryStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		memory:               memory,
		now:                  time.Now,
		retention:            defaultNotificationRetentionDays,
		notificationSchedule: defaultNotificationSpec,
		bookingSchedule:      defaultBookingSpec,
		cacheSchedule:        defaultCacheSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.db != nil || cleaner.memory != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.db != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.notificationSchedule, func() {
			if _, err := c.pruneNotifications(context.Background()); err != nil {
				c.log.Warn("notification cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.bookingSchedule, func() {
			if _, err := c.expireStaleBookings(context.Background()); err != nil {
				c.log.Warn("booking expiry failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.memory != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			c.memory.Sweep()
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used
// in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil && c.retention > 0 {
		if _, err := c.pruneNotifications(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := c.expireStaleBookings(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.memory != nil {
		c.memory.Sweep()
	}

	return errs
}

// pruneNotifications removes read notifications older than the retention window.
func (c *Cleaner) pruneNotifications(ctx context.Context) (int64, error) {
	cutoff := c.now().AddDate(0, 0, -c.retention)
	result := c.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		c.log.Info("pruned notifications", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// expireStaleBookings declines pending requests whose scheduled time has
// already passed so they stop blocking the counsellor's slot.
func (c *Cleaner) expireStaleBookings(ctx context.Context) (int64, error) {
	result := c.db.WithContext(ctx).
		Model(&models.ScheduleRequest{}).
		Where("status = ? AND scheduled_time < ?", models.ScheduleStatusPending, c.now()).
		Update("status", models.ScheduleStatusDeclined)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		c.log.Info("expired stale bookings", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
