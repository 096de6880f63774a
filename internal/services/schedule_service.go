package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/metrics"
)

// CreateScheduleInput captures a student's appointment request.
type CreateScheduleInput struct {
	StudentID     string
	CounsellorID  string
	ScheduledTime time.Time
}

// ScheduleService manages appointment requests between students and counsellors.
type ScheduleService struct {
	db            *gorm.DB
	notifications *NotificationService
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(db *gorm.DB, notifications *NotificationService) (*ScheduleService, error) {
	if db == nil {
		return nil, errors.New("schedule service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("schedule service: notification service is required")
	}
	return &ScheduleService{db: db, notifications: notifications}, nil
}

// CreateRequest books a counsellor slot. A slot is taken when any request for
// the same counsellor and exact timestamp is pending or accepted. The request
// and the counsellor's notification commit in one transaction; the live push
// happens after commit.
func (s *ScheduleService) CreateRequest(ctx context.Context, input CreateScheduleInput) (*models.ScheduleRequest, error) {
	ctx = ensureContext(ctx)

	studentID := strings.TrimSpace(input.StudentID)
	counsellorID := strings.TrimSpace(input.CounsellorID)
	if studentID == "" || counsellorID == "" {
		return nil, apperrors.NewBadRequest("Student and counsellor are required")
	}
	if input.ScheduledTime.IsZero() {
		return nil, apperrors.NewBadRequest("Scheduled time is required")
	}

	var counsellor models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND role = ?", counsellorID, models.RoleCounsellor).
		First(&counsellor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Counsellor not found")
		}
		return nil, fmt.Errorf("schedule service: load counsellor: %w", err)
	}

	var student models.User
	if err := s.db.WithContext(ctx).Where("id = ?", studentID).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Student not found")
		}
		return nil, fmt.Errorf("schedule service: load student: %w", err)
	}

	scheduledTime := input.ScheduledTime.UTC()
	request := models.ScheduleRequest{
		StudentID:     studentID,
		CounsellorID:  counsellorID,
		ScheduledTime: scheduledTime,
		Status:        models.ScheduleStatusPending,
	}

	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.ScheduleRequest{}).
			Where("counsellor_id = ? AND scheduled_time = ? AND status IN ?",
				counsellorID, scheduledTime,
				[]string{models.ScheduleStatusPending, models.ScheduleStatusAccepted}).
			Count(&taken).Error; err != nil {
			return fmt.Errorf("schedule service: check slot: %w", err)
		}
		if taken > 0 {
			return apperrors.NewConflict("This time slot is already booked")
		}

		if err := tx.Create(&request).Error; err != nil {
			return fmt.Errorf("schedule service: create request: %w", err)
		}

		var nErr error
		notification, nErr = s.notifications.CreateTx(tx, CreateNotificationInput{
			UserID:  counsellorID,
			Type:    models.NotificationTypeBookingRequested,
			Title:   "New appointment request",
			Message: fmt.Sprintf("%s requested an appointment on %s", student.Username, scheduledTime.Format("02 Jan 2006 15:04")),
			Metadata: map[string]any{
				"request_id":     request.ID,
				"student_id":     studentID,
				"scheduled_time": scheduledTime.Format(time.RFC3339),
			},
		})
		return nErr
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == "CONFLICT" {
			metrics.BookingRequests.WithLabelValues("conflict").Inc()
		} else {
			metrics.BookingRequests.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.BookingRequests.WithLabelValues("created").Inc()
	s.notifications.Push(notification)
	return &request, nil
}

// ListRequests returns requests visible to the actor: students and counsellors
// see their own, admins see everything.
func (s *ScheduleService) ListRequests(ctx context.Context, actorID, actorRole string) ([]models.ScheduleRequest, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Counsellor").
		Order("scheduled_time ASC")

	switch actorRole {
	case models.RoleStudent:
		query = query.Where("student_id = ?", actorID)
	case models.RoleCounsellor:
		query = query.Where("counsellor_id = ?", actorID)
	case models.RoleAdmin:
	default:
		return nil, apperrors.ErrForbidden
	}

	var requests []models.ScheduleRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("schedule service: list requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus moves a request through pending/accepted/rejected/declined.
// Only the owning counsellor or an admin may decide; the student is notified
// in the same transaction.
func (s *ScheduleService) UpdateStatus(ctx context.Context, requestID, status, actorID, actorRole string) (*models.ScheduleRequest, error) {
	ctx = ensureContext(ctx)

	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidScheduleStatus(status) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown status %q", status))
	}

	var request models.ScheduleRequest
	if err := s.db.WithContext(ctx).
		Preload("Counsellor").
		Where("id = ?", strings.TrimSpace(requestID)).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Schedule request not found")
		}
		return nil, fmt.Errorf("schedule service: load request: %w", err)
	}

	switch actorRole {
	case models.RoleAdmin:
	case models.RoleCounsellor:
		if request.CounsellorID != actorID {
			return nil, apperrors.ErrForbidden
		}
	default:
		return nil, apperrors.ErrForbidden
	}

	if request.Status == status {
		return &request, nil
	}

	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&request).Update("status", status).Error; err != nil {
			return fmt.Errorf("schedule service: update status: %w", err)
		}

		if status == models.ScheduleStatusPending {
			return nil
		}
		var nErr error
		notification, nErr = s.notifications.CreateTx(tx, CreateNotificationInput{
			UserID:  request.StudentID,
			Type:    models.NotificationTypeBookingDecided,
			Title:   "Appointment " + status,
			Message: fmt.Sprintf("Your appointment on %s was %s by %s", request.ScheduledTime.Format("02 Jan 2006 15:04"), status, request.Counsellor.Username),
			Metadata: map[string]any{
				"request_id": request.ID,
				"status":     status,
			},
		})
		return nErr
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	s.notifications.Push(notification)
	return &request, nil
}

// BusySlots returns the "HH:00" start times of pending or accepted requests
// for the counsellor on the given day, sorted and deduplicated.
func (s *ScheduleService) BusySlots(ctx context.Context, counsellorID string, day time.Time) ([]string, error) {
	ctx = ensureContext(ctx)

	counsellorID = strings.TrimSpace(counsellorID)
	if counsellorID == "" {
		return nil, apperrors.NewBadRequest("Counsellor is required")
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var requests []models.ScheduleRequest
	if err := s.db.WithContext(ctx).
		Where("counsellor_id = ? AND scheduled_time >= ? AND scheduled_time < ? AND status IN ?",
			counsellorID, dayStart, dayEnd,
			[]string{models.ScheduleStatusPending, models.ScheduleStatusAccepted}).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("schedule service: list busy slots: %w", err)
	}

	seen := make(map[string]struct{}, len(requests))
	slots := make([]string, 0, len(requests))
	for _, request := range requests {
		slot := fmt.Sprintf("%02d:00", request.ScheduledTime.UTC().Hour())
		if _, ok := seen[slot]; ok {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots, nil
}
