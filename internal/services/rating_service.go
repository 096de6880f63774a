package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/models"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

// CreateRatingInput captures a student's rating of a counsellor.
type CreateRatingInput struct {
	StudentID    string
	CounsellorID string
	Rating       int
	Review       string
}

// RatingService manages counsellor ratings and the aggregate score.
type RatingService struct {
	db *gorm.DB
}

// NewRatingService constructs a RatingService.
func NewRatingService(db *gorm.DB) (*RatingService, error) {
	if db == nil {
		return nil, errors.New("rating service: db is required")
	}
	return &RatingService{db: db}, nil
}

// Create stores a rating and refreshes the counsellor's aggregate. Each
// student may rate a counsellor once.
func (s *RatingService) Create(ctx context.Context, input CreateRatingInput) (*models.CounsellorRating, error) {
	ctx = ensureContext(ctx)

	studentID := strings.TrimSpace(input.StudentID)
	counsellorID := strings.TrimSpace(input.CounsellorID)
	if studentID == "" || counsellorID == "" {
		return nil, apperrors.NewBadRequest("Student and counsellor are required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewBadRequest("Rating must be between 1 and 5")
	}

	var counsellor models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND role = ?", counsellorID, models.RoleCounsellor).
		First(&counsellor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Counsellor not found")
		}
		return nil, fmt.Errorf("rating service: load counsellor: %w", err)
	}

	rating := models.CounsellorRating{
		StudentID:    studentID,
		CounsellorID: counsellorID,
		Rating:       input.Rating,
		Review:       strings.TrimSpace(input.Review),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rating).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("You have already rated this counsellor")
			}
			return fmt.Errorf("rating service: create rating: %w", err)
		}
		return refreshAggregate(tx, counsellorID)
	})
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// ListForCounsellor returns a counsellor's ratings newest first.
func (s *RatingService) ListForCounsellor(ctx context.Context, counsellorID string) ([]models.CounsellorRating, error) {
	ctx = ensureContext(ctx)

	counsellorID = strings.TrimSpace(counsellorID)
	if counsellorID == "" {
		return nil, apperrors.NewBadRequest("Counsellor is required")
	}

	var ratings []models.CounsellorRating
	if err := s.db.WithContext(ctx).
		Preload("Student").
		Where("counsellor_id = ?", counsellorID).
		Order("created_at DESC").
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("rating service: list ratings: %w", err)
	}
	return ratings, nil
}

func refreshAggregate(tx *gorm.DB, counsellorID string) error {
	var average float64
	if err := tx.Model(&models.CounsellorRating{}).
		Where("counsellor_id = ?", counsellorID).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&average).Error; err != nil {
		return fmt.Errorf("rating service: compute aggregate: %w", err)
	}

	if err := tx.Model(&models.User{}).
		Where("id = ?", counsellorID).
		Update("rating", average).Error; err != nil {
		return fmt.Errorf("rating service: store aggregate: %w", err)
	}
	return nil
}
