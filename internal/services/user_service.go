package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/otp"
	"github.com/sonderhq/sonder-server/pkg/crypto"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
	"github.com/sonderhq/sonder-server/pkg/metrics"
)

const minPasswordLength = 8

// RegisterInput captures a new account. Phone, experience and certification
// only apply to counsellors.
type RegisterInput struct {
	Email         string
	Username      string
	Password      string
	Role          string
	Phone         string
	Experience    *int
	Certification string
}

// AuthResult is returned on successful login.
type AuthResult struct {
	User  *models.User
	Token string
}

// ListUsersInput filters the user listing.
type ListUsersInput struct {
	Role          string
	OnlyAvailable bool
}

// UserService manages accounts: registration, verification and login.
type UserService struct {
	db  *gorm.DB
	otp *otp.Service
	jwt *auth.JWTService
}

// NewUserService constructs a UserService. The OTP service may be nil when
// email verification is disabled entirely (tests).
func NewUserService(db *gorm.DB, otpService *otp.Service, jwtService *auth.JWTService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("user service: jwt service is required")
	}
	return &UserService{db: db, otp: otpService, jwt: jwtService}, nil
}

// Register creates an account. Students and admins are verified immediately;
// counsellors stay unverified until they confirm the emailed code, which is
// issued here.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	role := strings.ToLower(strings.TrimSpace(input.Role))

	if email == "" || username == "" {
		return nil, apperrors.NewBadRequest("Email and username are required")
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown role %q", role))
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewBadRequest("Password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, apperrors.NewBadRequest("Password must not exceed 72 bytes")
		}
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:         email,
		Username:      username,
		Password:      hash,
		Role:          role,
		Phone:         strings.TrimSpace(input.Phone),
		Experience:    input.Experience,
		Certification: strings.TrimSpace(input.Certification),
		IsAvailable:   true,
		IsVerified:    role != models.RoleCounsellor,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("An account with this email or username already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	if !user.IsVerified && s.otp != nil {
		if _, err := s.otp.Issue(ctx, user.Email); err != nil {
			return nil, fmt.Errorf("user service: issue verification code: %w", err)
		}
	}

	return &user, nil
}

// VerifyEmail consumes the pending code and marks the account verified.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return user, nil
	}
	if s.otp == nil {
		return nil, apperrors.ErrInternalServer.WithMessage("Email verification is not configured")
	}

	if err := s.otp.Verify(ctx, user.Email, code); err != nil {
		switch {
		case errors.Is(err, otp.ErrCodeNotFound):
			return nil, apperrors.NewBadRequest("Verification code not found. Request a new one.")
		case errors.Is(err, otp.ErrCodeMismatch):
			return nil, apperrors.NewBadRequest("Invalid verification code")
		case errors.Is(err, otp.ErrCodeExpired):
			return nil, apperrors.NewBadRequest("Verification code expired. Request a new one.")
		default:
			return nil, fmt.Errorf("user service: verify code: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).
		Model(user).
		Update("is_verified", true).Error; err != nil {
		return nil, fmt.Errorf("user service: mark verified: %w", err)
	}
	user.IsVerified = true
	return user, nil
}

// ResendCode issues a fresh verification code for a still-unverified account.
func (s *UserService) ResendCode(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperrors.NewBadRequest("Account is already verified")
	}
	if s.otp == nil {
		return apperrors.ErrInternalServer.WithMessage("Email verification is not configured")
	}

	if _, err := s.otp.Issue(ctx, user.Email); err != nil {
		return fmt.Errorf("user service: reissue verification code: %w", err)
	}
	return nil
}

// Authenticate checks credentials and returns a signed access token. Unknown
// accounts and bad passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, apperrors.ErrEmailNotVerified
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("user service: sign token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{User: &user, Token: token}, nil
}

// GetByID loads a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findByEmail(ensureContext(ctx), email)
}

// List returns users filtered by role and, for counsellors, availability.
// Unverified counsellors are never listed.
func (s *UserService) List(ctx context.Context, input ListUsersInput) ([]models.User, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.User{}).Order("username ASC")

	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role != "" {
		if !models.ValidRole(role) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown role %q", role))
		}
		query = query.Where("role = ?", role)
	}
	if role == models.RoleCounsellor {
		query = query.Where("is_verified = ?", true)
		if input.OnlyAvailable {
			query = query.Where("is_available = ?", true)
		}
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}
	return users, nil
}

// SetAvailability toggles a counsellor's availability flag.
func (s *UserService) SetAvailability(ctx context.Context, userID string, available bool) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsCounsellor() {
		return nil, apperrors.ErrForbidden.WithMessage("Only counsellors can change availability")
	}

	if err := s.db.WithContext(ctx).
		Model(user).
		Update("is_available", available).Error; err != nil {
		return nil, fmt.Errorf("user service: update availability: %w", err)
	}
	user.IsAvailable = available
	return user, nil
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NewBadRequest("Email is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Account not found")
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}
