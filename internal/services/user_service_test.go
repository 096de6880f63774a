package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/otp"
	apperrors "github.com/sonderhq/sonder-server/pkg/errors"
)

func TestRegisterStudentIsVerifiedImmediately(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, mailer, _ := newTestUserService(t, db)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "reg-student@sonder.test",
		Username: "reg-student",
		Password: "password123",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	require.True(t, user.IsVerified)
	require.Empty(t, mailer.codes)
}

func TestRegisterCounsellorIssuesCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, mailer, _ := newTestUserService(t, db)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:         "reg-counsellor@sonder.test",
		Username:      "reg-counsellor",
		Password:      "password123",
		Role:          models.RoleCounsellor,
		Phone:         "0400000000",
		Certification: "MCouns",
	})
	require.NoError(t, err)
	require.False(t, user.IsVerified)

	code := mailer.codes["reg-counsellor@sonder.test"]
	require.Len(t, code, 6)

	verified, err := service.VerifyEmail(context.Background(), user.Email, code)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	now := time.Now()
	clock := func() time.Time { return now }
	mailer := &codeMailer{}
	otpService, err := otp.NewService(cache.NewMemoryStore().WithClock(clock), mailer, otp.WithClock(clock))
	require.NoError(t, err)
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "sonder"})
	require.NoError(t, err)
	service, err := NewUserService(db, otpService, jwtService)
	require.NoError(t, err)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "verify-late@sonder.test",
		Username: "verify-late",
		Password: "password123",
		Role:     models.RoleCounsellor,
	})
	require.NoError(t, err)

	code := mailer.codes["verify-late@sonder.test"]
	require.Len(t, code, 6)

	now = now.Add(5*time.Minute + time.Second)

	_, err = service.VerifyEmail(context.Background(), user.Email, code)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
	require.Contains(t, appErr.Message, "expired")

	var got models.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	require.False(t, got.IsVerified)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	input := RegisterInput{
		Email:    "reg-dup@sonder.test",
		Username: "reg-dup",
		Password: "password123",
		Role:     models.RoleStudent,
	}
	_, err := service.Register(context.Background(), input)
	require.NoError(t, err)

	input.Username = "reg-dup-2"
	_, err = service.Register(context.Background(), input)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)
}

func TestRegisterRejectsWeakAndOversizedPasswords(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "reg-weak@sonder.test",
		Username: "reg-weak",
		Password: "short",
		Role:     models.RoleStudent,
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	_, err = service.Register(context.Background(), RegisterInput{
		Email:    "reg-long@sonder.test",
		Username: "reg-long",
		Password: string(long),
		Role:     models.RoleStudent,
	})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, jwtService := newTestUserService(t, db)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "login-ok@sonder.test",
		Username: "login-ok",
		Password: "password123",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)

	result, err := service.Authenticate(context.Background(), "Login-OK@sonder.test", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	claims, err := jwtService.ValidateAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, "login-ok@sonder.test", claims.Email())
	require.Equal(t, models.RoleStudent, claims.Role)
	require.Equal(t, result.User.ID, claims.UserID)
}

func TestAuthenticateBadPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "login-bad@sonder.test",
		Username: "login-bad",
		Password: "password123",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)

	_, err = service.Authenticate(context.Background(), "login-bad@sonder.test", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown accounts fail the same way.
	_, err = service.Authenticate(context.Background(), "login-nobody@sonder.test", "password123")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticateUnverifiedCounsellor(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "login-unverified@sonder.test",
		Username: "login-unverified",
		Password: "password123",
		Role:     models.RoleCounsellor,
	})
	require.NoError(t, err)

	_, err = service.Authenticate(context.Background(), "login-unverified@sonder.test", "password123")
	require.ErrorIs(t, err, apperrors.ErrEmailNotVerified)
}

func TestResendCode(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, mailer, _ := newTestUserService(t, db)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "resend@sonder.test",
		Username: "resend",
		Password: "password123",
		Role:     models.RoleCounsellor,
	})
	require.NoError(t, err)

	first := mailer.codes["resend@sonder.test"]
	require.NoError(t, service.ResendCode(context.Background(), "resend@sonder.test"))
	second := mailer.codes["resend@sonder.test"]
	require.Len(t, second, 6)

	// The later code wins even if the digits happen to repeat.
	if first != second {
		_, err = service.VerifyEmail(context.Background(), "resend@sonder.test", first)
		require.Error(t, err)
	}
	_, err = service.VerifyEmail(context.Background(), "resend@sonder.test", second)
	require.NoError(t, err)

	// Verified accounts cannot request new codes.
	err = service.ResendCode(context.Background(), "resend@sonder.test")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestListCounsellorsHidesUnverified(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	verified := seedUser(t, db, models.RoleCounsellor, "list-verified")
	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "list-pending@sonder.test",
		Username: "list-pending",
		Password: "password123",
		Role:     models.RoleCounsellor,
	})
	require.NoError(t, err)

	users, err := service.List(context.Background(), ListUsersInput{Role: models.RoleCounsellor})
	require.NoError(t, err)

	ids := make(map[string]bool, len(users))
	for _, user := range users {
		ids[user.ID] = true
		require.True(t, user.IsVerified)
	}
	require.True(t, ids[verified.ID])
}

func TestSetAvailability(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	service, _, _ := newTestUserService(t, db)

	counsellor := seedUser(t, db, models.RoleCounsellor, "avail-counsellor")
	student := seedUser(t, db, models.RoleStudent, "avail-student")

	updated, err := service.SetAvailability(context.Background(), counsellor.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsAvailable)

	_, err = service.SetAvailability(context.Background(), student.ID, false)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}
