package services

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/models"
	"github.com/sonderhq/sonder-server/internal/otp"
	"github.com/sonderhq/sonder-server/pkg/mail"
)

var otpCodePattern = regexp.MustCompile(`\d{6}`)

// codeMailer records the verification code mailed to each recipient.
type codeMailer struct {
	codes map[string]string
}

func (m *codeMailer) Send(_ context.Context, msg mail.Message) error {
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	for _, to := range msg.To {
		m.codes[to] = otpCodePattern.FindString(msg.Body)
	}
	return nil
}

func newTestUserService(t *testing.T, db *gorm.DB) (*UserService, *codeMailer, *auth.JWTService) {
	t.Helper()

	mailer := &codeMailer{}
	otpService, err := otp.NewService(cache.NewMemoryStore(), mailer)
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "sonder"})
	require.NoError(t, err)

	service, err := NewUserService(db, otpService, jwtService)
	require.NoError(t, err)
	return service, mailer, jwtService
}

// seedUser inserts a verified account. The tag keeps emails unique across
// tests that share the in-memory database.
func seedUser(t *testing.T, db *gorm.DB, role, tag string) *models.User {
	t.Helper()

	user := models.User{
		Email:      fmt.Sprintf("%s@sonder.test", tag),
		Username:   tag,
		Password:   "not-a-real-hash",
		Role:       role,
		IsVerified: true,
	}
	if role == models.RoleCounsellor {
		user.IsAvailable = true
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}
