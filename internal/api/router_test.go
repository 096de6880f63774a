package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/database/testutil"
	"github.com/sonderhq/sonder-server/internal/otp"
	"github.com/sonderhq/sonder-server/internal/realtime"
	"github.com/sonderhq/sonder-server/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "sonder"})
	require.NoError(t, err)

	otpService, err := otp.NewService(cache.NewMemoryStore(), nil)
	require.NoError(t, err)

	hub := realtime.NewHub()

	users, err := services.NewUserService(db, otpService, jwtService)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db, hub)
	require.NoError(t, err)
	schedules, err := services.NewScheduleService(db, notifications)
	require.NoError(t, err)
	chats, err := services.NewChatService(db, hub)
	require.NoError(t, err)
	ratings, err := services.NewRatingService(db)
	require.NoError(t, err)

	router, err := NewRouter(Deps{
		DB:            db,
		JWT:           jwtService,
		Store:         cache.NewMemoryStore(),
		Hub:           hub,
		Users:         users,
		Chats:         chats,
		Schedules:     schedules,
		Notifications: notifications,
		Ratings:       ratings,
	})
	require.NoError(t, err)
	return router
}

func TestAvailabilityRoutePath(t *testing.T) {
	router := newTestRouter(t)

	// The registered path exists; without a token the auth middleware answers.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/users/availability", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// No nested per-user variant is registered.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/availability", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
