package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/handlers"
	"github.com/sonderhq/sonder-server/internal/middleware"
	"github.com/sonderhq/sonder-server/internal/realtime"
	"github.com/sonderhq/sonder-server/internal/services"
)

// Deps bundles everything the router needs. Assistant may be nil when no
// Gemini key is configured; the endpoint then reports unavailable.
type Deps struct {
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Store         cache.Store
	Hub           *realtime.Hub
	Users         *services.UserService
	Chats         *services.ChatService
	Schedules     *services.ScheduleService
	Notifications *services.NotificationService
	Ratings       *services.RatingService
	Assistant     *services.AssistantService

	RateLimitPerMinute int
}

// NewRouter builds the Gin engine, wires middleware and registers all routes
// under /api/v1.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("api: database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("api: jwt service must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("api: realtime hub must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if deps.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(deps.Store, deps.RateLimitPerMinute, time.Minute))
	}

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	requireAuth := middleware.Auth(deps.JWT)

	registerAuthRoutes(v1, requireAuth, deps)
	registerUserRoutes(v1, requireAuth, deps)
	registerChatRoutes(v1, requireAuth, deps)
	registerScheduleRoutes(v1, requireAuth, deps)
	registerRatingRoutes(v1, requireAuth, deps)
	registerNotificationRoutes(v1, requireAuth, deps)

	return r, nil
}
