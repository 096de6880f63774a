package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/sonderhq/sonder-server/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actor is the authenticated identity extracted by the auth middleware.
type actor struct {
	UserID string
	Email  string
	Role   string
}

func currentActor(c *gin.Context) actor {
	return actor{
		UserID: c.GetString(middleware.CtxUserIDKey),
		Email:  c.GetString(middleware.CtxEmailKey),
		Role:   c.GetString(middleware.CtxRoleKey),
	}
}
