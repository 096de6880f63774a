package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/pkg/response"
)

// Health returns a status payload useful for readiness checks. The database
// is pinged so orchestrators notice a wedged connection pool.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"
		code := http.StatusOK

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(requestContext(c)) != nil {
				status = "degraded"
				dbStatus = "unreachable"
				code = http.StatusServiceUnavailable
			}
		}

		response.Success(c, code, gin.H{"status": status, "database": dbStatus})
	}
}
