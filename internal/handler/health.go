package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthResponse struct {
	OK        bool   `json:"ok"`
	DB        string `json:"db"`
	Redis     string `json:"redis"`
	RouteLock string `json:"route_lock"` // redis | local
	Tracing   bool   `json:"tracing"`
}

// Health pings Postgres and, when configured, Redis. A Redis outage is fatal
// because route locks would silently stop being shared across instances.
func Health(db *gorm.DB, rdb *redis.Client, tracing bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := HealthResponse{DB: "connected", Redis: "disabled", RouteLock: "local", Tracing: tracing}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			resp.DB = "error"
		}
		if rdb != nil {
			resp.RouteLock = "redis"
			resp.Redis = "connected"
			if rdb.Ping(ctx).Err() != nil {
				resp.Redis = "error"
			}
		}

		resp.OK = resp.DB == "connected" && resp.Redis != "error"
		status := http.StatusOK
		if !resp.OK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
