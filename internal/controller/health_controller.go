package controller

import (
	"context"
	"net/http"
	"time"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/transcription"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// PoolStats reports transcription pool occupancy.
type PoolStats interface {
	Stats() transcription.Stats
}

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
	Pool  PoolStats
	// FFmpeg reports the transcoder version; nil when audio normalization is off.
	FFmpeg func(ctx context.Context) (string, error)
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, pool PoolStats) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Pool: pool}
}

// @Summary 健康检查
// @Description 检查数据库、Redis 与转写池状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	components := gin.H{"database": "up", "redis": "disabled"}
	if c.Redis != nil {
		// Redis only fronts the caches; losing it degrades but does not fail.
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			components["redis"] = "down"
		} else {
			components["redis"] = "up"
		}
	}
	if c.Pool != nil {
		components["transcription"] = c.Pool.Stats()
	}
	if c.FFmpeg != nil {
		// Without ffmpeg every voice turn fails at the transcode step.
		if version, err := c.FFmpeg(pingCtx); err != nil {
			components["ffmpeg"] = "missing"
		} else {
			components["ffmpeg"] = version
		}
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
