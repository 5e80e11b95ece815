package app

import (
	"vidyabot_backend/internal/config"
	"vidyabot_backend/pkg/monitoring"
	"vidyabot_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// uploadOverhead leaves room for multipart framing and base64 expansion.
const uploadOverhead = 1 << 20

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// realtime tutoring channel
	router.GET("/ws", c.gateway.HandleWS)

	uploadLimit := security.MaxBodySize(cfg.Speech.MaxAudioBytes*4/3 + uploadOverhead)

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		// students
		students := api.Group("/students")
		{
			students.POST("", c.student.Create)
			students.GET("/:id", c.student.Get)
			students.GET("/:id/report", c.student.Report)
			students.DELETE("/:id/session", c.student.ClearSession)
		}

		// teaching
		teaching := api.Group("/teaching")
		{
			teaching.GET("/browse/:studentId", c.teaching.Browse)
			teaching.POST("/session", c.teaching.StartSession)
			teaching.POST("/simplify", c.teaching.Simplify)
		}

		// doubts, text or voice
		api.POST("/chat/doubt", uploadLimit, c.doubt.Ask)
		api.POST("/speech/transcribe", uploadLimit, c.speech.Transcribe)

		// syllabus ingestion
		api.POST("/syllabus/chunks", uploadLimit, c.syllabus.Ingest)
	}
}
