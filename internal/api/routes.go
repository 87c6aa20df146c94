package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvtailor/internal/config"
	"cvtailor/internal/generation"
	"cvtailor/internal/render"
	"cvtailor/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	store *render.Store,
	generationClient *generation.Client,
	emailSender generation.EmailSender,
) {
	sessionHandler := NewSessionHandler(db, storageClient)
	templateHandler := NewTemplateHandler(db)
	renderHandler := NewRenderHandler(db, store)
	generateHandler := NewGenerateHandler(db, generationClient, redisClient)
	uploadHandler := NewUploadHandler(db, storageClient, cfg.Clamd.Addr)
	exportHandler := NewExportHandler(db, asynqClient, storageClient, store, emailSender)
	wsHandler := NewWsHandler(redisClient, logger, cfg.API.AllowedOrigins)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		templateGroup := v1.Group("/templates")
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:slug", templateHandler.GetTemplate)
		}

		v1.POST("/render", renderHandler.Render)

		sessionGroup := v1.Group("/sessions")
		{
			sessionGroup.POST("", sessionHandler.CreateSession)
			sessionGroup.GET("/:key", sessionHandler.GetSession)
			sessionGroup.PATCH("/:key", sessionHandler.UpdateSession)
			sessionGroup.DELETE("/:key", sessionHandler.DeleteSession)

			sessionGroup.POST("/:key/cv/fields", sessionHandler.MergeCVFields)
			sessionGroup.POST("/:key/cl/fields", sessionHandler.MergeCLFields)
			sessionGroup.PUT("/:key/cv/fields/:field", sessionHandler.EditCVField)
			sessionGroup.PUT("/:key/cl/fields/:field", sessionHandler.EditCLField)

			sessionGroup.GET("/:key/preview", renderHandler.PreviewSession)
			sessionGroup.GET("/:key/document", renderHandler.DownloadDocument)

			sessionGroup.POST("/:key/generate", generateHandler.Generate)
			sessionGroup.POST("/:key/cv-file", uploadHandler.UploadCV)
			sessionGroup.POST("/:key/headshot", uploadHandler.UploadHeadshot)

			sessionGroup.POST("/:key/export", exportHandler.ExportPDF)
			sessionGroup.GET("/:key/download-link", exportHandler.GetDownloadLink)
			sessionGroup.GET("/:key/files", exportHandler.ListSessionFiles)
			sessionGroup.POST("/:key/email", exportHandler.SendEmail)
		}
	}
}
