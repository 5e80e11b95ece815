package controller

import (
	"errors"
	"net/http"
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/cache"
	"vidyabot_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, util.ErrStudentNotFound), errors.Is(err, util.ErrChapterNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrEmptyQuestion),
		errors.Is(err, util.ErrAudioRequired),
		errors.Is(err, util.ErrTextRequired),
		errors.Is(err, util.ErrInvalidInputType),
		errors.Is(err, util.ErrInvalidAudioType):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrAudioTooLarge), errors.As(err, &maxBytes):
		util.Error(ctx, http.StatusRequestEntityTooLarge, util.ErrAudioTooLarge.Error())
	case errors.Is(err, util.ErrTranscriptionFailed):
		util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
	case isGenerationFailure(err):
		logger.Log.Error("content generation failed", zap.String("requestId", ctx.GetString(util.RequestIDKey)), zap.Error(err))
		util.Error(ctx, http.StatusBadGateway, "content generation failed")
	case cache.IsStoreError(err):
		logger.Log.Error("content store unavailable", zap.String("requestId", ctx.GetString(util.RequestIDKey)), zap.Error(err))
		util.Error(ctx, http.StatusServiceUnavailable, "content store unavailable")
	default:
		util.LogInternalError(ctx, err)
	}
}

func isGenerationFailure(err error) bool {
	var genErr *service.GenerationError
	return errors.As(err, &genErr) || cache.IsGenerationError(err)
}

// respondBindError reports a request that could not be decoded.
func respondBindError(ctx *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		util.Error(ctx, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	util.BadRequest(ctx, err.Error())
}
