package controller

import (
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SpeechController struct {
	SpeechService *service.SpeechService
}

func NewSpeechController(speechService *service.SpeechService) *SpeechController {
	return &SpeechController{SpeechService: speechService}
}

// @Summary 语音转文字
// @Tags 语音
// @Accept mpfd
// @Produce json
// @Param audio formData file true "语音文件"
// @Param studentId formData string false "学生ID，用于归档"
// @Success 200 {object} util.Response{data=service.TranscriptionResult}
// @Failure 400 {object} util.Response
// @Failure 413 {object} util.Response
// @Failure 422 {object} util.Response
// @Router /api/speech/transcribe [post]
func (c *SpeechController) Transcribe(ctx *gin.Context) {
	file, err := ctx.FormFile("audio")
	if err != nil {
		respondBindError(ctx, err)
		return
	}
	audio, err := readUpload(file)
	if err != nil {
		respondBindError(ctx, err)
		return
	}

	result, err := c.SpeechService.Transcribe(ctx.Request.Context(), ctx.PostForm("studentId"), audio, file.Filename)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
