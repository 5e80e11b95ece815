package controller

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"strings"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DoubtController struct {
	DoubtService *service.DoubtService
}

func NewDoubtController(doubtService *service.DoubtService) *DoubtController {
	return &DoubtController{DoubtService: doubtService}
}

// AskDoubtRequest is the JSON form of a question. Voice questions carry the
// recording base64 encoded.
type AskDoubtRequest struct {
	StudentID   string `json:"studentId" form:"studentId" binding:"required,uuid"`
	Subject     string `json:"subject" form:"subject" binding:"required"`
	Chapter     string `json:"chapter" form:"chapter" binding:"required"`
	InputType   string `json:"inputType" form:"inputType" binding:"required,oneof=voice text"`
	Text        string `json:"text" form:"text"`
	AudioBase64 string `json:"audioBase64" form:"-"`
}

// @Summary 提问
// @Description 文字或语音提问。语音可用 JSON 的 audioBase64 或 multipart 的 audio 文件上传
// @Tags 对话
// @Accept json,mpfd
// @Produce json
// @Param request body AskDoubtRequest false "JSON 提问"
// @Param audio formData file false "语音文件"
// @Success 200 {object} util.Response{data=service.DoubtResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 422 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/chat/doubt [post]
func (c *DoubtController) Ask(ctx *gin.Context) {
	var req AskDoubtRequest
	multipartForm := strings.HasPrefix(ctx.ContentType(), "multipart/")
	var err error
	if multipartForm {
		err = ctx.ShouldBind(&req)
	} else {
		err = ctx.ShouldBindJSON(&req)
	}
	if err != nil {
		respondBindError(ctx, err)
		return
	}

	in := service.DoubtInput{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Chapter:   req.Chapter,
		InputType: model.InputType(req.InputType),
		Text:      req.Text,
	}

	switch {
	case multipartForm:
		if file, err := ctx.FormFile("audio"); err == nil {
			audio, err := readUpload(file)
			if err != nil {
				respondBindError(ctx, err)
				return
			}
			in.Audio = audio
			in.AudioName = file.Filename
		}
	case req.AudioBase64 != "":
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			util.BadRequest(ctx, "audioBase64 is not valid base64")
			return
		}
		in.Audio = audio
	}

	result, err := c.DoubtService.HandleDoubt(ctx.Request.Context(), in)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
