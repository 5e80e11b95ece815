package controller

import (
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SyllabusController struct {
	SyllabusService *service.SyllabusService
}

func NewSyllabusController(syllabusService *service.SyllabusService) *SyllabusController {
	return &SyllabusController{SyllabusService: syllabusService}
}

// @Summary 导入教材
// @Description 按空行切分教材文本，生成向量后追加到章节末尾
// @Tags 教材
// @Accept json
// @Produce json
// @Param request body service.IngestRequest true "教材文本"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/syllabus/chunks [post]
func (c *SyllabusController) Ingest(ctx *gin.Context) {
	var req service.IngestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	n, err := c.SyllabusService.Ingest(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if n == 0 {
		util.BadRequest(ctx, "text contains no usable chunks")
		return
	}
	util.Created(ctx, gin.H{"chunks": n})
}
