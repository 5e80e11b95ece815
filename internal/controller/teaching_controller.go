package controller

import (
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TeachingController struct {
	TeachingService *service.TeachingService
}

func NewTeachingController(teachingService *service.TeachingService) *TeachingController {
	return &TeachingController{TeachingService: teachingService}
}

// @Summary 浏览章节
// @Description 按学生年级列出可学习的科目与章节
// @Tags 教学
// @Produce json
// @Param studentId path string true "学生ID"
// @Success 200 {object} util.Response{data=[]model.ChapterIndex}
// @Failure 404 {object} util.Response
// @Router /api/teaching/browse/{studentId} [get]
func (c *TeachingController) Browse(ctx *gin.Context) {
	index, err := c.TeachingService.Browse(ctx.Request.Context(), ctx.Param("studentId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, index)
}

// @Summary 开始学习
// @Description 返回与学生能力分层匹配的课程，命中缓存时不调用大模型
// @Tags 教学
// @Accept json
// @Produce json
// @Param request body service.StartSessionRequest true "学生、科目与章节"
// @Success 200 {object} util.Response{data=service.TeachingSession}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/teaching/session [post]
func (c *TeachingController) StartSession(ctx *gin.Context) {
	var req service.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.TeachingService.StartSession(ctx.Request.Context(), req.StudentID, req.Subject, req.Chapter, false)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary 简化讲解
// @Description 记录一次简化请求并按降低后的能力分层重新生成课程
// @Tags 教学
// @Accept json
// @Produce json
// @Param request body service.StartSessionRequest true "学生、科目与章节"
// @Success 200 {object} util.Response{data=service.SimplifyResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/teaching/simplify [post]
func (c *TeachingController) Simplify(ctx *gin.Context) {
	var req service.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.TeachingService.Simplify(ctx.Request.Context(), req.StudentID, req.Subject, req.Chapter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
