package controller

import (
	"strconv"
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const defaultReportMessages = 20

type StudentController struct {
	StudentService    *service.StudentService
	CapabilityService *service.CapabilityService
}

func NewStudentController(studentService *service.StudentService, capabilityService *service.CapabilityService) *StudentController {
	return &StudentController{StudentService: studentService, CapabilityService: capabilityService}
}

// @Summary 创建学生档案
// @Tags 学生
// @Accept json
// @Produce json
// @Param request body service.CreateStudentRequest true "姓名与年级"
// @Success 201 {object} util.Response{data=model.Student}
// @Failure 400 {object} util.Response
// @Router /api/students [post]
func (c *StudentController) Create(ctx *gin.Context) {
	var req service.CreateStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	student, err := c.StudentService.Create(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, student)
}

// @Summary 获取学生档案
// @Tags 学生
// @Produce json
// @Param id path string true "学生ID"
// @Success 200 {object} util.Response{data=model.Student}
// @Failure 404 {object} util.Response
// @Router /api/students/{id} [get]
func (c *StudentController) Get(ctx *gin.Context) {
	student, err := c.StudentService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, student)
}

// @Summary 学生学习报告
// @Description 当前能力分层、简化次数与最近的对话记录
// @Tags 学生
// @Produce json
// @Param id path string true "学生ID"
// @Param limit query int false "最近记录条数" default(20)
// @Success 200 {object} util.Response{data=service.StudentReport}
// @Failure 404 {object} util.Response
// @Router /api/students/{id}/report [get]
func (c *StudentController) Report(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultReportMessages)))
	if err != nil || limit <= 0 || limit > 200 {
		util.BadRequest(ctx, "limit must be between 1 and 200")
		return
	}

	report, err := c.StudentService.Report(ctx.Request.Context(), ctx.Param("id"), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 清除会话
// @Description 重置学生的简化次数
// @Tags 学生
// @Produce json
// @Param id path string true "学生ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/students/{id}/session [delete]
func (c *StudentController) ClearSession(ctx *gin.Context) {
	if err := c.CapabilityService.ClearSession(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"cleared": true})
}
