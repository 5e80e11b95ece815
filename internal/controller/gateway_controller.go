package controller

import (
	"vidyabot_backend/internal/service"

	"github.com/gin-gonic/gin"
)

type GatewayController struct {
	Gateway *service.TutorGateway
}

func NewGatewayController(gateway *service.TutorGateway) *GatewayController {
	return &GatewayController{Gateway: gateway}
}

// HandleWS 升级为 WebSocket 连接，承载 start_learning / ask_doubt / simplify_requested 事件
// @Summary 实时教学通道
// @Tags 实时
// @Router /ws [get]
func (c *GatewayController) HandleWS(ctx *gin.Context) {
	c.Gateway.ServeWs(ctx.Writer, ctx.Request)
}
