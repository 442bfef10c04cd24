package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"resume-rag-go/internal/api/handler"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求分配唯一ID的中间件
// 客户端传入的ID会被透传，否则生成新的
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		requestID := string(ctx.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set("request_id", requestID)
		ctx.Response.Header.Set(RequestIDHeader, requestID)
		ctx.Next(c)
	}
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler) {
	h.Use(RequestID())

	api := h.Group("/api")

	api.GET("", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{
			"message": "Resume RAG Analyzer API",
			"version": "1.0.0",
			"endpoints": utils.H{
				"analyze": "POST /api/analyze - 上传简历和可选职位描述计算ATS评分",
				"extract": "POST /api/extract - 上传简历抽取结构化信息",
				"health":  "GET /api/health - 服务健康检查",
				"stats":   "GET /api/stats - 向量索引统计",
			},
		})
	})

	api.POST("/analyze", resumeHandler.HandleAnalyze)
	api.POST("/extract", resumeHandler.HandleExtract)
	api.GET("/health", resumeHandler.HandleHealth)
	api.GET("/stats", resumeHandler.HandleStats)
}
