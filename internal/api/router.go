// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mythren/questweaver/internal/auth"
	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/di"
	"github.com/mythren/questweaver/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	worldService, ok := container.Get("world").(*services.WorldService)
	if !ok {
		return nil, fmt.Errorf("世界服务未正确初始化")
	}

	turnService, ok := container.Get("turn").(*services.TurnService)
	if !ok {
		return nil, fmt.Errorf("回合服务未正确初始化")
	}

	questService, ok := container.Get("quest").(*services.QuestService)
	if !ok {
		return nil, fmt.Errorf("任务服务未正确初始化")
	}

	saveService, ok := container.Get("save").(*services.SaveService)
	if !ok {
		return nil, fmt.Errorf("存档服务未正确初始化")
	}

	gatewayService, ok := container.Get("gateway").(*services.GatewayService)
	if !ok {
		return nil, fmt.Errorf("网关服务未正确初始化")
	}

	tokenConfig, ok := container.Get("token_config").(*auth.TokenConfig)
	if !ok {
		return nil, fmt.Errorf("会话令牌配置未正确初始化")
	}

	handler := NewHandler(
		worldService,
		turnService,
		questService,
		saveService,
		gatewayService,
		tokenConfig,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// WebSocket：握手阶段通过?token=校验会话绑定
	r.GET("/ws/sessions/:id", SessionAuthMiddleware(tokenConfig), handler.SessionWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// 会话创建不需要令牌（令牌在此签发）
		api.POST("/sessions", handler.CreateSession)

		// ===============================
		// 会话相关路由（令牌绑定）
		// ===============================
		sessionGroup := api.Group("/sessions/:id")
		sessionGroup.Use(SessionAuthMiddleware(tokenConfig))
		{
			sessionGroup.GET("/state", handler.GetSessionState)
			sessionGroup.POST("/command", CommandRateLimit(), handler.PostCommand)
			sessionGroup.GET("/quests", handler.GetQuests)
			sessionGroup.GET("/npcs/:npc_id/memory", handler.GetNPCMemory)
			sessionGroup.POST("/save", handler.SaveSession)
			sessionGroup.POST("/load", handler.LoadSession)
		}

		// ===============================
		// 状态与配置路由
		// ===============================
		api.GET("/status", handler.GetStatus)
		api.GET("/metrics", handler.GetMetrics)
		api.PUT("/config/llm", handler.UpdateLLMConfig)

		// 调试路由
		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
