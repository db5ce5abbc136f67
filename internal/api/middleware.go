// internal/api/middleware.go
package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mythren/questweaver/internal/auth"
)

// RequestIDMiddleware 为每个请求分配唯一ID，用于日志追踪与响应关联
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// SessionAuthMiddleware 校验会话令牌并确认其绑定的会话与路径参数一致
func SessionAuthMiddleware(tokenConfig *auth.TokenConfig) gin.HandlerFunc {
	helper := NewResponseHelper()

	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			helper.Error(c, 401, ErrorUnauthorized, "缺少会话令牌")
			c.Abort()
			return
		}

		token, err := auth.ParseSessionToken(tokenString, tokenConfig)
		if err != nil {
			helper.Error(c, 401, ErrorUnauthorized, "会话令牌无效或已过期")
			c.Abort()
			return
		}

		if sessionID := c.Param("id"); sessionID != "" && sessionID != token.SessionID {
			helper.Error(c, 401, ErrorUnauthorized, "令牌与会话不匹配")
			c.Abort()
			return
		}

		c.Set("session_id", token.SessionID)
		c.Next()
	}
}

// extractToken 从Authorization头或query参数提取令牌
// （WebSocket握手无法自定义请求头，允许?token=传递）
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
