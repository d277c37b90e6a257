package middleware

import (
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/response"
	"Mesdo/internal/pkg/security"
	"context"
	"errors"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware(revoked security.RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := security.BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		claims, err := security.Authenticate(c.Request.Context(), tokenString, revoked)
		if err != nil {
			if !errors.Is(err, security.ErrTokenRevoked) && !errors.Is(err, security.ErrTokenMissing) {
				log.DebugContext(c.Request.Context(), "token rejected", "err", err)
			}
			response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set(consts.CtxUserID, claims.UserID)
		c.Set(consts.CtxRoles, claims.Roles)

		//nolint:staticcheck
		newCtx := context.WithValue(c.Request.Context(), consts.CtxUserID, claims.UserID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}
