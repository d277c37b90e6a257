package security

import (
	"Mesdo/internal/api/config"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	JWTSecret         = "mesdo-dev-secret"
	JWTExpirationTime = time.Hour * 24
)

const issuer = "Mesdo"

// Configure 使用配置覆盖默认密钥与有效期
func Configure(cfg config.SecurityConfig) {
	if cfg.JWTSecret != "" {
		JWTSecret = cfg.JWTSecret
	}
	if cfg.TokenExpire > 0 {
		JWTExpirationTime = time.Duration(cfg.TokenExpire) * time.Hour
	}
}

// UserClaims 定义了我们 Token 中需要包含的业务信息
type UserClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}
