package api

import (
	"Mesdo/internal/api/handler"
	"Mesdo/internal/pkg/security"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ChatHandler         *handler.ChatHandler // 个人身份
	JobChatHandler      *handler.ChatHandler // 求职者身份
	RecruiterHandler    *handler.ChatHandler // 企业主页身份
	NotificationHandler *handler.NotificationHandler
	WSHandler           *handler.WsHandler

	Revoked      security.RevocationChecker
	LogToken     string
	AllowOrigins []string
}
