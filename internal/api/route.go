package api

import (
	"Mesdo/internal/api/middleware"
	"Mesdo/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(group.AllowOrigins))
	logger.SetupGin(r, group.LogToken)

	auth := middleware.AuthMiddleware(group.Revoked)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// 握手阶段自行鉴权, 支持 ?token=
		apiGroup.GET("/im/ws", group.WSHandler.Connect)

		chatGroup := apiGroup.Group("/chats")
		chatGroup.Use(auth)
		{
			chatGroup.POST("/initiate", group.ChatHandler.Initiate)
			chatGroup.POST("/sendMessage", group.ChatHandler.SendMessage)
			chatGroup.GET("/allConversations", group.ChatHandler.ListConversations)
			chatGroup.GET("/getjobsConversations", group.ChatHandler.ListJobConversations)
			chatGroup.POST("/createGroup", group.ChatHandler.CreateGroup)
			chatGroup.POST("/read", group.ChatHandler.MarkRead)
			chatGroup.GET("/unread-count", group.ChatHandler.UnreadCount)
			chatGroup.GET("/online", group.ChatHandler.OnlinePeers)
			chatGroup.POST("/messages/:messageId/reactions", group.ChatHandler.AddReaction)
			chatGroup.POST("/:conversationId/participants", group.ChatHandler.AddParticipant)
			chatGroup.DELETE("/:conversationId/participants/:participantId", group.ChatHandler.RemoveParticipant)
			chatGroup.GET("/:conversationId", group.ChatHandler.GetConversation)
		}

		jobGroup := apiGroup.Group("/jobs")
		jobGroup.Use(auth)
		{
			jobGroup.POST("/initiate", group.JobChatHandler.InitiateJob)
			jobGroup.POST("/sendMessage", group.JobChatHandler.SendMessage)
			jobGroup.GET("/allConversations", group.JobChatHandler.ListJobConversations)
			jobGroup.POST("/read", group.JobChatHandler.MarkRead)
			jobGroup.GET("/:conversationId", group.JobChatHandler.GetConversation)
		}

		recruiterGroup := apiGroup.Group("/recuriter")
		recruiterGroup.Use(auth)
		{
			recruiterGroup.POST("/initiate", group.RecruiterHandler.InitiateRecruiter)
			recruiterGroup.POST("/sendMessage", group.RecruiterHandler.SendMessage)
			recruiterGroup.GET("/allConversations", group.RecruiterHandler.ListConversations)
			recruiterGroup.POST("/read", group.RecruiterHandler.MarkRead)
			recruiterGroup.GET("/unread-count", group.RecruiterHandler.UnreadCount)
			recruiterGroup.POST("/messages/:messageId/reactions", group.RecruiterHandler.AddReaction)
			recruiterGroup.GET("/:conversationId", group.RecruiterHandler.GetConversation)
		}

		notificationGroup := apiGroup.Group("/notifications")
		notificationGroup.Use(auth)
		{
			notificationGroup.GET("", group.NotificationHandler.GetNotificationList)
			notificationGroup.GET("/unread", group.NotificationHandler.GetUnreadCount)
			notificationGroup.POST("/read", group.NotificationHandler.MarkRead)
			notificationGroup.POST("/read/all", group.NotificationHandler.MarkAllRead)
		}
	}

	return r
}
