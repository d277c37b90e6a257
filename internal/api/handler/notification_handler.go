package handler

import (
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/response"
	"Mesdo/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	identities    service.IdentityService
	notifications service.NotificationService
}

func NewNotificationHandler(identities service.IdentityService, notifications service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		identities:    identities,
		notifications: notifications,
	}
}

// receiver ?as=organization 查看企业主页的收件箱
func (h *NotificationHandler) receiver(c *gin.Context) (model.ParticipantRef, bool) {
	kind := c.DefaultQuery("as", model.KindUser)
	ref, err := h.identities.Acting(c.Request.Context(), c.GetUint64(consts.CtxUserID), kind)
	if err != nil {
		response.Error(c, err)
		return model.ParticipantRef{}, false
	}
	return ref, true
}

// GetNotificationList 获取通知列表
func (h *NotificationHandler) GetNotificationList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	receiver, ok := h.receiver(c)
	if !ok {
		return
	}

	list, err := h.notifications.GetNotificationList(c.Request.Context(), receiver, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetUnreadCount 获取未读数
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	receiver, ok := h.receiver(c)
	if !ok {
		return
	}

	unread, err := h.notifications.GetUnreadCount(c.Request.Context(), receiver)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, unread)
}

// MarkRead 标记单条已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		MsgID string `json:"msgId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	receiver, ok := h.receiver(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), receiver, req.MsgID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllRead 全部已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	receiver, ok := h.receiver(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), receiver); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
