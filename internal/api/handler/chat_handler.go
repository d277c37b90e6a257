package handler

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/response"
	"Mesdo/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ChatHandler 私聊/职位/招聘方三组路由共用, kind 决定当前用户以哪个身份参与
type ChatHandler struct {
	kind       string
	identities service.IdentityService
	convs      service.ConversationService
	msgs       service.MessageService
	presence   service.PresenceService
}

func NewChatHandler(kind string, identities service.IdentityService, convs service.ConversationService, msgs service.MessageService, presence service.PresenceService) *ChatHandler {
	return &ChatHandler{
		kind:       kind,
		identities: identities,
		convs:      convs,
		msgs:       msgs,
		presence:   presence,
	}
}

func (s *ChatHandler) actor(c *gin.Context) (model.ParticipantRef, bool) {
	ref, err := s.identities.Acting(c.Request.Context(), c.GetUint64(consts.CtxUserID), s.kind)
	if err != nil {
		response.Error(c, err)
		return model.ParticipantRef{}, false
	}
	return ref, true
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, service.ErrParamInvalid)
		return 0, false
	}
	return id, true
}

// Initiate 按用户名发起私聊
func (s *ChatHandler) Initiate(c *gin.Context) {
	var req dto.InitiateChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	convID, err := s.convs.InitiateByUsername(c.Request.Context(), actor, req.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.InitiateChatResp{ConversationID: convID})
}

// InitiateJob 求职者就职位联系组织
func (s *ChatHandler) InitiateJob(c *gin.Context) {
	var req dto.InitiateJobChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	convID, err := s.convs.InitiateJob(c.Request.Context(), actor, req.JobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.InitiateChatResp{ConversationID: convID})
}

// InitiateRecruiter 组织就职位联系求职者
func (s *ChatHandler) InitiateRecruiter(c *gin.Context) {
	var req dto.InitiateRecruiterChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if req.OrgID != 0 && req.OrgID != actor.ID {
		response.Error(c, service.ErrNotJobOwner)
		return
	}

	convID, err := s.convs.InitiateRecruiter(c.Request.Context(), actor, req.JobID, req.ReceiverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.InitiateChatResp{ConversationID: convID})
}

// SendMessage 发送消息
func (s *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.msgs.SendMessage(c.Request.Context(), actor, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversation 会话详情与全部消息
func (s *ChatHandler) GetConversation(c *gin.Context) {
	convID, ok := parseID(c, "conversationId")
	if !ok {
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.convs.GetHistory(c.Request.Context(), actor, convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListConversations 会话列表, 支持 ?category= 过滤
func (s *ChatHandler) ListConversations(c *gin.Context) {
	s.listByCategory(c, c.Query("category"))
}

// ListJobConversations 招聘类会话
func (s *ChatHandler) ListJobConversations(c *gin.Context) {
	s.listByCategory(c, model.CategoryRecruitment)
}

func (s *ChatHandler) listByCategory(c *gin.Context, category string) {
	switch category {
	case "", model.CategoryPersonal, model.CategoryRecruitment, model.CategoryGroups, model.CategoryOrganization:
	default:
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.convs.ListConversations(c.Request.Context(), actor, category)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// CreateGroup 创建群聊
func (s *ChatHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.convs.CreateGroup(c.Request.Context(), actor, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// AddParticipant 拉人进群
func (s *ChatHandler) AddParticipant(c *gin.Context) {
	convID, ok := parseID(c, "conversationId")
	if !ok {
		return
	}
	var req dto.ParticipantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.convs.AddParticipant(c.Request.Context(), actor, convID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// RemoveParticipant 踢人或退群, ?kind=organization 指定组织成员
func (s *ChatHandler) RemoveParticipant(c *gin.Context) {
	convID, ok := parseID(c, "conversationId")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "participantId")
	if !ok {
		return
	}
	target := dto.ParticipantReq{Kind: c.Query("kind"), ID: targetID}.Ref()
	if !target.Valid() {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	if err := s.convs.RemoveParticipant(c.Request.Context(), actor, convID, target); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkRead 标记消息已读
func (s *ChatHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	ids, err := s.msgs.MarkRead(c.Request.Context(), actor, req.MessageIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.MarkReadResp{MessageIDs: ids})
}

// AddReaction 表情回应
func (s *ChatHandler) AddReaction(c *gin.Context) {
	messageID, ok := parseID(c, "messageId")
	if !ok {
		return
	}
	var req dto.AddReactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.msgs.AddReaction(c.Request.Context(), actor, messageID, req.Emoji)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// UnreadCount 未读统计
func (s *ChatHandler) UnreadCount(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.msgs.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// OnlinePeers 在线的会话对象
func (s *ChatHandler) OnlinePeers(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	res, err := s.presence.OnlinePeers(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
