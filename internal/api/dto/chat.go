package dto

import (
	"Mesdo/internal/model"
	"time"
)

// ParticipantDTO 带展示信息的参与方
type ParticipantDTO struct {
	Kind     string `json:"kind"`
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (p ParticipantDTO) Ref() model.ParticipantRef {
	return model.ParticipantRef{Kind: p.Kind, ID: p.ID}
}

// InitiateChatReq 按用户名发起私聊
type InitiateChatReq struct {
	Username string `json:"username" binding:"required"`
}

// InitiateJobChatReq 求职者就某个职位联系招聘方
type InitiateJobChatReq struct {
	JobID uint64 `json:"jobId" binding:"required"`
}

// InitiateRecruiterChatReq 招聘方就某个职位联系求职者, orgId 可省略
type InitiateRecruiterChatReq struct {
	JobID      uint64 `json:"jobId" binding:"required"`
	OrgID      uint64 `json:"orgId"`
	ReceiverID uint64 `json:"receiverId" binding:"required"`
}

type InitiateChatResp struct {
	ConversationID uint64 `json:"conversationId"`
}

// AttachmentDTO 消息附件, 上传到附件桶的对象填写 objectKey
type AttachmentDTO struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// SendMessageReq 发送消息请求体, conversationId 为空时按 receiverId 查找或创建私聊
type SendMessageReq struct {
	ConversationID uint64          `json:"conversationId"`
	ReceiverID     uint64          `json:"receiverId"`
	Message        string          `json:"message"`
	Text           string          `json:"text"` // 兼容旧客户端, message 为空时使用
	MessageType    string          `json:"messageType"`
	Category       string          `json:"category"`
	Attachments    []AttachmentDTO `json:"attachments"`
	ReplyTo        *uint64         `json:"replyTo"`
}

// CreateGroupReq 创建群聊
type CreateGroupReq struct {
	Name           string   `json:"name" binding:"required,max=100"`
	Description    string   `json:"description" binding:"max=500"`
	Avatar         string   `json:"avatar"`
	ParticipantIDs []uint64 `json:"participantIds" binding:"required"`
}

// ParticipantReq 增删群成员, kind 省略时为 user
type ParticipantReq struct {
	Kind string `json:"kind" binding:"omitempty,oneof=user organization"`
	ID   uint64 `json:"id" binding:"required"`
	Role string `json:"role" binding:"omitempty,oneof=admin member"`
}

func (r ParticipantReq) Ref() model.ParticipantRef {
	kind := r.Kind
	if kind == "" {
		kind = model.KindUser
	}
	return model.ParticipantRef{Kind: kind, ID: r.ID}
}

// MarkReadReq 标记消息已读
type MarkReadReq struct {
	MessageIDs []uint64 `json:"messageIds" binding:"required,min=1"`
}

// AddReactionReq 表情回应
type AddReactionReq struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

// ReadByDTO 单条消息的已读记录
type ReadByDTO struct {
	Reader model.ParticipantRef `json:"reader"`
	ReadAt time.Time            `json:"readAt"`
}

// ReactionDTO 表情回应
type ReactionDTO struct {
	MessageID      uint64               `json:"messageId"`
	ConversationID uint64               `json:"conversationId"`
	User           model.ParticipantRef `json:"user"`
	Emoji          string               `json:"emoji"`
	ReactedAt      time.Time            `json:"reactedAt"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             uint64          `json:"id"`
	ConversationID uint64          `json:"conversationId"`
	Seq            uint64          `json:"seq"`
	Sender         ParticipantDTO  `json:"sender"`
	Receiver       *ParticipantDTO `json:"receiver,omitempty"`
	Message        string          `json:"message"`
	MessageType    string          `json:"messageType"`
	Attachments    []AttachmentDTO `json:"attachments"`
	ReplyTo        *uint64         `json:"replyTo,omitempty"`
	Category       string          `json:"category"`
	IsRead         bool            `json:"isRead"`
	ReadBy         []ReadByDTO     `json:"readBy"`
	Reactions      []ReactionDTO   `json:"reactions"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	ID               uint64                `json:"id"`
	Category         string                `json:"category"`
	IsGroup          bool                  `json:"isGroup"`
	Name             string                `json:"name,omitempty"`
	Description      string                `json:"description,omitempty"`
	Avatar           string                `json:"avatar,omitempty"`
	JobID            *uint64               `json:"jobId,omitempty"`
	Participants     []ParticipantDTO      `json:"participants"`
	OtherParticipant *ParticipantDTO       `json:"otherParticipant,omitempty"`
	LastMessage      string                `json:"lastMessage"`
	LastMessageType  string                `json:"lastMessageType,omitempty"`
	LastSender       *model.ParticipantRef `json:"lastSender,omitempty"`
	LastMessageTime  time.Time             `json:"lastMessageTime"`
	MessageCount     uint64                `json:"messageCount"`
	UnreadCount      int64                 `json:"unreadCount"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// ChatHistoryDTO 会话详情与全部消息
type ChatHistoryDTO struct {
	Conversation *ConversationDTO `json:"conversation"`
	Messages     []*MessageDTO    `json:"messages"`
	OtherUser    *ParticipantDTO  `json:"otherUser,omitempty"`
	OtherUsers   []ParticipantDTO `json:"otherUsers,omitempty"`
}

// ReadReceiptDTO 已读回执推送
type ReadReceiptDTO struct {
	ConversationID uint64               `json:"conversationId"`
	MessageID      uint64               `json:"messageId"`
	Reader         model.ParticipantRef `json:"reader"`
	ReadAt         time.Time            `json:"readAt"`
}

// MarkReadResp 本次新标记为已读的消息
type MarkReadResp struct {
	MessageIDs []uint64 `json:"messageIds"`
}

// UnreadCountDTO 未读统计
type UnreadCountDTO struct {
	Total         int64            `json:"total"`
	Conversations map[uint64]int64 `json:"conversations"`
}

// ParticipantEventDTO 成员变更推送
type ParticipantEventDTO struct {
	ConversationID uint64               `json:"conversationId"`
	Participant    ParticipantDTO       `json:"participant"`
	Actor          model.ParticipantRef `json:"actor"`
}

// OnlinePeerDTO 在线的会话对象
type OnlinePeerDTO struct {
	Kind     string    `json:"kind"`
	ID       uint64    `json:"id"`
	LastSeen time.Time `json:"lastSeen"`
}
