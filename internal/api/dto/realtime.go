package dto

import (
	"Mesdo/internal/model"
	"time"
)

// ConversationPayload join-conversation / typing 等只携带会话ID的事件
type ConversationPayload struct {
	ConversationID uint64 `json:"conversationId" validate:"required"`
}

// MarkReadPayload mark-read 事件
type MarkReadPayload struct {
	MessageIDs []uint64 `json:"messageIds" validate:"required,min=1"`
}

// ReactionPayload add-reaction 事件
type ReactionPayload struct {
	MessageID uint64 `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// ConnectedDTO 握手成功后下发
type ConnectedDTO struct {
	SessionID  string                 `json:"sessionId"`
	UserID     uint64                 `json:"userId"`
	Identities []model.ParticipantRef `json:"identities"`
}

// TypingDTO typing / stopped-typing
type TypingDTO struct {
	ConversationID uint64               `json:"conversationId"`
	User           model.ParticipantRef `json:"user"`
	IsTyping       bool                 `json:"isTyping"`
}

// RoomPresenceDTO user-joined-conversation / user-left-conversation
type RoomPresenceDTO struct {
	ConversationID uint64               `json:"conversationId"`
	User           model.ParticipantRef `json:"user"`
	At             time.Time            `json:"at"`
}

// PresenceDTO userOnline / userOffline
type PresenceDTO struct {
	User model.ParticipantRef `json:"user"`
	At   time.Time            `json:"at"`
}

// ErrorEventDTO error 事件
type ErrorEventDTO struct {
	Event   string `json:"event,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
