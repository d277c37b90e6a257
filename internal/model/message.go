package model

import "time"

// Attachment 消息附件
type Attachment struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Message 消息表, (conversation_id, seq) 唯一且严格递增
type Message struct {
	ID             uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64       `gorm:"not null;uniqueIndex:idx_messages_conv_seq" json:"conversationId"`
	Seq            uint64       `gorm:"not null;uniqueIndex:idx_messages_conv_seq" json:"seq"`
	SenderKind     string       `gorm:"type:varchar(16);not null" json:"senderKind"`
	SenderID       uint64       `gorm:"not null;index" json:"senderId"`
	ReceiverKind   string       `gorm:"type:varchar(16)" json:"receiverKind"`
	ReceiverID     uint64       `gorm:"not null;default:0" json:"receiverId"` // 群聊为 0
	MsgType        string       `gorm:"type:varchar(16);not null;default:'text'" json:"msgType"`
	Content        string       `gorm:"type:text" json:"content"`
	Attachments    []Attachment `gorm:"serializer:json;type:text" json:"attachments"`
	ReplyTo        *uint64      `json:"replyTo"`
	Category       string       `gorm:"type:varchar(20)" json:"category"`
	CreatedAt      time.Time    `gorm:"index" json:"createdAt"`

	Reads     []MessageRead     `gorm:"foreignKey:MessageID;references:ID" json:"reads"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID;references:ID" json:"reactions"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) Sender() ParticipantRef {
	return ParticipantRef{Kind: m.SenderKind, ID: m.SenderID}
}

// Receiver 群聊消息返回零值
func (m *Message) Receiver() ParticipantRef {
	return ParticipantRef{Kind: m.ReceiverKind, ID: m.ReceiverID}
}

// MessageRead 按读者记录的已读状态
type MessageRead struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID  uint64    `gorm:"not null;uniqueIndex:idx_message_reads_reader" json:"messageId"`
	ReaderKind string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_message_reads_reader" json:"readerKind"`
	ReaderID   uint64    `gorm:"not null;uniqueIndex:idx_message_reads_reader" json:"readerId"`
	ReadAt     time.Time `json:"readAt"`
}

func (MessageRead) TableName() string { return "message_reads" }

// MessageReaction 表情回应, 同一用户对同一消息的同一表情只记一次
type MessageReaction struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID uint64    `gorm:"not null;uniqueIndex:idx_message_reactions_emoji" json:"messageId"`
	UserKind  string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_message_reactions_emoji" json:"userKind"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_message_reactions_emoji" json:"userId"`
	Emoji     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_message_reactions_emoji" json:"emoji"`
	ReactedAt time.Time `json:"reactedAt"`
}

func (MessageReaction) TableName() string { return "message_reactions" }
