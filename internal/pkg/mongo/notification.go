package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationModel 通知收件箱, 接收方可以是用户或组织
type NotificationModel struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReceiverKind string             `bson:"receiver_kind" json:"receiverKind"`
	ReceiverID   uint64             `bson:"receiver_id" json:"receiverId"`
	SenderKind   string             `bson:"sender_kind" json:"senderKind"`
	SenderID     uint64             `bson:"sender_id" json:"senderId"`
	Type         string             `bson:"type" json:"type"`          // new_message
	TargetID     uint64             `bson:"target_id" json:"targetId"` // 会话ID
	Content      string             `bson:"content" json:"content"`    // 消息预览
	Payload      map[string]any     `bson:"payload" json:"payload"`    // 额外元数据, 如消息ID
	IsRead       bool               `bson:"is_read" json:"isRead"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
