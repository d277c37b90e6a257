package dto

// NotificationDTO 通知返回对象
type NotificationDTO struct {
	ID        string          `json:"id"`
	Sender    *ParticipantDTO `json:"sender,omitempty"`
	Type      string          `json:"type"`
	TargetID  uint64          `json:"targetId"` // 会话ID
	Content   string          `json:"content"`
	Payload   map[string]any  `json:"payload"`
	IsRead    bool            `json:"isRead"`
	CreatedAt string          `json:"createdAt"`
}

// NotificationUnreadDTO 未读数返回
type NotificationUnreadDTO struct {
	UnreadCount int64 `json:"unreadCount"`
}
