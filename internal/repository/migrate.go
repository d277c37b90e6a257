package repository

import (
	"Mesdo/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 只迁移本服务拥有的会话与消息表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
		&model.MessageRead{},
		&model.MessageReaction{},
	)
}
