package model

import (
	"time"
)

// User 用户表, 由账号服务维护, 这里只读
type User struct {
	ID        uint64  `gorm:"primaryKey"`
	Username  *string `gorm:"type:varchar(50);uniqueIndex:idx_username"`
	IsBan     bool    `gorm:"type:tinyint(1);default:0"`
	IsDelete  bool    `gorm:"type:tinyint(1);default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserDetail UserDetail `gorm:"foreignKey:UserID;references:ID"`
}

func (User) TableName() string {
	return "users"
}

// Reachable 未封禁且未注销的用户才能被发起会话或拉入群聊
func (u *User) Reachable() bool {
	return u != nil && !u.IsBan && !u.IsDelete
}
