package model

import "time"

// BusinessProfile 企业主页, 组织身份的唯一来源
type BusinessProfile struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"not null;uniqueIndex:idx_business_profiles_user"`
	Name      string `gorm:"type:varchar(100);not null"`
	Logo      string `gorm:"type:varchar(512)"`
	IsDelete  bool   `gorm:"type:tinyint(1);default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}
