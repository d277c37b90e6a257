package model

import "time"

// Job 职位, OrganizationID 指向 BusinessProfile
type Job struct {
	ID             uint64 `gorm:"primaryKey"`
	OrganizationID uint64 `gorm:"not null;index"`
	Title          string `gorm:"type:varchar(200);not null"`
	CreatedAt      time.Time
}

func (Job) TableName() string {
	return "jobs"
}
