package model

import "time"

// 会话分类
const (
	CategoryPersonal     = "Personal"
	CategoryRecruitment  = "Recruitment"
	CategoryGroups       = "Groups"
	CategoryOrganization = "Organization"
)

// 成员角色
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Conversation 会话主表
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Category       string    `gorm:"type:varchar(20);not null;default:'Personal';index" json:"category"`
	IsGroup        bool      `gorm:"not null;default:false" json:"isGroup"`
	Name           string    `gorm:"type:varchar(100)" json:"name"`
	Description    string    `gorm:"type:varchar(500)" json:"description"`
	Avatar         string    `gorm:"type:varchar(512)" json:"avatar"`
	JobID          *uint64   `gorm:"index" json:"jobId"`
	PairKey        *string   `gorm:"uniqueIndex;type:varchar(128)" json:"-"` // 1对1去重键, 群聊为空
	MaxMsgSeq      uint64    `gorm:"not null;default:0" json:"maxMsgSeq"`    // 序列号
	MessageCount   uint64    `gorm:"not null;default:0" json:"messageCount"`
	LastMessage    string    `gorm:"type:text" json:"lastMessage"`
	LastMsgType    string    `gorm:"type:varchar(16)" json:"lastMsgType"`
	LastSenderKind string    `gorm:"type:varchar(16)" json:"lastSenderKind"`
	LastSenderID   uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt  time.Time `gorm:"index" json:"lastMessageAt"`
	CreatedByKind  string    `gorm:"type:varchar(16)" json:"createdByKind"`
	CreatedByID    uint64    `gorm:"not null;default:0" json:"createdById"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID;references:ID" json:"members"`
}

func (Conversation) TableName() string { return "conversations" }

// HasMember 判断 ref 是否在已加载的成员列表中
func (c *Conversation) HasMember(ref ParticipantRef) bool {
	for _, m := range c.Members {
		if m.Ref() == ref {
			return true
		}
	}
	return false
}

// ConversationMember 会话成员表
type ConversationMember struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;uniqueIndex:idx_conv_member" json:"conversationId"`
	MemberKind     string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_conv_member;index:idx_member_ref" json:"memberKind"`
	MemberID       uint64    `gorm:"not null;uniqueIndex:idx_conv_member;index:idx_member_ref" json:"memberId"`
	Role           string    `gorm:"type:varchar(16);not null;default:'member'" json:"role"`
	JoinedAt       time.Time `json:"joinedAt"`
	LastSeenAt     time.Time `json:"lastSeenAt"`
}

func (ConversationMember) TableName() string { return "conversation_members" }

func (m ConversationMember) Ref() ParticipantRef {
	return ParticipantRef{Kind: m.MemberKind, ID: m.MemberID}
}

// CanManage 群主与管理员可以增删成员
func (m ConversationMember) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
