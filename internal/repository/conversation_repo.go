package repository

import (
	"Mesdo/internal/model"
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicatePair 并发创建同一对参与方的会话时, 唯一索引冲突
var ErrDuplicatePair = errors.New("conversation pair already exists")

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error)
	IsMember(ctx context.Context, convID uint64, ref model.ParticipantRef) (bool, error)
	GetMember(ctx context.Context, convID uint64, ref model.ParticipantRef) (*model.ConversationMember, error)
	AddMember(ctx context.Context, member *model.ConversationMember) error
	RemoveMember(ctx context.Context, convID uint64, ref model.ParticipantRef) error
	TransferOwnership(ctx context.Context, convID uint64, from model.ParticipantRef) (*model.ConversationMember, error)
	TouchMember(ctx context.Context, convID uint64, ref model.ParticipantRef) error
	ListByMember(ctx context.Context, ref model.ParticipantRef, category string) ([]*model.Conversation, error)
	ListPeers(ctx context.Context, ref model.ParticipantRef) ([]model.ParticipantRef, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

func membersOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// CreateConversation 开启事务创建会话及初始成员
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if conv.LastMessageAt.IsZero() {
			conv.LastMessageAt = now
		}
		if err := tx.Omit("Members").Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			m.ConversationID = conv.ID
			m.JoinedAt = now
			m.LastSeenAt = now
			if err := tx.Create(m).Error; err != nil {
				return err
			}
			conv.Members = append(conv.Members, *m)
		}
		return nil
	})
	if isDuplicateError(err) {
		return ErrDuplicatePair
	}
	return err
}

// GetConversation 根据会话 ID 获取会话及成员, 不存在时返回 nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Members", membersOrdered).First(&conv, convID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetConversationByPairKey 根据 1对1 去重键获取会话
func (s *conversationRepoImpl) GetConversationByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Members", membersOrdered).
		Where("pair_key = ?", pairKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// IsMember 检查身份是否是会话成员
func (s *conversationRepoImpl) IsMember(ctx context.Context, convID uint64, ref model.ParticipantRef) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND member_kind = ? AND member_id = ?", convID, ref.Kind, ref.ID).
		Count(&count).Error
	return count > 0, err
}

func (s *conversationRepoImpl) GetMember(ctx context.Context, convID uint64, ref model.ParticipantRef) (*model.ConversationMember, error) {
	var member model.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND member_kind = ? AND member_id = ?", convID, ref.Kind, ref.ID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (s *conversationRepoImpl) AddMember(ctx context.Context, member *model.ConversationMember) error {
	now := time.Now()
	member.JoinedAt = now
	member.LastSeenAt = now
	err := s.db.WithContext(ctx).Create(member).Error
	if isDuplicateError(err) {
		return ErrDuplicatePair
	}
	return err
}

func (s *conversationRepoImpl) RemoveMember(ctx context.Context, convID uint64, ref model.ParticipantRef) error {
	return s.db.WithContext(ctx).
		Where("conversation_id = ? AND member_kind = ? AND member_id = ?", convID, ref.Kind, ref.ID).
		Delete(&model.ConversationMember{}).Error
}

// TransferOwnership 群主退出前把群主身份交给最早加入的管理员, 没有管理员时交给最早加入的成员
func (s *conversationRepoImpl) TransferOwnership(ctx context.Context, convID uint64, from model.ParticipantRef) (*model.ConversationMember, error) {
	var heir model.ConversationMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND NOT (member_kind = ? AND member_id = ?)", convID, from.Kind, from.ID).
			Order("CASE WHEN role = 'admin' THEN 0 ELSE 1 END, id ASC").
			First(&heir).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&heir).Update("role", model.RoleOwner).Error; err != nil {
			return err
		}
		heir.Role = model.RoleOwner
		return tx.Model(&model.ConversationMember{}).
			Where("conversation_id = ? AND member_kind = ? AND member_id = ?", convID, from.Kind, from.ID).
			Update("role", model.RoleMember).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &heir, nil
}

// TouchMember 记录成员最近一次进入会话的时间
func (s *conversationRepoImpl) TouchMember(ctx context.Context, convID uint64, ref model.ParticipantRef) error {
	return s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND member_kind = ? AND member_id = ?", convID, ref.Kind, ref.ID).
		Update("last_seen_at", time.Now()).Error
}

// ListByMember 按最近活跃倒序列出身份参与的会话, category 为空时不过滤
func (s *conversationRepoImpl) ListByMember(ctx context.Context, ref model.ParticipantRef, category string) ([]*model.Conversation, error) {
	db := s.db.WithContext(ctx)
	sub := db.Model(&model.ConversationMember{}).Select("conversation_id").
		Where("member_kind = ? AND member_id = ?", ref.Kind, ref.ID)

	query := db.Preload("Members", membersOrdered).Where("id IN (?)", sub)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	convs := make([]*model.Conversation, 0)
	err := query.Order("last_message_at DESC, id DESC").Find(&convs).Error
	return convs, err
}

// ListPeers 与 ref 至少共享一个会话的其它身份
func (s *conversationRepoImpl) ListPeers(ctx context.Context, ref model.ParticipantRef) ([]model.ParticipantRef, error) {
	type row struct {
		MemberKind string
		MemberID   uint64
	}
	var rows []row
	err := s.db.WithContext(ctx).Table("conversation_members AS peer").
		Select("DISTINCT peer.member_kind, peer.member_id").
		Joins("JOIN conversation_members AS self ON self.conversation_id = peer.conversation_id").
		Where("self.member_kind = ? AND self.member_id = ?", ref.Kind, ref.ID).
		Where("NOT (peer.member_kind = ? AND peer.member_id = ?)", ref.Kind, ref.ID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	peers := make([]model.ParticipantRef, 0, len(rows))
	for _, r := range rows {
		peers = append(peers, model.ParticipantRef{Kind: r.MemberKind, ID: r.MemberID})
	}
	return peers, nil
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
