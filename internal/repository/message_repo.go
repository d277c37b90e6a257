package repository

import (
	"Mesdo/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationPreview 追加消息时一并写入会话的预览信息
type ConversationPreview struct {
	Content string
	MsgType string
}

type MessageRepo interface {
	AppendMessage(ctx context.Context, msg *model.Message, preview ConversationPreview) error
	GetHistory(ctx context.Context, convID uint64) ([]*model.Message, error)
	GetMessage(ctx context.Context, id uint64) (*model.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []uint64) ([]*model.Message, error)
	MarkRead(ctx context.Context, reads []*model.MessageRead) error
	GetReads(ctx context.Context, messageID uint64) ([]*model.MessageRead, error)
	AddReaction(ctx context.Context, reaction *model.MessageReaction) error
	GetReactions(ctx context.Context, messageID uint64) ([]*model.MessageReaction, error)
	CountUnread(ctx context.Context, reader model.ParticipantRef) (map[uint64]int64, error)
}

type messageRepoImpl struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepoImpl{db: db}
}

// AppendMessage 核心定序逻辑: 同一事务内递增会话 Seq, 刷新预览并写入消息
// 会话不存在时返回 gorm.ErrRecordNotFound
func (s *messageRepoImpl) AppendMessage(ctx context.Context, msg *model.Message, preview ConversationPreview) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"max_msg_seq":      gorm.Expr("max_msg_seq + 1"),
				"message_count":    gorm.Expr("message_count + 1"),
				"last_message":     preview.Content,
				"last_msg_type":    preview.MsgType,
				"last_sender_kind": msg.SenderKind,
				"last_sender_id":   msg.SenderID,
				"last_message_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var seq uint64
		if err := tx.Model(&model.Conversation{}).Select("max_msg_seq").
			Where("id = ?", msg.ConversationID).Scan(&seq).Error; err != nil {
			return err
		}

		msg.Seq = seq
		msg.CreatedAt = now
		return tx.Omit("Reads", "Reactions").Create(msg).Error
	})
}

func withReceipts(db *gorm.DB) *gorm.DB {
	return db.Preload("Reads", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Preload("Reactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

// GetHistory 按 Seq 升序返回会话全部消息
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID uint64) ([]*model.Message, error) {
	msgs := make([]*model.Message, 0)
	err := withReceipts(s.db.WithContext(ctx)).
		Where("conversation_id = ?", convID).
		Order("seq ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *messageRepoImpl) GetMessage(ctx context.Context, id uint64) (*model.Message, error) {
	var msg model.Message
	err := withReceipts(s.db.WithContext(ctx)).First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (s *messageRepoImpl) GetMessagesByIDs(ctx context.Context, ids []uint64) ([]*model.Message, error) {
	msgs := make([]*model.Message, 0, len(ids))
	if len(ids) == 0 {
		return msgs, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&msgs).Error
	return msgs, err
}

// MarkRead 批量写入已读记录, 已存在的记录保持首次已读时间
func (s *messageRepoImpl) MarkRead(ctx context.Context, reads []*model.MessageRead) error {
	if len(reads) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reads).Error
}

func (s *messageRepoImpl) GetReads(ctx context.Context, messageID uint64) ([]*model.MessageRead, error) {
	reads := make([]*model.MessageRead, 0)
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).Order("id ASC").Find(&reads).Error
	return reads, err
}

// AddReaction 同一表情重复回应时只刷新时间
func (s *messageRepoImpl) AddReaction(ctx context.Context, reaction *model.MessageReaction) error {
	reaction.ReactedAt = time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_kind"}, {Name: "user_id"}, {Name: "emoji"}},
			DoUpdates: clause.AssignmentColumns([]string{"reacted_at"}),
		}).
		Create(reaction).Error
}

func (s *messageRepoImpl) GetReactions(ctx context.Context, messageID uint64) ([]*model.MessageReaction, error) {
	reactions := make([]*model.MessageReaction, 0)
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).Order("id ASC").Find(&reactions).Error
	return reactions, err
}

// CountUnread 统计 reader 在各会话中他人发送且未读的消息数
func (s *messageRepoImpl) CountUnread(ctx context.Context, reader model.ParticipantRef) (map[uint64]int64, error) {
	type row struct {
		ConversationID uint64
		Total          int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Table("messages AS m").
		Select("m.conversation_id, COUNT(*) AS total").
		Joins("JOIN conversation_members AS cm ON cm.conversation_id = m.conversation_id AND cm.member_kind = ? AND cm.member_id = ?", reader.Kind, reader.ID).
		Where("NOT (m.sender_kind = ? AND m.sender_id = ?)", reader.Kind, reader.ID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads AS r WHERE r.message_id = m.id AND r.reader_kind = ? AND r.reader_id = ?)", reader.Kind, reader.ID).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	res := make(map[uint64]int64, len(rows))
	for _, r := range rows {
		res[r.ConversationID] = r.Total
	}
	return res, nil
}
