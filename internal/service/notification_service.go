package service

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/mongo"
	"Mesdo/internal/pkg/util"
	"context"
	"errors"
	"time"

	"github.com/jinzhu/copier"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
)

// NotificationService 离线收件箱, 同时实现 Notifier
type NotificationService interface {
	Notifier
	GetNotificationList(ctx context.Context, receiver model.ParticipantRef, page, pageSize int) ([]*dto.NotificationDTO, error)
	GetUnreadCount(ctx context.Context, receiver model.ParticipantRef) (*dto.NotificationUnreadDTO, error)
	MarkRead(ctx context.Context, receiver model.ParticipantRef, id string) error
	MarkAllRead(ctx context.Context, receiver model.ParticipantRef) error
}

type notificationServiceImpl struct {
	repo          mongo.NotificationRepo
	identities    IdentityService
	pub           Publisher
	previewLength int
}

func NewNotificationService(repo mongo.NotificationRepo, identities IdentityService, pub Publisher, previewLength int) NotificationService {
	if previewLength <= 0 {
		previewLength = 50
	}
	return &notificationServiceImpl{
		repo:          repo,
		identities:    identities,
		pub:           orNop(pub),
		previewLength: previewLength,
	}
}

// NotifyNewMessage 写入收件箱并尝试推送 newNotification
func (s *notificationServiceImpl) NotifyNewMessage(ctx context.Context, receiver model.ParticipantRef, msg *dto.MessageDTO) error {
	n := &mongo.NotificationModel{
		ReceiverKind: receiver.Kind,
		ReceiverID:   receiver.ID,
		SenderKind:   msg.Sender.Kind,
		SenderID:     msg.Sender.ID,
		Type:         consts.NotificationNewMessage,
		TargetID:     msg.ConversationID,
		Content:      util.Truncate(previewOf(msg.MessageType, msg.Message), s.previewLength),
		Payload: map[string]any{
			"messageId":   msg.ID,
			"messageType": msg.MessageType,
			"category":    msg.Category,
		},
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	d, err := s.toDTO(ctx, n, newDisplayMemo(s.identities))
	if err != nil {
		return err
	}
	s.pub.PublishToIdentities([]model.ParticipantRef{receiver}, consts.EventNewNotification, d)
	return nil
}

func (s *notificationServiceImpl) toDTO(ctx context.Context, m *mongo.NotificationModel, memo *displayMemo) (*dto.NotificationDTO, error) {
	d := &dto.NotificationDTO{}
	_ = copier.Copy(d, m)
	d.ID = m.ID.Hex()
	d.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)

	if m.SenderID > 0 {
		sender, err := memo.get(ctx, model.ParticipantRef{Kind: m.SenderKind, ID: m.SenderID})
		if err != nil {
			return nil, err
		}
		d.Sender = &sender
	}
	return d, nil
}

// GetNotificationList 分页获取通知并补全发送方信息
func (s *notificationServiceImpl) GetNotificationList(ctx context.Context, receiver model.ParticipantRef, page, pageSize int) ([]*dto.NotificationDTO, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	list, err := s.repo.GetNotificationList(ctx, receiver.Kind, receiver.ID, int64(pageSize), int64((page-1)*pageSize))
	if err != nil {
		return nil, err
	}

	memo := newDisplayMemo(s.identities)
	res := make([]*dto.NotificationDTO, 0, len(list))
	for _, m := range list {
		d, err := s.toDTO(ctx, m, memo)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (s *notificationServiceImpl) GetUnreadCount(ctx context.Context, receiver model.ParticipantRef) (*dto.NotificationUnreadDTO, error) {
	count, err := s.repo.GetUnreadCount(ctx, receiver.Kind, receiver.ID)
	if err != nil {
		return nil, err
	}
	return &dto.NotificationUnreadDTO{UnreadCount: count}, nil
}

// MarkRead 标记单条已读
func (s *notificationServiceImpl) MarkRead(ctx context.Context, receiver model.ParticipantRef, id string) error {
	err := s.repo.MarkAsRead(ctx, receiver.Kind, receiver.ID, id)
	switch {
	case errors.Is(err, mongo.ErrInvalidNotificationID):
		return ErrParamInvalid
	case errors.Is(err, mongoDB.ErrNoDocuments):
		return ErrNotificationNotFound
	}
	return err
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, receiver model.ParticipantRef) error {
	return s.repo.MarkAllAsRead(ctx, receiver.Kind, receiver.ID)
}
