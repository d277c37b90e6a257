package service

import (
	"Mesdo/internal/api/config"
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/minio"
	"Mesdo/internal/pkg/util"
	"Mesdo/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
)

// AttachmentStore 校验附件对象, 由 minio 实现
type AttachmentStore interface {
	Stat(ctx context.Context, objectKey string) (*minio.ObjectInfo, error)
}

// Notifier 给不在线的参与方投递收件箱通知
type Notifier interface {
	NotifyNewMessage(ctx context.Context, receiver model.ParticipantRef, msg *dto.MessageDTO) error
}

type MessageService interface {
	SendMessage(ctx context.Context, sender model.ParticipantRef, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	MarkRead(ctx context.Context, reader model.ParticipantRef, messageIDs []uint64) ([]uint64, error)
	AddReaction(ctx context.Context, user model.ParticipantRef, messageID uint64, emoji string) (*dto.ReactionDTO, error)
	UnreadCount(ctx context.Context, refs ...model.ParticipantRef) (*dto.UnreadCountDTO, error)
}

type messageServiceImpl struct {
	convs       ConversationService
	convRepo    repository.ConversationRepo
	messageRepo repository.MessageRepo
	identities  IdentityService
	pub         Publisher
	attachments AttachmentStore
	notifier    Notifier
	cfg         config.ChatConfig
}

// NewMessageService attachments 与 notifier 可以为 nil
func NewMessageService(
	convs ConversationService,
	convRepo repository.ConversationRepo,
	messageRepo repository.MessageRepo,
	identities IdentityService,
	pub Publisher,
	attachments AttachmentStore,
	notifier Notifier,
	cfg config.ChatConfig,
) MessageService {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 5000
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 50
	}
	return &messageServiceImpl{
		convs:       convs,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		identities:  identities,
		pub:         orNop(pub),
		attachments: attachments,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// previewOf 会话列表里展示的最后一条消息
func previewOf(msgType, content string) string {
	if content != "" {
		return content
	}
	return "[" + msgType + "]"
}

func (s *messageServiceImpl) checkAttachments(ctx context.Context, in []dto.AttachmentDTO) ([]model.Attachment, error) {
	res := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		att := model.Attachment{
			Type:      a.Type,
			URL:       strings.TrimSpace(a.URL),
			ObjectKey: strings.TrimSpace(a.ObjectKey),
			Filename:  a.Filename,
			Size:      a.Size,
			MimeType:  a.MimeType,
			Thumbnail: a.Thumbnail,
		}
		if att.ObjectKey == "" && att.URL == "" {
			return nil, ErrParamInvalid
		}

		if att.ObjectKey != "" && s.attachments != nil {
			info, err := s.attachments.Stat(ctx, att.ObjectKey)
			if err != nil {
				if errors.Is(err, minio.ErrObjectNotFound) {
					return nil, ErrAttachmentNotFound
				}
				return nil, err
			}
			att.URL = info.URL
			att.Size = info.Size
			if info.ContentType != "" {
				att.MimeType = info.ContentType
			}
		}
		if att.Type == "" {
			att.Type = util.AttachmentTypeFromMime(att.MimeType)
		}
		res = append(res, att)
	}
	return res, nil
}

// SendMessage 校验, 在一个事务里落库并刷新会话预览, 然后推送给所有参与方
func (s *messageServiceImpl) SendMessage(ctx context.Context, sender model.ParticipantRef, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	content := strings.TrimSpace(req.Message)
	if content == "" {
		content = strings.TrimSpace(req.Text)
	}
	if content == "" && len(req.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if util.RuneLen(content) > s.cfg.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = consts.MsgTypeText
		if content == "" {
			msgType = consts.MsgTypeFile
		}
	}
	if !consts.ValidMsgTypes[msgType] {
		return nil, ErrMessageTypeInvalid
	}

	// 1. 确定会话
	convID := req.ConversationID
	if convID == 0 {
		if req.ReceiverID == 0 {
			return nil, ErrParamInvalid
		}
		conv, err := s.convs.Resolve(ctx, ResolveRequest{Initiator: sender, Target: model.UserRef(req.ReceiverID)})
		if err != nil {
			return nil, err
		}
		convID = conv.ID
	}

	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasMember(sender) {
		return nil, ErrNotParticipant
	}

	attachments, err := s.checkAttachments(ctx, req.Attachments)
	if err != nil {
		return nil, err
	}

	if req.ReplyTo != nil {
		target, err := s.messageRepo.GetMessage(ctx, *req.ReplyTo)
		if err != nil {
			return nil, err
		}
		if target == nil || target.ConversationID != conv.ID {
			return nil, ErrReplyTargetInvalid
		}
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderKind:     sender.Kind,
		SenderID:       sender.ID,
		MsgType:        msgType,
		Content:        content,
		Attachments:    attachments,
		ReplyTo:        req.ReplyTo,
		Category:       conv.Category,
	}
	if !conv.IsGroup {
		for _, m := range conv.Members {
			if m.Ref() != sender {
				msg.ReceiverKind, msg.ReceiverID = m.MemberKind, m.MemberID
				break
			}
		}
	}

	// 2. 原子落库
	preview := repository.ConversationPreview{Content: previewOf(msgType, content), MsgType: msgType}
	if err = s.messageRepo.AppendMessage(ctx, msg, preview); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	res, err := newAssembler(s.identities).message(ctx, msg)
	if err != nil {
		return nil, err
	}

	// 3. 推送, 只发往参与方的身份房间
	recipients := memberRefs(conv.Members)
	s.pub.PublishToIdentities(recipients, consts.EventNewMessage, res)

	conv.LastMessage = preview.Content
	conv.LastMsgType = preview.MsgType
	conv.LastSenderKind, conv.LastSenderID = sender.Kind, sender.ID
	conv.LastMessageAt = msg.CreatedAt
	conv.MaxMsgSeq = msg.Seq
	conv.MessageCount++
	s.pushConversationUpdate(ctx, conv)

	s.notifyOffline(ctx, recipients, sender, res)
	return res, nil
}

// pushConversationUpdate 每个参与方看到的 otherParticipant 不同, 逐个推送
func (s *messageServiceImpl) pushConversationUpdate(ctx context.Context, conv *model.Conversation) {
	a := newAssembler(s.identities)
	for _, m := range conv.Members {
		unread, err := s.messageRepo.CountUnread(ctx, m.Ref())
		if err != nil {
			log.WarnContext(ctx, "count unread failed", "conversation_id", conv.ID, "err", err)
		}
		d, err := a.conversation(ctx, conv, m.Ref(), unread[conv.ID])
		if err != nil {
			log.WarnContext(ctx, "assemble conversation update failed", "conversation_id", conv.ID, "err", err)
			return
		}
		s.pub.PublishToIdentities([]model.ParticipantRef{m.Ref()}, consts.EventConversationUpdate, d)
	}
}

func (s *messageServiceImpl) notifyOffline(ctx context.Context, recipients []model.ParticipantRef, sender model.ParticipantRef, msg *dto.MessageDTO) {
	if s.notifier == nil {
		return
	}
	for _, r := range recipients {
		if r == sender || s.pub.IsOnline(r) {
			continue
		}
		if err := s.notifier.NotifyNewMessage(ctx, r, msg); err != nil {
			log.WarnContext(ctx, "offline notification failed", "receiver", r.String(), "message_id", msg.ID, "err", err)
		}
	}
}

// MarkRead 记录读者的已读状态, 返回本次处理的消息ID; 自己发的消息与非成员会话里的消息被忽略
func (s *messageServiceImpl) MarkRead(ctx context.Context, reader model.ParticipantRef, messageIDs []uint64) ([]uint64, error) {
	ids := util.Dedup(messageIDs)
	if len(ids) == 0 {
		return nil, ErrParamInvalid
	}

	msgs, err := s.messageRepo.GetMessagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrMessageNotFound
	}

	membership := make(map[uint64]*model.Conversation)
	now := time.Now()
	reads := make([]*model.MessageRead, 0, len(msgs))
	accepted := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Sender() == reader {
			continue
		}
		conv, ok := membership[m.ConversationID]
		if !ok {
			conv, err = s.convRepo.GetConversation(ctx, m.ConversationID)
			if err != nil {
				return nil, err
			}
			membership[m.ConversationID] = conv
		}
		if conv == nil || !conv.HasMember(reader) {
			return nil, ErrNotParticipant
		}
		reads = append(reads, &model.MessageRead{MessageID: m.ID, ReaderKind: reader.Kind, ReaderID: reader.ID, ReadAt: now})
		accepted = append(accepted, m)
	}

	res := make([]uint64, 0, len(accepted))
	if len(reads) == 0 {
		return res, nil
	}
	if err = s.messageRepo.MarkRead(ctx, reads); err != nil {
		return nil, err
	}

	for _, m := range accepted {
		res = append(res, m.ID)
		conv := membership[m.ConversationID]
		s.pub.PublishToIdentities(memberRefs(conv.Members), consts.EventMessageRead, dto.ReadReceiptDTO{
			ConversationID: m.ConversationID,
			MessageID:      m.ID,
			Reader:         reader,
			ReadAt:         now,
		})
	}
	for convID := range membership {
		if err = s.convRepo.TouchMember(ctx, convID, reader); err != nil {
			log.WarnContext(ctx, "touch member failed", "conversation_id", convID, "err", err)
		}
	}
	return res, nil
}

// AddReaction 同一用户对同一消息的同一表情只保留一条
func (s *messageServiceImpl) AddReaction(ctx context.Context, user model.ParticipantRef, messageID uint64, emoji string) (*dto.ReactionDTO, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || util.RuneLen(emoji) > 32 {
		return nil, ErrParamInvalid
	}

	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	conv, err := s.convRepo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasMember(user) {
		return nil, ErrNotParticipant
	}

	reaction := &model.MessageReaction{
		MessageID: msg.ID,
		UserKind:  user.Kind,
		UserID:    user.ID,
		Emoji:     emoji,
		ReactedAt: time.Now(),
	}
	if err = s.messageRepo.AddReaction(ctx, reaction); err != nil {
		return nil, err
	}

	res := toReactionDTO(conv.ID, reaction)
	s.pub.PublishToIdentities(memberRefs(conv.Members), consts.EventMessageReactionAdded, res)
	return &res, nil
}

// UnreadCount 合并多个身份的未读数
func (s *messageServiceImpl) UnreadCount(ctx context.Context, refs ...model.ParticipantRef) (*dto.UnreadCountDTO, error) {
	res := &dto.UnreadCountDTO{Conversations: make(map[uint64]int64)}
	for _, ref := range refs {
		counts, err := s.messageRepo.CountUnread(ctx, ref)
		if err != nil {
			return nil, err
		}
		for convID, n := range counts {
			res.Conversations[convID] += n
			res.Total += n
		}
	}
	return res, nil
}
