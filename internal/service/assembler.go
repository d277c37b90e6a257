package service

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"context"

	"github.com/jinzhu/copier"
)

// assembler 把模型拼装为带展示信息的 DTO
type assembler struct {
	memo *displayMemo
}

func newAssembler(identities IdentityService) *assembler {
	return &assembler{memo: newDisplayMemo(identities)}
}

func (a *assembler) participant(ctx context.Context, ref model.ParticipantRef, role string) (dto.ParticipantDTO, error) {
	d, err := a.memo.get(ctx, ref)
	if err != nil {
		return dto.ParticipantDTO{}, err
	}
	d.Role = role
	return d, nil
}

func toAttachmentDTOs(src []model.Attachment) []dto.AttachmentDTO {
	res := make([]dto.AttachmentDTO, 0, len(src))
	for i := range src {
		var d dto.AttachmentDTO
		_ = copier.Copy(&d, &src[i])
		res = append(res, d)
	}
	return res
}

func (a *assembler) message(ctx context.Context, m *model.Message) (*dto.MessageDTO, error) {
	sender, err := a.participant(ctx, m.Sender(), "")
	if err != nil {
		return nil, err
	}

	res := &dto.MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		Sender:         sender,
		Message:        m.Content,
		MessageType:    m.MsgType,
		Attachments:    toAttachmentDTOs(m.Attachments),
		ReplyTo:        m.ReplyTo,
		Category:       m.Category,
		ReadBy:         make([]dto.ReadByDTO, 0, len(m.Reads)),
		Reactions:      make([]dto.ReactionDTO, 0, len(m.Reactions)),
		CreatedAt:      m.CreatedAt,
	}

	if receiver := m.Receiver(); receiver.Valid() {
		r, err := a.participant(ctx, receiver, "")
		if err != nil {
			return nil, err
		}
		res.Receiver = &r
	}

	for _, r := range m.Reads {
		reader := model.ParticipantRef{Kind: r.ReaderKind, ID: r.ReaderID}
		res.ReadBy = append(res.ReadBy, dto.ReadByDTO{Reader: reader, ReadAt: r.ReadAt})
		if reader != m.Sender() {
			res.IsRead = true
		}
	}
	for _, r := range m.Reactions {
		res.Reactions = append(res.Reactions, toReactionDTO(m.ConversationID, &r))
	}
	return res, nil
}

func toReactionDTO(convID uint64, r *model.MessageReaction) dto.ReactionDTO {
	return dto.ReactionDTO{
		MessageID:      r.MessageID,
		ConversationID: convID,
		User:           model.ParticipantRef{Kind: r.UserKind, ID: r.UserID},
		Emoji:          r.Emoji,
		ReactedAt:      r.ReactedAt,
	}
}

// conversation viewer 决定 otherParticipant
func (a *assembler) conversation(ctx context.Context, conv *model.Conversation, viewer model.ParticipantRef, unread int64) (*dto.ConversationDTO, error) {
	res := &dto.ConversationDTO{
		ID:              conv.ID,
		Category:        conv.Category,
		IsGroup:         conv.IsGroup,
		Name:            conv.Name,
		Description:     conv.Description,
		Avatar:          conv.Avatar,
		JobID:           conv.JobID,
		Participants:    make([]dto.ParticipantDTO, 0, len(conv.Members)),
		LastMessage:     conv.LastMessage,
		LastMessageType: conv.LastMsgType,
		LastMessageTime: conv.LastMessageAt,
		MessageCount:    conv.MessageCount,
		UnreadCount:     unread,
		CreatedAt:       conv.CreatedAt,
	}
	if conv.LastSenderID != 0 {
		res.LastSender = &model.ParticipantRef{Kind: conv.LastSenderKind, ID: conv.LastSenderID}
	}

	for _, m := range conv.Members {
		p, err := a.participant(ctx, m.Ref(), m.Role)
		if err != nil {
			return nil, err
		}
		res.Participants = append(res.Participants, p)
		if !conv.IsGroup && m.Ref() != viewer {
			other := p
			res.OtherParticipant = &other
		}
	}
	return res, nil
}
