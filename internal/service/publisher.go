package service

import "Mesdo/internal/model"

// Publisher 实时推送出口, 由网关实现; 推送尽力而为, 不返回错误
type Publisher interface {
	// PublishToIdentities 推送到身份房间, 同一连接至多收到一次
	PublishToIdentities(refs []model.ParticipantRef, event string, data any)
	// PublishToConversation 推送到会话房间, exceptSession 非空时跳过该连接
	PublishToConversation(convID uint64, event string, data any, exceptSession string)
	IsOnline(ref model.ParticipantRef) bool
}

type nopPublisher struct{}

func (nopPublisher) PublishToIdentities([]model.ParticipantRef, string, any) {}
func (nopPublisher) PublishToConversation(uint64, string, any, string)       {}
func (nopPublisher) IsOnline(model.ParticipantRef) bool                      { return false }

func orNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func memberRefs(members []model.ConversationMember) []model.ParticipantRef {
	refs := make([]model.ParticipantRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, m.Ref())
	}
	return refs
}
