package kafka

import (
	"Mesdo/internal/model"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// IdentityEvictor 清除身份展示信息缓存
type IdentityEvictor interface {
	Evict(ctx context.Context, ref model.ParticipantRef) error
}

// IdentityHandler 订阅用户与企业主页的 binlog, 资料变更后让展示缓存失效
type IdentityHandler struct {
	identities IdentityEvictor
}

func NewIdentityHandler(identities IdentityEvictor) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

func (s *IdentityHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("identity consumer setup")
	return nil
}

func (s *IdentityHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("identity consumer cleanup")
	return nil
}

func (s *IdentityHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	if err := pullMessageBatch(session, claim, s.logic); err != nil {
		log.Error("process batch error", "err", err)
		return err
	}
	return nil
}

func (s *IdentityHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg,
		model.User{}.TableName(),
		model.UserDetail{}.TableName(),
		model.BusinessProfile{}.TableName(),
	)
	if err != nil {
		return err
	}

	for _, ref := range refsOf(canalMsg) {
		if err = s.identities.Evict(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

// refsOf 从变更行里取出受影响的身份
func refsOf(msg *CanalMessage) []model.ParticipantRef {
	refs := make([]model.ParticipantRef, 0, len(msg.Data))
	for _, row := range msg.Data {
		var ref model.ParticipantRef
		switch msg.Table {
		case model.User{}.TableName():
			ref = model.UserRef(StrToUint64(row["id"]))
		case model.UserDetail{}.TableName():
			ref = model.UserRef(StrToUint64(row["user_id"]))
		case model.BusinessProfile{}.TableName():
			ref = model.OrganizationRef(StrToUint64(row["id"]))
		}
		if ref.Valid() {
			refs = append(refs, ref)
		}
	}
	return refs
}
