package service

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"context"
	log "log/slog"
	"time"
)

// PresenceStore 在线状态存储, 由 redis 有序集合实现
type PresenceStore interface {
	MarkOnline(ctx context.Context, members ...string) error
	MarkOffline(ctx context.Context, members ...string) error
	LastSeen(ctx context.Context, members ...string) (map[string]time.Time, error)
	Sweep(ctx context.Context, before time.Time) (int64, error)
}

type PresenceService interface {
	Online(ctx context.Context, refs ...model.ParticipantRef)
	Offline(ctx context.Context, refs ...model.ParticipantRef)
	OnlinePeers(ctx context.Context, refs ...model.ParticipantRef) ([]dto.OnlinePeerDTO, error)
	Sweep(ctx context.Context) (int64, error)
}

type presenceServiceImpl struct {
	convs ConversationService
	store PresenceStore
	pub   Publisher
	ttl   time.Duration
}

// NewPresenceService store 可以为 nil, 此时只看本进程的连接
func NewPresenceService(convs ConversationService, store PresenceStore, pub Publisher, ttl time.Duration) PresenceService {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &presenceServiceImpl{convs: convs, store: store, pub: orNop(pub), ttl: ttl}
}

func refKeys(refs []model.ParticipantRef) []string {
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, r.String())
	}
	return keys
}

// Online 连接建立与心跳时刷新
func (s *presenceServiceImpl) Online(ctx context.Context, refs ...model.ParticipantRef) {
	if s.store == nil || len(refs) == 0 {
		return
	}
	if err := s.store.MarkOnline(ctx, refKeys(refs)...); err != nil {
		log.WarnContext(ctx, "presence mark online failed", "err", err)
	}
}

func (s *presenceServiceImpl) Offline(ctx context.Context, refs ...model.ParticipantRef) {
	if s.store == nil || len(refs) == 0 {
		return
	}
	if err := s.store.MarkOffline(ctx, refKeys(refs)...); err != nil {
		log.WarnContext(ctx, "presence mark offline failed", "err", err)
	}
}

// OnlinePeers 与 refs 共享会话且当前在线的身份
func (s *presenceServiceImpl) OnlinePeers(ctx context.Context, refs ...model.ParticipantRef) ([]dto.OnlinePeerDTO, error) {
	peers, err := s.convs.Peers(ctx, refs...)
	if err != nil {
		return nil, err
	}

	lastSeen := map[string]time.Time{}
	if s.store != nil && len(peers) > 0 {
		if seen, err := s.store.LastSeen(ctx, refKeys(peers)...); err != nil {
			log.WarnContext(ctx, "presence lookup failed", "err", err)
		} else {
			lastSeen = seen
		}
	}

	now := time.Now()
	res := make([]dto.OnlinePeerDTO, 0, len(peers))
	for _, p := range peers {
		if !s.pub.IsOnline(p) {
			continue
		}
		seen, ok := lastSeen[p.String()]
		if !ok {
			seen = now
		}
		res = append(res, dto.OnlinePeerDTO{Kind: p.Kind, ID: p.ID, LastSeen: seen})
	}
	return res, nil
}

// Sweep 清理超过 ttl 没有心跳的在线记录
func (s *presenceServiceImpl) Sweep(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.Sweep(ctx, time.Now().Add(-s.ttl))
}
