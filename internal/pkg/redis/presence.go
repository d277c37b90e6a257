package redis

import (
	"Mesdo/internal/pkg/consts"
	"context"
	"strconv"
	"time"
)

// Presence 在线状态, 有序集合 member 为身份键, score 为最近心跳的 unix 秒
type Presence struct {
	key string
}

func NewPresence() *Presence {
	return &Presence{key: consts.PresenceKey}
}

func (p *Presence) MarkOnline(ctx context.Context, members ...string) error {
	now := float64(time.Now().Unix())
	for _, m := range members {
		if err := ZAdd(ctx, p.key, now, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Presence) MarkOffline(ctx context.Context, members ...string) error {
	return ZRem(ctx, p.key, members...)
}

// LastSeen 返回仍在线成员的最近心跳时间
func (p *Presence) LastSeen(ctx context.Context, members ...string) (map[string]time.Time, error) {
	scores, err := ZMScore(ctx, p.key, members...)
	if err != nil {
		return nil, err
	}
	res := make(map[string]time.Time, len(scores))
	for m, s := range scores {
		res[m] = time.Unix(int64(s), 0)
	}
	return res, nil
}

// Sweep 清理 before 之前没有心跳的成员
func (p *Presence) Sweep(ctx context.Context, before time.Time) (int64, error) {
	return ZRemRangeByScore(ctx, p.key, "-inf", "("+strconv.FormatInt(before.Unix(), 10))
}
