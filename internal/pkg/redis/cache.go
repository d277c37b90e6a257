package redis

import (
	"context"
	"time"
)

// KV 基于全局 Rdb 的字符串缓存, 供身份展示信息缓存使用
type KV struct{}

func NewKV() *KV {
	return &KV{}
}

func (KV) Get(ctx context.Context, key string) (string, error) {
	return GetValue(ctx, key)
}

func (KV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return SetWithExpiration(ctx, key, value, ttl)
}

func (KV) Del(ctx context.Context, key string) error {
	return DeleteKey(ctx, key)
}
