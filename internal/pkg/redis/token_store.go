package redis

import (
	"Mesdo/internal/pkg/consts"
	"context"
)

// TokenBlacklist 注销的 token 以签名为键写入 Redis
type TokenBlacklist struct{}

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{}
}

func (TokenBlacklist) IsRevoked(ctx context.Context, signature string) (bool, error) {
	v, err := GetValue(ctx, consts.TokenRevokedKey+signature)
	if err != nil {
		return false, err
	}
	return v != "", nil
}
