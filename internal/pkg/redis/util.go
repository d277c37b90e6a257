package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetWithExpiration 设置键值对并设置过期时间
func SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return Rdb.Set(ctx, key, value, expiration).Err()
}

// GetValue 获取字符串类型的值, 键不存在时返回空串
func GetValue(ctx context.Context, key string) (string, error) {
	value, err := Rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// DeleteKey 删除一个键
func DeleteKey(ctx context.Context, key string) error {
	return Rdb.Del(ctx, key).Err()
}

// ZAdd 向有序集合添加一个或多个成员，或者更新已存在成员的分数
func ZAdd(ctx context.Context, key string, score float64, member string) error {
	return Rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem 移除有序集合成员
func ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return Rdb.ZRem(ctx, key, args...).Err()
}

// ZMScore 批量读取成员分数, 不存在的成员不出现在结果中
func ZMScore(ctx context.Context, key string, members ...string) (map[string]float64, error) {
	res := make(map[string]float64, len(members))
	if len(members) == 0 {
		return res, nil
	}

	pipe := Rdb.Pipeline()
	cmds := make([]*redis.FloatCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.ZScore(ctx, key, m)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if err != nil {
			continue
		}
		res[members[i]] = score
	}
	return res, nil
}

// ZRemRangeByScore 移除分数在区间内的成员, 返回移除数量
func ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return Rdb.ZRemRangeByScore(ctx, key, min, max).Result()
}

// GetRdbClient 获取redis客户端
func GetRdbClient() *redis.Client {
	return Rdb
}
