package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "moviefinder:"

// RedisConfig 是 redis 后端的连接参数。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis 把槽位存为 "moviefinder:<key>" 字符串值（无 TTL）。
type Redis struct {
	client *redis.Client
}

// OpenRedis 建立连接并 Ping 一次；连不上直接返回错误（不静默降级）。
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &Redis{client: client}, nil
}

func (*Redis) Name() string { return "redis" }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Redis) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, redisPrefix+key, value, 0).Err()
}

func (s *Redis) Close() error { return s.client.Close() }
