package app

import (
	"context"

	"auth-shell/internal/config"
	"auth-shell/internal/logger"
	"auth-shell/internal/redis"
)

type Infra struct {
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}

	logger.Info("redis ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	return &Infra{
		Redis: redisClient,
	}, nil
}

func (i *Infra) Close() error {
	return i.Redis.Close()
}
