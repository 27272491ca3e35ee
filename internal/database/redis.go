package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/countdown-game/internal/config"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/logger"
	"go.uber.org/zap"
)

// Redis 全局Redis客户端，未启用时为nil
var Redis *redis.Client

// InitRedis 初始化Redis连接
func InitRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "连接Redis失败")
	}

	logger.GetModuleLogger("database").Info("Redis连接成功",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	Redis = client
	return client, nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if Redis == nil {
		return nil
	}
	err := Redis.Close()
	Redis = nil
	return err
}
