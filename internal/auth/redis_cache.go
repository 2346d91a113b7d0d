package auth

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"

	"github.com/go-redis/redis/v8"
)

// ConnectRedis opens the client shared by admin sessions and rate limiting
// and checks that it can write.
func ConnectRedis(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Addr, err))
		redisClient.Close()
		return nil, err
	}

	testKey := SessionKeyPrefix + "healthcheck"
	if err := redisClient.Set(ctx, testKey, "ok", 5*time.Second).Err(); err != nil {
		log.Error("AUTH", fmt.Sprintf("Failed to write test value to Redis: %v", err))
		redisClient.Close()
		return nil, err
	}

	log.Info("AUTH", fmt.Sprintf("Connected to Redis at %s", cfg.Addr))
	return redisClient, nil
}
