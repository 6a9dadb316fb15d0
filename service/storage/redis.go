package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

var rdb *redis.Client

func InitRedis(ctx context.Context, c RedisConfig) error {
	rdb = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return rdb.Ping(ctx).Err()
}

// Redis exposes the shared client for health checks.
func Redis() *redis.Client { return rdb }
