package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedis(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		WriteTimeout: time.Second,
	})
}

// PingRedis fails fast when the configured redis is unreachable.
func PingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
