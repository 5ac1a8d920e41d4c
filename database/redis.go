package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"weddingtg/config"
)

var RDB *redis.Client

// ConnectRedis is optional: without redis the lockout and admin event
// feed degrade gracefully, so connection failures are non-fatal.
func ConnectRedis(cfg *config.Config) {
	if cfg.RedisURL == "" {
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable at %s, continuing without it: %v", cfg.RedisURL, err)
		return
	}

	RDB = rdb
	fmt.Println("Redis connected")
}
