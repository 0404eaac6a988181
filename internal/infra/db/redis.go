package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis создаёт клиента Redis и проверяет соединение.
func ConnectRedis(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
